// Package worker runs an analysis behind a single request / single response
// message boundary, either on a goroutine or in a child process.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	goerrors "github.com/go-errors/errors"

	"github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/analyzer"
	"github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/model"
)

// Response types.
const (
	TypeResult = "result"
	TypeError  = "error"
)

// Request asks for the usage of ClassIdentifiers inside RepoDir.
type Request struct {
	RepoDir          string   `json:"repoDir"`
	ClassIdentifiers []string `json:"classIdentifiers"`
}

// Response is the only message a worker sends.
type Response struct {
	Type    string             `json:"type"`
	Result  []model.UsageEntry `json:"result,omitempty"`
	Message string             `json:"message,omitempty"`
	Stack   string             `json:"stack,omitempty"`
}

// Err returns the failure carried by an error response, or nil.
func (r Response) Err() error {
	if r.Type == TypeResult {
		return nil
	}
	if r.Message == "" {
		return errors.New("worker: empty error response")
	}
	return errors.New(r.Message)
}

// AnalyzeFunc performs one analysis.
type AnalyzeFunc func(ctx context.Context, repoDir string, identifiers []string) ([]model.UsageEntry, error)

// Analyzer returns an AnalyzeFunc backed by analyzer.Analyze.
func Analyzer(opts ...analyzer.Option) AnalyzeFunc {
	return func(ctx context.Context, repoDir string, identifiers []string) ([]model.UsageEntry, error) {
		return analyzer.Analyze(ctx, repoDir, identifiers, opts...)
	}
}

// Handle runs fn for req and converts the outcome, including a panic, into a
// Response.
func Handle(ctx context.Context, req Request, fn AnalyzeFunc) (resp Response) {
	defer recoverPanic(func(err error) {
		resp = errorResponse(err)
	})

	entries, err := fn(ctx, req.RepoDir, req.ClassIdentifiers)
	if err != nil {
		return errorResponse(err)
	}
	return Response{Type: TypeResult, Result: entries}
}

// Start runs the request on its own goroutine. The returned channel yields
// exactly one Response and is then closed.
func Start(ctx context.Context, req Request, fn AnalyzeFunc) <-chan Response {
	out := make(chan Response, 1)
	go func() {
		defer close(out)
		out <- Handle(ctx, req, fn)
	}()
	return out
}

// Serve reads one JSON request from r and writes one JSON response to w.
// A request that cannot be decoded still gets an error response. Only a
// failure to write the response is returned.
func Serve(ctx context.Context, r io.Reader, w io.Writer, fn AnalyzeFunc) error {
	var resp Response

	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		resp = errorResponse(fmt.Errorf("decoding request: %w", err))
	} else {
		resp = Handle(ctx, req, fn)
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		return fmt.Errorf("writing response: %w", err)
	}
	return nil
}

// Exec starts command with args as a worker process, sends it req and waits
// for its single response. Cancelling ctx kills the child.
func Exec(ctx context.Context, req Request, command string, args ...string) (Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("encoding request: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Response{}, fmt.Errorf("worker: %w", ctxErr)
	}

	var resp Response
	if err := json.NewDecoder(&stdout).Decode(&resp); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if runErr != nil {
			return Response{}, fmt.Errorf("worker exited without a response: %w: %s", runErr, msg)
		}
		return Response{}, fmt.Errorf("worker sent no response: %w: %s", err, msg)
	}
	return resp, nil
}

func errorResponse(err error) Response {
	resp := Response{Type: TypeError, Message: err.Error()}
	var ge *goerrors.Error
	if errors.As(err, &ge) {
		resp.Message = ge.Err.Error()
		resp.Stack = string(ge.Stack())
	}
	return resp
}

// recoverPanic turns a panic into a stack-carrying error passed to onPanic.
// It must be called directly by defer.
func recoverPanic(onPanic func(cause error)) {
	if rec := recover(); rec != nil {
		err, isError := rec.(error)
		if !isError {
			err = fmt.Errorf("%v", rec)
		}
		onPanic(goerrors.Wrap(err, 2))
	}
}
