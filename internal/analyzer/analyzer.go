// Package analyzer builds the reverse-usage index for a set of Apex classes.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	goerrors "github.com/go-errors/errors"
	"golang.org/x/sync/errgroup"

	"github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/discover"
	"github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/match"
	"github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/model"
	"github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/target"
	"github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/trace"
	"github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/usage"
)

var (
	// ErrInvalidInput means no class name could be derived from the identifiers.
	ErrInvalidInput = target.ErrInvalidInput
	// ErrRepositoryNotFound means the repository root is missing or unreadable.
	ErrRepositoryNotFound = errors.New("repository not found")
)

type options struct {
	trace       trace.Sink
	workers     int
	maxFileSize int64
	discover    discover.Options
	memo        *Memo
}

// Option configures an analysis.
type Option func(*options)

// WithTrace routes progress and warnings to s.
func WithTrace(s trace.Sink) Option {
	return func(o *options) { o.trace = trace.OrNop(s) }
}

// WithWorkers bounds the number of files read concurrently.
// Values below one select GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithMaxFileSize skips candidates larger than n bytes. Zero disables the limit.
func WithMaxFileSize(n int64) Option {
	return func(o *options) { o.maxFileSize = n }
}

// WithDiscoverOptions tunes the directory walk.
func WithDiscoverOptions(d discover.Options) Option {
	return func(o *options) { o.discover = d }
}

// WithMemo reuses per-file results recorded by earlier runs that used m.
func WithMemo(m *Memo) Option {
	return func(o *options) { o.memo = m }
}

// Scan is a prepared analysis: the classes to look for and the candidate
// files that will be read.
type Scan struct {
	Root    string
	Classes []string
	Files   []model.FileEntry

	opts options
}

// Analyze scans repoRoot for references to the classes named by identifiers
// and returns one entry per class, in identifier order.
func Analyze(ctx context.Context, repoRoot string, identifiers []string, opts ...Option) ([]model.UsageEntry, error) {
	s, err := Prepare(repoRoot, identifiers, opts...)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx)
}

// Prepare validates the inputs and walks the tree, without reading any file.
func Prepare(repoRoot string, identifiers []string, opts ...Option) (*Scan, error) {
	o := options{trace: trace.Nop}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = runtime.GOMAXPROCS(0)
	}

	classes, err := target.Normalize(identifiers)
	if err != nil {
		return nil, err
	}

	root, err := checkRoot(repoRoot)
	if err != nil {
		return nil, err
	}

	files, err := discover.Files(root, o.discover)
	if err != nil {
		return nil, fmt.Errorf("%w: walking %s: %v", ErrRepositoryNotFound, root, err)
	}
	files = filterBySize(files, o.maxFileSize, o.trace)

	counts := make(map[model.Kind]int, len(model.Kinds))
	for _, f := range files {
		counts[f.Kind]++
	}
	for _, k := range model.Kinds {
		o.trace.Info(fmt.Sprintf("%s: %d candidate files", k, counts[k]))
	}
	reportUndefined(classes, files, o.trace)

	return &Scan{Root: root, Classes: classes, Files: files, opts: o}, nil
}

// Run reads every candidate and returns the aggregated usage entries.
// Unreadable files are reported as warnings and skipped. A panic while
// scanning a file is returned as a *goerrors.Error carrying its stack.
func (s *Scan) Run(ctx context.Context) ([]model.UsageEntry, error) {
	s.opts.trace.Info(fmt.Sprintf("analyzing %d classes across %d files", len(s.Classes), len(s.Files)))

	idx := usage.NewIndex(s.Classes)
	patterns := match.CompileAll(s.Classes)
	if s.opts.memo != nil {
		s.opts.memo.bind(s.Classes)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.workers)
	for _, f := range s.Files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() (err error) {
			defer recoverPanic(&err)
			if err := gctx.Err(); err != nil {
				return err
			}
			s.scanFile(f, patterns, idx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := idx.Entries()
	for i := range entries {
		s.opts.trace.Info(fmt.Sprintf("%s: %d referencing artifacts", entries[i].Class, entries[i].UsedBy.Total()))
	}
	return entries, nil
}

func (s *Scan) scanFile(f model.FileEntry, patterns []*match.Pattern, idx *usage.Index) {
	p := filepath.Join(s.Root, filepath.FromSlash(f.Path))

	memo := s.opts.memo
	var st stamp
	if memo != nil {
		if info, err := os.Stat(p); err == nil {
			st = stamp{path: f.Path, size: info.Size(), modTime: info.ModTime().UnixNano()}
			if r, ok := memo.get(st); ok {
				r.record(f.Kind, idx)
				return
			}
		} else {
			memo = nil
		}
	}

	r, ok := s.evaluate(f, p, patterns)
	if !ok {
		return
	}
	if memo != nil {
		memo.add(st, r)
	}
	r.record(f.Kind, idx)
}

// evaluate reads the file at p and matches it against every pattern. It
// reports false when the file could not be read.
func (s *Scan) evaluate(f model.FileEntry, p string, patterns []*match.Pattern) (fileResult, bool) {
	sink := s.opts.trace
	m := match.For(f.Kind)
	if m == nil {
		return fileResult{}, true
	}

	data, err := os.ReadFile(p)
	if err != nil {
		sink.Warn(fmt.Sprintf("%s: skipped: %v", f.Path, err))
		return fileResult{}, false
	}
	src := match.NewSource(f.Path, data)

	var (
		r        fileResult
		resolved bool
	)
	for i, pat := range patterns {
		if !m.Matches(src, pat) {
			continue
		}
		if !resolved {
			r.subject, err = m.Subject(src)
			if err != nil {
				sink.Warn(err.Error())
			}
			resolved = true
		}
		if r.subject == "" {
			sink.Info(fmt.Sprintf("%s: skipped: cannot attribute to a component", f.Path))
			return fileResult{}, true
		}
		r.hits = append(r.hits, i)
	}
	return r, true
}

func (r fileResult) record(kind model.Kind, idx *usage.Index) {
	if r.subject == "" {
		return
	}
	for _, i := range r.hits {
		idx.Add(i, kind, r.subject)
	}
}

// recoverPanic stores a recovered panic in errp as a stack-carrying error.
// It must be called directly by defer.
func recoverPanic(errp *error) {
	if rec := recover(); rec != nil {
		err, isError := rec.(error)
		if !isError {
			err = fmt.Errorf("%v", rec)
		}
		*errp = goerrors.Wrap(err, 2)
	}
}

func checkRoot(repoRoot string) (string, error) {
	if repoRoot == "" {
		return "", fmt.Errorf("%w: empty path", ErrRepositoryNotFound)
	}
	root, err := filepath.Abs(repoRoot)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRepositoryNotFound, err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRepositoryNotFound, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s: not a directory", ErrRepositoryNotFound, root)
	}

	d, err := os.Open(root)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRepositoryNotFound, err)
	}
	defer d.Close()
	if _, err := d.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("%w: %v", ErrRepositoryNotFound, err)
	}
	return root, nil
}

func filterBySize(files []model.FileEntry, maxSize int64, sink trace.Sink) []model.FileEntry {
	if maxSize <= 0 {
		return files
	}
	var kept []model.FileEntry
	for _, f := range files {
		if f.Size > maxSize {
			sink.Warn(fmt.Sprintf("%s: skipped (>%d bytes)", f.Path, maxSize))
			continue
		}
		kept = append(kept, f)
	}
	return kept
}
