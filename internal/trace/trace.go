// Package trace provides the progress narration sink used during analysis.
package trace

import (
	"io"
	"sync"

	"github.com/charmbracelet/log"
)

// Sink receives progress and warning messages. Implementations must be safe
// for concurrent use. A sink never influences analysis results.
type Sink interface {
	Info(msg string)
	Warn(msg string)
}

// Nop discards everything.
var Nop Sink = nopSink{}

type nopSink struct{}

func (nopSink) Info(string) {}
func (nopSink) Warn(string) {}

// OrNop returns s, or Nop when s is nil.
func OrNop(s Sink) Sink {
	if s == nil {
		return Nop
	}
	return s
}

// Logger is a Sink backed by a charmbracelet logger.
type Logger struct {
	l *log.Logger
}

// NewLogger returns a Sink writing to w. Info messages are only emitted when
// verbose is set; warnings always are.
func NewLogger(w io.Writer, verbose bool) *Logger {
	level := log.WarnLevel
	if verbose {
		level = log.InfoLevel
	}
	return &Logger{l: log.NewWithOptions(w, log.Options{
		Level:  level,
		Prefix: "apexusage",
	})}
}

func (lg *Logger) Info(msg string) {
	lg.l.Helper()
	lg.l.Info(msg)
}

func (lg *Logger) Warn(msg string) {
	lg.l.Helper()
	lg.l.Warn(msg)
}

// Recorder keeps messages in memory.
type Recorder struct {
	mu    sync.Mutex
	Infos []string
	Warns []string
}

func (r *Recorder) Info(msg string) {
	r.mu.Lock()
	r.Infos = append(r.Infos, msg)
	r.mu.Unlock()
}

func (r *Recorder) Warn(msg string) {
	r.mu.Lock()
	r.Warns = append(r.Warns, msg)
	r.mu.Unlock()
}

// Warnings returns a copy of the recorded warnings.
func (r *Recorder) Warnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.Warns...)
}
