// Package streams carries user-facing notices emitted while resolving and
// persisting MetricFlow configs ("persisted config to ...", home dir
// warnings). Adapters route them to plain writers, to buffers in tests, or
// to a slog.Logger when running inside a task runner.
package streams

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// Streams is the contract consumed by mfconfig and the task Runner.
// Out receives informational notices, ErrOut receives warnings.
type Streams interface {
	Out() io.Writer
	ErrOut() io.Writer
}

// Pair forwards notices to two writers.
type Pair struct {
	out    io.Writer
	errOut io.Writer
}

func (p Pair) Out() io.Writer    { return p.out }
func (p Pair) ErrOut() io.Writer { return p.errOut }

// Writers returns streams writing Out to out and ErrOut to err.
func Writers(out, err io.Writer) Pair {
	return Pair{out: out, errOut: err}
}

// Discard drops all notices.
func Discard() Pair {
	return Writers(io.Discard, io.Discard)
}

// Recorder captures notices in memory. It is safe for concurrent use; a nil
// *Recorder drops everything written through Noticef and Warnf.
type Recorder struct {
	mu  sync.Mutex
	out bytes.Buffer
	err bytes.Buffer
}

// Buffers creates an empty Recorder.
func Buffers() *Recorder { return &Recorder{} }

func (r *Recorder) Out() io.Writer {
	if r == nil {
		return nil
	}
	return lockedWriter{mu: &r.mu, buf: &r.out}
}

func (r *Recorder) ErrOut() io.Writer {
	if r == nil {
		return nil
	}
	return lockedWriter{mu: &r.mu, buf: &r.err}
}

// Strings returns the captured notices and warnings.
func (r *Recorder) Strings() (out, err string) {
	if r == nil {
		return "", ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.out.String(), r.err.String()
}

// Reset clears both buffers.
func (r *Recorder) Reset() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out.Reset()
	r.err.Reset()
}

type lockedWriter struct {
	mu  *sync.Mutex
	buf *bytes.Buffer
}

func (w lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

// slogWriter turns each line written into one log record. A leading
// "<component>: " prefix, as emitted by mfconfig, becomes a component attr.
type slogWriter struct {
	l     *slog.Logger
	level slog.Level
}

func (w slogWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line == "" {
			continue
		}
		component, msg, ok := strings.Cut(line, ": ")
		if !ok || strings.ContainsAny(component, " \t") {
			w.l.Log(context.Background(), w.level, line)
			continue
		}
		msg = strings.TrimPrefix(msg, "warning: ")
		w.l.Log(context.Background(), w.level, msg, slog.String("component", component))
	}
	return len(p), nil
}

// Slog returns streams logging Out at level info and ErrOut at level err.
func Slog(l *slog.Logger, info, err slog.Level) Pair {
	return Pair{
		out:    slogWriter{l: l, level: info},
		errOut: slogWriter{l: l, level: err},
	}
}

// Noticef writes a formatted notice to s.Out. A nil s, or one whose Out is
// nil, drops it.
func Noticef(s Streams, format string, args ...any) {
	if s == nil || s.Out() == nil {
		return
	}
	fmt.Fprintf(s.Out(), format, args...)
}

// Warnf writes a formatted warning to s.ErrOut. A nil s, or one whose ErrOut
// is nil, drops it.
func Warnf(s Streams, format string, args ...any) {
	if s == nil || s.ErrOut() == nil {
		return
	}
	fmt.Fprintf(s.ErrOut(), format, args...)
}
