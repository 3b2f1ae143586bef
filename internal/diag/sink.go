// Package diag provides the diagnostic side channel of the rewrite loop.
package diag

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Sink receives one diagnostic record per processed request line.
type Sink interface {
	Rewritten(from, to string) error
	PassedThrough(url string) error
}

// Plain writes human-readable lines to w, one per record.
type Plain struct {
	w io.Writer
}

// NewPlain creates a Plain sink writing to w (normally os.Stderr).
func NewPlain(w io.Writer) *Plain {
	return &Plain{w: w}
}

// Rewritten implements Sink.
func (p *Plain) Rewritten(from, to string) error {
	_, err := fmt.Fprintf(p.w, "[rewriter] %s -> %s\n", from, to)
	return err
}

// PassedThrough implements Sink.
func (p *Plain) PassedThrough(url string) error {
	_, err := fmt.Fprintf(p.w, "[rewriter] pass-through: %s\n", url)
	return err
}

// Structured emits diagnostics as slog records. Records go straight to the
// handler at info level, so the application log level never filters them
// and write failures reach the caller.
type Structured struct {
	handler slog.Handler
}

// NewStructured creates a Structured sink on h.
func NewStructured(h slog.Handler) *Structured {
	return &Structured{handler: h.WithAttrs([]slog.Attr{slog.String("component", "rewriter")})}
}

// Rewritten implements Sink.
func (s *Structured) Rewritten(from, to string) error {
	return s.emit("url rewritten", slog.String("from", from), slog.String("to", to))
}

// PassedThrough implements Sink.
func (s *Structured) PassedThrough(url string) error {
	return s.emit("url passed through", slog.String("url", url))
}

func (s *Structured) emit(msg string, attrs ...slog.Attr) error {
	r := slog.NewRecord(time.Now(), slog.LevelInfo, msg, 0)
	r.AddAttrs(attrs...)
	return s.handler.Handle(context.Background(), r)
}

type discard struct{}

func (discard) Rewritten(string, string) error { return nil }
func (discard) PassedThrough(string) error     { return nil }

// Discard drops every record.
var Discard Sink = discard{}
