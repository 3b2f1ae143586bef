package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"squid-rewriter/internal/config"
	"squid-rewriter/internal/diag"
	"squid-rewriter/internal/helper"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"input ended", nil, 0},
		{"stopping", context.Canceled, 0},
		{"response write failed", fmt.Errorf("helper: %w: %w", helper.ErrOutput, errors.New("broken pipe")), 1},
		{"diagnostic write failed", fmt.Errorf("helper: %w: %w", helper.ErrDiagnostic, errors.New("closed")), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestNewSink(t *testing.T) {
	cfg := &config.Config{Log: config.LogConfig{Level: "info", Format: "text"}}

	cfg.Diagnostics.Format = config.DiagnosticsPlain
	if s, ok := newSink(cfg).(*diag.Plain); !ok {
		t.Errorf("plain format: got %T, want *diag.Plain", s)
	}

	cfg.Diagnostics.Format = config.DiagnosticsLog
	if s, ok := newSink(cfg).(*diag.Structured); !ok {
		t.Errorf("log format: got %T, want *diag.Structured", s)
	}
}

// Diagnostics stay one per line whatever the application log level is.
func TestNewSink_LogModeIgnoresLogLevel(t *testing.T) {
	for _, level := range []string{"warn", "error"} {
		for _, format := range []string{"text", "json"} {
			t.Run(level+"/"+format, func(t *testing.T) {
				cfg := &config.Config{
					Diagnostics: config.DiagnosticsConfig{Format: config.DiagnosticsLog},
					Log:         config.LogConfig{Level: level, Format: format},
				}
				var buf bytes.Buffer
				sink := newSinkTo(cfg, &buf)
				loop := helper.NewLoop(sink, newLogger(cfg), nil)

				input := "http://a x\nftp://b\n"
				var out bytes.Buffer
				if err := loop.Run(context.Background(), strings.NewReader(input), &out); err != nil {
					t.Fatalf("Run() error = %v", err)
				}

				if n := strings.Count(buf.String(), "\n"); n != 2 {
					t.Errorf("got %d diagnostic records for 2 lines: %q", n, buf.String())
				}
				if !strings.Contains(buf.String(), "url rewritten") {
					t.Errorf("missing rewrite record: %q", buf.String())
				}
			})
		}
	}
}
