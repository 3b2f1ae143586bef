// Package helper runs the Squid store-id rewrite protocol over a pair of streams.
package helper

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"squid-rewriter/internal/diag"
	"squid-rewriter/internal/metrics"
	"squid-rewriter/internal/rewrite"
)

var (
	// ErrOutput is wrapped by errors from writing or flushing a response.
	ErrOutput = errors.New("write response")
	// ErrDiagnostic is wrapped by errors from the diagnostic sink.
	ErrDiagnostic = errors.New("write diagnostic")
)

// Stats counts answered lines. Safe for concurrent reads.
type Stats struct {
	Lines         atomic.Uint64
	Rewritten     atomic.Uint64
	PassedThrough atomic.Uint64
}

// Loop answers request lines one at a time.
type Loop struct {
	sink    diag.Sink
	logger  *slog.Logger
	metrics *metrics.Metrics
	stats   *Stats
}

// NewLoop creates a Loop. The metrics parameter is optional; pass nil to
// disable metrics recording.
func NewLoop(sink diag.Sink, logger *slog.Logger, m *metrics.Metrics) *Loop {
	return &Loop{
		sink:    sink,
		logger:  logger.With("component", "helper"),
		metrics: m,
		stats:   &Stats{},
	}
}

// Stats returns the live counters of the loop.
func (l *Loop) Stats() *Stats {
	return l.stats
}

// Run reads request lines from in and writes one flushed response line per
// request to out. It returns nil once in is exhausted or fails to read, and a
// non-nil error when a response or diagnostic cannot be written, or when ctx
// is done before the next line is read.
func (l *Loop) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	r := bufio.NewReader(in)
	w := bufio.NewWriter(out)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := r.ReadString('\n')
		if err != nil {
			// A failed read drops whatever it returned; only a final
			// unterminated line at EOF is still answered.
			if !errors.Is(err, io.EOF) {
				l.logger.Debug("input read failed", "err", err)
				return nil
			}
			if line == "" {
				l.logger.Debug("input closed", "lines", l.stats.Lines.Load())
				return nil
			}
		}

		if serr := l.serve(w, trimEOL(line)); serr != nil {
			return serr
		}
		if err != nil {
			l.logger.Debug("input closed", "lines", l.stats.Lines.Load())
			return nil
		}
	}
}

func (l *Loop) serve(w *bufio.Writer, line string) error {
	start := time.Now()

	req, resp, rewritten := rewrite.Apply(line)

	var err error
	if rewritten {
		err = l.sink.Rewritten(req.URL, resp.URL)
	} else {
		err = l.sink.PassedThrough(req.URL)
	}
	if err != nil {
		l.recordWriteError(metrics.StreamDiagnostics)
		return fmt.Errorf("helper: %w: %w", ErrDiagnostic, err)
	}

	if _, err := w.WriteString(resp.String()); err != nil {
		l.recordWriteError(metrics.StreamOutput)
		return fmt.Errorf("helper: %w: %w", ErrOutput, err)
	}
	if err := w.WriteByte('\n'); err != nil {
		l.recordWriteError(metrics.StreamOutput)
		return fmt.Errorf("helper: %w: %w", ErrOutput, err)
	}
	// Squid blocks on each answer; nothing may stay buffered.
	if err := w.Flush(); err != nil {
		l.recordWriteError(metrics.StreamOutput)
		return fmt.Errorf("helper: %w: %w", ErrOutput, err)
	}

	l.record(rewritten, time.Since(start))
	return nil
}

func (l *Loop) record(rewritten bool, d time.Duration) {
	l.stats.Lines.Add(1)
	outcome := metrics.OutcomePassThrough
	if rewritten {
		l.stats.Rewritten.Add(1)
		outcome = metrics.OutcomeRewritten
	} else {
		l.stats.PassedThrough.Add(1)
	}

	if l.metrics != nil {
		l.metrics.LinesTotal.WithLabelValues(outcome).Inc()
		l.metrics.LineDuration.Observe(d.Seconds())
	}
}

func (l *Loop) recordWriteError(stream string) {
	if l.metrics != nil {
		l.metrics.WriteErrors.WithLabelValues(stream).Inc()
	}
}

// trimEOL strips a trailing "\n" or "\r\n". A lone trailing "\r" is data.
func trimEOL(line string) string {
	line, ok := strings.CutSuffix(line, "\n")
	if !ok {
		return line
	}
	return strings.TrimSuffix(line, "\r")
}
