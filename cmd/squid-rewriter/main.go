package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"squid-rewriter/internal/config"
	"squid-rewriter/internal/diag"
	"squid-rewriter/internal/handler"
	"squid-rewriter/internal/helper"
	"squid-rewriter/internal/metrics"
	"squid-rewriter/internal/middleware"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Standard output carries the helper protocol. Everything else, logs
// included, goes to standard error.
func main() {
	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("squid-rewriter"),
		kong.Description("Squid store-id helper that upgrades http:// URLs to https://."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	fx.New(
		fx.WithLogger(newFxLogger),
		fx.Provide(
			func() *config.CLI { return &cli },
			func() handler.Version { return handler.Version(version) },
			config.Load,
			newLogger,
			metrics.New,
			newSink,
			helper.NewLoop,
			handler.NewHealthHandler,
			newEcho,
		),
		fx.Invoke(handler.RegisterRoutes, logConfigSource, startAdmin, startHelper),
	).Run()
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(newHandler(cfg.Log.Format, os.Stderr, level))
}

func newHandler(format string, w io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(format) == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// newFxLogger keeps fx's lifecycle events out of the way at debug level.
func newFxLogger(logger *slog.Logger) fxevent.Logger {
	l := &fxevent.SlogLogger{Logger: logger.With("component", "fx")}
	l.UseLogLevel(slog.LevelDebug)
	return l
}

// newSink picks the per-line diagnostic channel. In log mode it gets its own
// handler so that log.level cannot suppress diagnostics.
func newSink(cfg *config.Config) diag.Sink {
	return newSinkTo(cfg, os.Stderr)
}

func newSinkTo(cfg *config.Config, w io.Writer) diag.Sink {
	if cfg.Diagnostics.Format == config.DiagnosticsLog {
		return diag.NewStructured(newHandler(cfg.Log.Format, w, slog.LevelInfo))
	}
	return diag.NewPlain(w)
}

func newEcho(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetOutput(os.Stderr)

	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 30 * time.Second
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 5 * time.Second
	e.Server.ErrorLog = slog.NewLogLogger(logger.Handler(), slog.LevelWarn)

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.MetricsMiddleware(m))

	if cfg.Admin.RateLimit.Enabled {
		e.Use(middleware.RateLimit(cfg.Admin.RateLimit.RequestsPerSecond))
		logger.Debug("admin rate limiter enabled", "rps", cfg.Admin.RateLimit.RequestsPerSecond)
	}

	return e
}

func logConfigSource(cfg *config.Config, logger *slog.Logger) {
	cfg.LogSource(logger)
}

func startAdmin(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, logger *slog.Logger) {
	if !cfg.Admin.Enabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			addr := cfg.Admin.Addr()
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}
			logger.Info("starting admin server", "addr", addr, "metrics", cfg.Metrics.Enabled)
			go func() {
				if err := e.Server.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("admin server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Debug("shutting down admin server")
			return e.Shutdown(ctx)
		},
	})
}

// startHelper runs the rewrite loop on the standard streams. When the loop
// ends, the application shuts down with the loop's exit code.
func startHelper(lc fx.Lifecycle, sd fx.Shutdowner, loop *helper.Loop, logger *slog.Logger) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				err := loop.Run(ctx, os.Stdin, os.Stdout)
				code := exitCode(err)
				if code != 0 {
					logger.Error("helper stopped", "err", err, "exit_code", code)
				} else {
					logger.Debug("helper stopped", "lines", loop.Stats().Lines.Load())
				}
				if err := sd.Shutdown(fx.ExitCode(code)); err != nil {
					logger.Debug("shutdown request ignored", "err", err)
				}
			}()
			return nil
		},
		// A read blocked on stdin cannot be interrupted; the loop notices
		// the cancellation before its next line or dies with the process.
		OnStop: func(_ context.Context) error {
			cancel()
			return nil
		},
	})
}

// exitCode maps the loop result to the process exit status: 0 when input
// ended or the app is stopping, 1 when a response or diagnostic could not be
// written.
func exitCode(err error) int {
	if err == nil || errors.Is(err, context.Canceled) {
		return 0
	}
	return 1
}
