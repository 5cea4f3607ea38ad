// Package observability configures the process-wide logging pipeline.
//
// Instrument installs the slog default logger for the chosen format. The
// text and json formats write directly to stderr; the otlp format bridges
// slog into the OpenTelemetry log SDK, exporting either to an OTLP endpoint
// (configured through the standard OTEL_EXPORTER_OTLP_* environment
// variables) or, when no endpoint is configured, as OTLP-shaped records on
// stderr. Every record carries a run-scoped run_id, and records logged with
// a context that holds an active span are enriched with trace_id/span_id.
package observability

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/trace"
)

// scopeName identifies this instrumentation scope on exported records.
const scopeName = "github.com/aeris-data/iagos-fetch"

var (
	mu sync.Mutex

	// provider is the active OTel logger provider, nil unless the otlp
	// format was instrumented. Shutdown flushes and clears it.
	provider *sdklog.LoggerProvider
)

// Instrument installs the process-wide default logger. format is one of
// "text", "json", or "otlp"; level discards records below it in all formats.
func Instrument(level slog.Level, format string) error {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "otlp":
		lp, err := newLoggerProvider(context.Background(), level)
		if err != nil {
			return fmt.Errorf("building OTLP log pipeline: %w", err)
		}
		mu.Lock()
		provider = lp
		mu.Unlock()
		global.SetLoggerProvider(lp)
		handler = otelslog.NewHandler(scopeName, otelslog.WithLoggerProvider(lp))
	default:
		return fmt.Errorf("unknown log format: %q", format)
	}

	logger := slog.New(&spanContextHandler{inner: handler}).With("run_id", uuid.NewString())
	slog.SetDefault(logger)
	return nil
}

// Shutdown flushes and stops the OTel log pipeline, if one was instrumented.
// Safe to call regardless of the active format.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	lp := provider
	provider = nil
	mu.Unlock()

	if lp == nil {
		return nil
	}
	if err := lp.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down log provider: %w", err)
	}
	return nil
}

// newLoggerProvider builds the OTel log pipeline: severity filtering in
// front of a batch processor draining into the configured exporter.
func newLoggerProvider(ctx context.Context, level slog.Level) (*sdklog.LoggerProvider, error) {
	exporter, err := newLogExporter(ctx)
	if err != nil {
		return nil, err
	}

	processor := minsev.NewLogProcessor(sdklog.NewBatchProcessor(exporter), minSeverity(level))
	return sdklog.NewLoggerProvider(sdklog.WithProcessor(processor)), nil
}

// newLogExporter picks the OTLP exporter matching the standard environment
// configuration. Without an endpoint the records go to stderr instead, so
// the otlp format stays usable outside a collector deployment.
func newLogExporter(ctx context.Context) (sdklog.Exporter, error) {
	endpoint := cmp.Or(
		os.Getenv("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT"),
		os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	)
	if endpoint == "" {
		return stdoutlog.New(stdoutlog.WithWriter(os.Stderr))
	}

	protocol := cmp.Or(
		os.Getenv("OTEL_EXPORTER_OTLP_LOGS_PROTOCOL"),
		os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"),
	)
	switch {
	case protocol == "grpc":
		return otlploggrpc.New(ctx)
	case protocol == "" || strings.HasPrefix(protocol, "http"):
		return otlploghttp.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol: %q", protocol)
	}
}

// minSeverity maps a slog level onto the minimum OTel severity to export.
func minSeverity(level slog.Level) minsev.Severity {
	switch {
	case level >= slog.LevelError:
		return minsev.SeverityError
	case level >= slog.LevelWarn:
		return minsev.SeverityWarn
	case level >= slog.LevelInfo:
		return minsev.SeverityInfo
	default:
		return minsev.SeverityDebug
	}
}

// spanContextHandler enriches records with the trace_id/span_id of the span
// active in the logging context, when there is one.
type spanContextHandler struct {
	inner slog.Handler
}

// Compile-time check to ensure spanContextHandler implements slog.Handler
var _ slog.Handler = (*spanContextHandler)(nil)

func (h *spanContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *spanContextHandler) Handle(ctx context.Context, rec slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		// Clone before mutating: the record's attribute storage may be
		// shared with other handlers.
		rec = rec.Clone()
		rec.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.inner.Handle(ctx, rec)
}

func (h *spanContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &spanContextHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *spanContextHandler) WithGroup(name string) slog.Handler {
	return &spanContextHandler{inner: h.inner.WithGroup(name)}
}
