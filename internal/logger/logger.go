// Package logger provides structured JSON logging using zerolog.
//
// Loggers obtained through FromContext carry the request id and the active
// trace span, so log lines of one request can be joined with its traces.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// Options configures the global logger.
type Options struct {
	// Level is a zerolog level name. Unknown or empty values mean info.
	Level string
	// Pretty switches to human readable console output.
	Pretty bool
	// Service is attached to every line when set.
	Service string
	// Output defaults to stderr.
	Output io.Writer
}

// Init configures the global logger.
func Init(opts Options) {
	zerolog.SetGlobalLevel(ParseLevel(opts.Level))
	zerolog.TimeFieldFormat = time.RFC3339Nano

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if opts.Service != "" {
		ctx = ctx.Str("service", opts.Service)
	}
	log.Logger = ctx.Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Component returns a logger tagged with the emitting component.
func Component(name string) *zerolog.Logger {
	l := log.Logger.With().Str("component", name).Logger()
	return &l
}

type requestIDKey struct{}

// WithRequestID stores the request id in ctx for FromContext.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// FromContext returns the component logger enriched with the request id and
// the trace and span ids carried by ctx, when present. The pointer lets
// callers chain a level call directly onto the result.
func FromContext(ctx context.Context, component string) *zerolog.Logger {
	lc := log.Logger.With().Str("component", component)
	if id := RequestID(ctx); id != "" {
		lc = lc.Str("request_id", id)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		lc = lc.Str("trace_id", sc.TraceID().String()).
			Str("span_id", sc.SpanID().String())
	}
	l := lc.Logger()
	return &l
}
