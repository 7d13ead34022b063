// Package telemetry is a thin wrapper around OpenTelemetry tracing. Spans go to
// the global tracer provider, which is a no-op until Init or InitWithExporter
// installs an SDK provider (the CLI does so for --spans).
package telemetry

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const (
	serviceName     = "revdiff"
	instrumentation = "revdiff/cli/internal/telemetry"
)

// Shutdown flushes and stops an installed provider.
type Shutdown func(context.Context) error

// Init installs a provider that writes spans as JSON to w.
func Init(w io.Writer, version string) (Shutdown, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, err
	}
	return InitWithExporter(exporter, version)
}

// InitWithExporter installs a provider that sends spans to exporter
// synchronously as each span ends.
func InitWithExporter(exporter sdktrace.SpanExporter, version string) (Shutdown, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", version),
		),
	)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Span wraps an OpenTelemetry span. A nil *Span is valid and ignores all calls.
type Span struct {
	span trace.Span
}

// StartSpan starts a child span of any span in ctx.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	ctx, span := otel.Tracer(instrumentation).Start(ctx, name)
	return ctx, &Span{span: span}
}

// SetString records a string attribute.
func (s *Span) SetString(key, value string) *Span {
	if s == nil {
		return s
	}
	s.span.SetAttributes(attribute.String(key, value))
	return s
}

// SetInt records an integer attribute.
func (s *Span) SetInt(key string, value int) *Span {
	if s == nil {
		return s
	}
	s.span.SetAttributes(attribute.Int(key, value))
	return s
}

// SetBool records a boolean attribute.
func (s *Span) SetBool(key string, value bool) *Span {
	if s == nil {
		return s
	}
	s.span.SetAttributes(attribute.Bool(key, value))
	return s
}

// EndSpan records err (or OK) as the span status and ends it.
func EndSpan(s *Span, err error) {
	if s == nil {
		return
	}
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}
