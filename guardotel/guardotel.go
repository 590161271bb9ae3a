// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package guardotel reports [guard.Failure]s to OpenTelemetry.
package guardotel

import (
	"context"
	"fmt"

	"github.com/z5labs/guard"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/z5labs/guard/guardotel"

// Attribute keys recorded alongside the exception event.
const (
	FailureKindKey = attribute.Key("guard.failure.kind")
	FailureTypeKey = attribute.Key("guard.failure.type")
)

// Record marks the span as failed and attaches f as an exception event.
// Nothing is recorded if f is nil.
func Record(span trace.Span, f *guard.Failure) {
	if f == nil {
		return
	}

	span.RecordError(
		f,
		trace.WithAttributes(
			FailureKindKey.String(f.Kind().String()),
			FailureTypeKey.String(fmt.Sprintf("%T", f.Value())),
			semconv.ExceptionStacktraceKey.String(string(f.Stack())),
		),
	)
	span.SetStatus(codes.Error, f.Reason())
}

// Protect is [guard.Protect] wrapped in a span named name. The span is
// started from the global trace.TracerProvider and its context is passed
// to work. Any failure is recorded on the span before it is ended.
func Protect(ctx context.Context, name string, work func(context.Context)) *guard.Failure {
	spanCtx, span := otel.Tracer(instrumentationName).Start(ctx, name)
	defer span.End()

	f := guard.Protect(func() {
		work(spanCtx)
	})
	Record(span, f)
	return f
}
