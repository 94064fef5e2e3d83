package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the tracer name for business spans.
const tracerName = "schoolerp-backend"

// SpanOption configures span start options.
type SpanOption func(*spanOptions)

type spanOptions struct {
	attributes []attribute.KeyValue
}

// WithAttribute adds an attribute at span start.
func WithAttribute(key string, value interface{}) SpanOption {
	return func(opts *spanOptions) {
		opts.attributes = append(opts.attributes, toAttribute(key, value))
	}
}

// StartSpan starts an internal span on the global tracer. The caller must
// call span.End().
func StartSpan(ctx context.Context, spanName string, opts ...SpanOption) (context.Context, trace.Span) {
	var options spanOptions
	for _, opt := range opts {
		opt(&options)
	}

	return otel.GetTracerProvider().Tracer(tracerName).Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(options.attributes...),
	)
}

// StartServiceSpan starts a span named {service}.{method}, e.g.
// "payment.record".
func StartServiceSpan(ctx context.Context, service, method string, opts ...SpanOption) (context.Context, trace.Span) {
	return StartSpan(ctx, service+"."+method, opts...)
}

// SetAttributes adds attributes from alternating key-value pairs. Keys
// that are not strings are skipped.
func SetAttributes(span trace.Span, keyValues ...interface{}) {
	if span != nil {
		span.SetAttributes(pairsToAttributes(keyValues)...)
	}
}

// SetAttribute adds a single attribute to the span.
func SetAttribute(span trace.Span, key string, value interface{}) {
	if span != nil {
		span.SetAttributes(toAttribute(key, value))
	}
}

// RecordError records the error on the span and marks the span status as
// error.
func RecordError(span trace.Span, err error, opts ...trace.EventOption) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err, opts...)
	span.SetStatus(codes.Error, err.Error())
}

// SetOK marks the span as successful. Optional; spans without an error
// status already read as successful.
func SetOK(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// AddEvent records a time-stamped annotation on the span, with attributes
// from alternating key-value pairs.
func AddEvent(span trace.Span, name string, keyValues ...interface{}) {
	if span != nil {
		span.AddEvent(name, trace.WithAttributes(pairsToAttributes(keyValues)...))
	}
}

func pairsToAttributes(keyValues []interface{}) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		if key, ok := keyValues[i].(string); ok {
			attrs = append(attrs, toAttribute(key, keyValues[i+1]))
		}
	}
	return attrs
}

func toAttribute(key string, value interface{}) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	case []int:
		return attribute.IntSlice(key, v)
	case []int64:
		return attribute.Int64Slice(key, v)
	case []float64:
		return attribute.Float64Slice(key, v)
	case []bool:
		return attribute.BoolSlice(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}

// Attribute keys for business spans. Metric label keys live in metrics.go
// as attribute.Key values; these string constants are for span attributes.
const (
	SpanAttrPupilID   = "pupil_id"
	SpanAttrPupilName = "pupil_name"
	SpanAttrClassID   = "class_id"

	SpanAttrSession = "session"
	SpanAttrTerm    = "term"

	SpanAttrAmount        = "amount"
	SpanAttrReceiptNo     = "receipt_no"
	SpanAttrPaymentMethod = "payment_method"
	SpanAttrPaymentStatus = "payment_status"
	SpanAttrArrearsSource = "arrears_source"
)
