package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
//
// SECURITY WARNING: never put actual sensitive values (access tokens, refresh
// tokens, authorization codes, client secrets) on spans. Only metadata such
// as provider ids, operations, and expiry booleans belongs here.
const (
	AttrProvider  = "oauth.provider"
	AttrOperation = "oauth.operation"
	AttrService   = "oauth.service"
	AttrHasExpiry = "oauth.token.has_expiry"
	AttrRotated   = "oauth.refresh_token.rotated"
)

// SpanProvider returns a provider-id span attribute.
func SpanProvider(id string) attribute.KeyValue {
	return attribute.String(AttrProvider, id)
}

// SpanOperation returns an operation span attribute.
func SpanOperation(op string) attribute.KeyValue {
	return attribute.String(AttrOperation, op)
}

// RecordSpanError marks the span failed and records the error.
func RecordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
