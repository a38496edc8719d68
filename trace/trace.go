// Package trace carries request correlation ids and W3C trace context
// through a request's context and onto its outgoing headers.
package trace

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	nethttp "net/http"
	"strings"

	"github.com/google/uuid"
	oteltrace "go.opentelemetry.io/otel/trace"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"

	// HeaderXRequestID is the standard header name for request tracing
	HeaderXRequestID = "X-Request-ID"
	// HeaderTraceParent is the W3C trace context header name
	HeaderTraceParent = "traceparent"
)

// WithRequestID adds a request id to the context
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request id from context if present
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		return id, true
	}
	return "", false
}

// EnsureRequestID returns the context's request id, attaching a new one when
// none is present.
func EnsureRequestID(ctx context.Context) (context.Context, string) {
	if id, ok := RequestIDFromContext(ctx); ok {
		return ctx, id
	}
	id := uuid.NewString()
	return WithRequestID(ctx, id), id
}

// TraceParent returns the traceparent of the span active in ctx, or a
// freshly generated one when there is none.
func TraceParent(ctx context.Context) string {
	sc := oteltrace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		flags := "00"
		if sc.IsSampled() {
			flags = "01"
		}
		return "00-" + sc.TraceID().String() + "-" + sc.SpanID().String() + "-" + flags
	}
	return GenerateTraceParent()
}

// GenerateTraceParent creates a minimal W3C traceparent header value.
// Format: version(2)-trace-id(32)-span-id(16)-flags(2), e.g., "00-<32>-<16>-01"
func GenerateTraceParent() string {
	traceID := make([]byte, 16)
	spanID := make([]byte, 8)
	if _, err := crand.Read(traceID); err != nil {
		clear(traceID)
	}
	if _, err := crand.Read(spanID); err != nil {
		clear(spanID)
	}
	if allZero(traceID) {
		traceID[len(traceID)-1] = 0x01
	}
	if allZero(spanID) {
		spanID[len(spanID)-1] = 0x01
	}
	return "00-" + hex.EncodeToString(traceID) + "-" + hex.EncodeToString(spanID) + "-01"
}

// InjectHeaders sets the correlation headers on h. Values already present are kept.
func InjectHeaders(ctx context.Context, h nethttp.Header) {
	if strings.TrimSpace(h.Get(HeaderXRequestID)) == "" {
		if id, ok := RequestIDFromContext(ctx); ok {
			h.Set(HeaderXRequestID, id)
		}
	}
	if strings.TrimSpace(h.Get(HeaderTraceParent)) == "" {
		h.Set(HeaderTraceParent, TraceParent(ctx))
	}
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
