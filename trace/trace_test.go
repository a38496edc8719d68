package trace

import (
	"context"
	nethttp "net/http"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	oteltrace "go.opentelemetry.io/otel/trace"
)

var traceParentPattern = regexp.MustCompile(`^00-[0-9a-f]{32}-[0-9a-f]{16}-0[01]$`)

func TestHeaderConstants(t *testing.T) {
	assert.Equal(t, "X-Request-ID", HeaderXRequestID)
	assert.Equal(t, "traceparent", HeaderTraceParent)
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")

	id, ok := RequestIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "req-123", id)
}

func TestRequestIDFromContextMissing(t *testing.T) {
	_, ok := RequestIDFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithRequestID(context.Background(), "")
	_, ok = RequestIDFromContext(ctx)
	assert.False(t, ok)
}

func TestEnsureRequestIDUsesExisting(t *testing.T) {
	ctx := WithRequestID(context.Background(), "existing")

	got, id := EnsureRequestID(ctx)
	assert.Equal(t, "existing", id)
	assert.Equal(t, ctx, got)
}

func TestEnsureRequestIDGeneratesWhenMissing(t *testing.T) {
	ctx, id := EnsureRequestID(context.Background())
	require.NotEmpty(t, id)

	stored, ok := RequestIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, id, stored)
}

func TestGenerateTraceParentFormat(t *testing.T) {
	tp := GenerateTraceParent()
	assert.Regexp(t, traceParentPattern, tp)
	assert.NotEqual(t, tp, GenerateTraceParent())
}

func TestTraceParentFromActiveSpan(t *testing.T) {
	traceID, err := oteltrace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := oteltrace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := oteltrace.NewSpanContext(oteltrace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: oteltrace.FlagsSampled,
	})
	ctx := oteltrace.ContextWithSpanContext(context.Background(), sc)

	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", TraceParent(ctx))
}

func TestInjectHeadersFillsMissing(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	h := nethttp.Header{}

	InjectHeaders(ctx, h)

	assert.Equal(t, "req-1", h.Get(HeaderXRequestID))
	assert.Regexp(t, traceParentPattern, h.Get(HeaderTraceParent))
}

func TestInjectHeadersPreservesExisting(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	h := nethttp.Header{}
	h.Set(HeaderXRequestID, "caller-id")
	h.Set(HeaderTraceParent, "00-11111111111111111111111111111111-2222222222222222-01")

	InjectHeaders(ctx, h)

	assert.Equal(t, "caller-id", h.Get(HeaderXRequestID))
	assert.Equal(t, "00-11111111111111111111111111111111-2222222222222222-01", h.Get(HeaderTraceParent))
}

func TestInjectHeadersWithoutRequestID(t *testing.T) {
	h := nethttp.Header{}
	InjectHeaders(context.Background(), h)

	assert.Empty(t, h.Get(HeaderXRequestID))
	assert.NotEmpty(t, h.Get(HeaderTraceParent))
}
