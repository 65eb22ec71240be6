package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func useRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := Tracer
	Tracer = tp.Tracer("test")
	t.Cleanup(func() { Tracer = prev })
	return recorder
}

func outcomeOf(s sdktrace.ReadOnlySpan) string {
	for _, kv := range s.Attributes() {
		if kv.Key == "llm.outcome" {
			return kv.Value.AsString()
		}
	}
	return ""
}

func TestInitTracing_Disabled(t *testing.T) {
	prev := Tracer
	t.Cleanup(func() { Tracer = prev })

	shutdown, err := InitTracing(TracingConfig{ServiceName: "plume-test"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	call, ctx := StartUpstreamCall(context.Background(), "llm.complete", "model", 10)
	assert.False(t, trace.SpanContextFromContext(ctx).IsValid())
	call.Finish("ok", nil)
}

func TestInitTracing_UnknownExporter(t *testing.T) {
	_, err := InitTracing(TracingConfig{ServiceName: "plume-test", Enabled: true, Exporter: "zipkin"})
	assert.Error(t, err)
}

func TestUpstreamCall_Success(t *testing.T) {
	recorder := useRecorder(t)
	before := testutil.ToFloat64(UpstreamRequests.WithLabelValues("ok"))

	call, ctx := StartUpstreamCall(context.Background(), "llm.complete", "deepseek", 42)
	assert.True(t, trace.SpanContextFromContext(ctx).IsValid())
	call.Finish("ok", nil)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "llm.complete", spans[0].Name())
	assert.Equal(t, trace.SpanKindClient, spans[0].SpanKind())
	assert.Equal(t, "ok", outcomeOf(spans[0]))
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, before+1, testutil.ToFloat64(UpstreamRequests.WithLabelValues("ok")))
}

func TestUpstreamCall_Failure(t *testing.T) {
	recorder := useRecorder(t)

	call, _ := StartUpstreamCall(context.Background(), "llm.complete", "deepseek", 42)
	call.Finish("timeout", errors.New("deadline exceeded"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "timeout", outcomeOf(spans[0]))
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	require.Len(t, spans[0].Events(), 1)
}

func TestRecordAuthEvent(t *testing.T) {
	before := testutil.ToFloat64(AuthEvents.WithLabelValues("login", "failure"))
	RecordAuthEvent("login", "failure")
	assert.Equal(t, before+1, testutil.ToFloat64(AuthEvents.WithLabelValues("login", "failure")))
}

func TestRecordUpstream(t *testing.T) {
	before := testutil.ToFloat64(UpstreamRequests.WithLabelValues("rate_limited"))
	RecordUpstream("rate_limited", time.Now())
	assert.Equal(t, before+1, testutil.ToFloat64(UpstreamRequests.WithLabelValues("rate_limited")))
}
