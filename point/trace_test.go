package point_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/warp/point-engine/point"
)

func spanAttr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestEngine_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	e, _ := newTestEngine(t, blockingPolicy())
	e.Tracer = tp.Tracer("test")
	ctx := context.Background()

	mustCharge(t, e, 1, 100)
	_, err := e.Use(ctx, 1, 500)
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	charge := spans[0]
	assert.Equal(t, "point.charge", charge.Name())
	stage, ok := spanAttr(charge, "point.stage")
	require.True(t, ok)
	assert.Equal(t, "done", stage.AsString())
	balance, ok := spanAttr(charge, "point.balance")
	require.True(t, ok)
	assert.Equal(t, int64(100), balance.AsInt64())

	use := spans[1]
	assert.Equal(t, "point.use", use.Name())
	assert.Equal(t, codes.Error, use.Status().Code)
	stage, ok = spanAttr(use, "point.stage")
	require.True(t, ok)
	assert.Equal(t, "locked", stage.AsString(), "validation fails after the lock is taken")
	user, ok := spanAttr(use, "point.user_id")
	require.True(t, ok)
	assert.Equal(t, int64(1), user.AsInt64())
	assert.Equal(t, point.LockBlocking.String(), mustAttr(t, use, "point.lock_policy").AsString())
}

func mustAttr(t *testing.T, span sdktrace.ReadOnlySpan, key string) attribute.Value {
	t.Helper()
	v, ok := spanAttr(span, key)
	require.True(t, ok, "missing span attribute %s", key)
	return v
}
