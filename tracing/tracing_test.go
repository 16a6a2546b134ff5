package tracing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInit_Disabled(t *testing.T) {
	before := otel.GetTracerProvider()
	shutdown, err := Init(context.Background(), Config{})
	require.NoError(t, err)
	assert.Equal(t, before, otel.GetTracerProvider())
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_Enabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{Enabled: true, Endpoint: "127.0.0.1:1", Insecure: true})
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "probe")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	// Nothing listens on the endpoint; only the call itself is under test.
	_ = shutdown(ctx)
}
