package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTracerInstallsGlobalProvider(t *testing.T) {
	ctx := context.Background()
	tp, err := InitTracer(ctx, "http://127.0.0.1:4318/v1/traces", "harvester-test", "dev")
	require.NoError(t, err)
	defer tp.Shutdown(ctx)

	assert.Same(t, tp, otel.GetTracerProvider())
}
