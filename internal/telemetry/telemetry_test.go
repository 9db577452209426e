package telemetry

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), "focusflow", "")
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))

	_, span := Tracer().Start(context.Background(), "noop")
	span.End()
}

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(FocusEvents.WithLabelValues("PAUSED"))
	FocusEvents.WithLabelValues("PAUSED").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(FocusEvents.WithLabelValues("PAUSED")))
}
