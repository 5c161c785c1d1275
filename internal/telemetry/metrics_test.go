package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetMetrics(t *testing.T) {
	m := GetMetrics()
	require.NotNil(t, m)
	require.Same(t, m, GetMetrics())

	// instruments from the no-op provider are usable
	require.NotNil(t, m.BuildsTotal)
	require.NotNil(t, m.ActiveClients)
	m.BuildsTotal.Add(context.Background(), 1)
	m.ActiveClients.Add(context.Background(), -1)

	_, span := Tracer().Start(context.Background(), "test")
	span.End()
}

func TestSampler(t *testing.T) {
	require.Equal(t, "AlwaysOnSampler", sampler(0).Description())
	require.Equal(t, "AlwaysOnSampler", sampler(1).Description())
	require.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased")
}
