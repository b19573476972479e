package telemetry

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetup_BridgesInstrumentsToPrometheus(t *testing.T) {
	tel, err := Setup("pagequery-test", "0.0.0")
	require.NoError(t, err)
	defer tel.Shutdown(context.Background())

	counter, err := otel.Meter("bridge-check").Int64Counter("pagequery.bridge.events_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	var found bool
	for _, family := range families {
		if strings.HasPrefix(family.GetName(), "pagequery_bridge_events") {
			found = true
			break
		}
	}
	assert.True(t, found, "recorded instrument missing from the default registry")
}

func TestTelemetry_ShutdownNil(t *testing.T) {
	var tel *Telemetry
	assert.NoError(t, tel.Shutdown(context.Background()))
}
