package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestServerMetricsIncrementFrameCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewServerMetrics(reg)

	metrics.ServerFrame.Add(3)

	var out dto.Metric
	require.NoError(t, metrics.ServerFrame.Write(&out))
	require.Equal(t, float64(3), out.GetCounter().GetValue())
}

func TestClientMetricsRecordRollbackDepth(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewClientMetrics(reg)

	metrics.RollbackDepth.Observe(5)

	var out dto.Metric
	require.NoError(t, metrics.RollbackDepth.Write(&out))
	require.Equal(t, uint64(1), out.GetHistogram().GetSampleCount())
}
