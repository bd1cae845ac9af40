package sink

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func Test_OTLP(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	o, err := newOTLP(reader)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, o.Emit(ctx, testMetric("set_0.metric_0", 3)))
	require.NoError(t, o.Emit(ctx, testMetric("set_0.metric_1", 9)))
	require.NoError(t, o.Flush(ctx))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)
	m := rm.ScopeMetrics[0].Metrics[0]
	assert.Equal(t, OTLPInstrument, m.Name)

	gauge, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 2)

	values := map[string]int64{}
	for _, dp := range gauge.DataPoints {
		name, ok := dp.Attributes.Value(attribute.Key("metric.name"))
		require.True(t, ok)
		values[name.AsString()] = dp.Value
		host, _ := dp.Attributes.Value(attribute.Key("host.name"))
		assert.Equal(t, "web01.example.com", host.AsString())
	}
	assert.Equal(t, map[string]int64{"set_0.metric_0": 3, "set_0.metric_1": 9}, values)

	require.NoError(t, o.Close())
}
