package device

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/najoast/sngo-iot/core/coretest"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "unexpected aggregation %T", data)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.deviceStarted(context.Background())
		m.readingRecorded(context.Background())
		m.queryFinished(context.Background(), map[string]Result{"d": TimedOut()}, 1)
	})
}

func TestMetricsRecordActivity(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics, err := NewMetrics(provider)
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Metrics = metrics

	system := newSystem(t)
	probe := coretest.New(t, system)
	manager := spawn(t, system, NewManager(opts))

	device1 := trackDevice(t, probe, manager, "g", "device1")
	trackDevice(t, probe, manager, "g", "device2")

	probe.Send(device1, RecordReading{RequestID: 1, Value: 1.0})
	coretest.Expect[ReadingRecorded](probe, timeout)

	probe.Send(manager, RequestAllReadings{RequestID: 2, GroupID: "g"})
	coretest.Expect[RespondAllReadings](probe, timeout)

	data := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, data["iot.devices.active"]))
	assert.Equal(t, int64(1), sumOf(t, data["iot.groups.active"]))
	assert.Equal(t, int64(1), sumOf(t, data["iot.readings.recorded.total"]))
	assert.Equal(t, int64(1), sumOf(t, data["iot.queries.total"]))

	results, ok := data["iot.query.results.total"].(metricdata.Sum[int64])
	require.True(t, ok)
	byStatus := make(map[string]int64)
	for _, dp := range results.DataPoints {
		status, _ := dp.Attributes.Value("status")
		byStatus[status.AsString()] += dp.Value
	}
	assert.Equal(t, map[string]int64{"value": 1, "not-available": 1}, byStatus)

	duration, ok := data["iot.query.duration.ms"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, duration.DataPoints, 1)
	assert.Equal(t, uint64(1), duration.DataPoints[0].Count)
}
