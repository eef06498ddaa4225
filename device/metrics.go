package device

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/najoast/sngo-iot/device"

// Metrics holds OpenTelemetry metric instruments for the device actors.
// A nil *Metrics records nothing.
type Metrics struct {
	meter metric.Meter

	// UpDownCounters (Gauges)
	devicesActive metric.Int64UpDownCounter
	groupsActive  metric.Int64UpDownCounter

	// Counters
	readingsRecorded metric.Int64Counter
	queriesTotal     metric.Int64Counter
	queryResults     metric.Int64Counter

	// Histograms
	queryDuration metric.Float64Histogram
}

// NewMetrics creates the instruments on provider, or on the global provider
// when provider is nil.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}

	m := &Metrics{
		meter: provider.Meter(meterName),
	}

	var err error

	m.devicesActive, err = m.meter.Int64UpDownCounter(
		"iot.devices.active",
		metric.WithDescription("Number of running device actors"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create devicesActive gauge: %w", err)
	}

	m.groupsActive, err = m.meter.Int64UpDownCounter(
		"iot.groups.active",
		metric.WithDescription("Number of running group actors"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create groupsActive gauge: %w", err)
	}

	m.readingsRecorded, err = m.meter.Int64Counter(
		"iot.readings.recorded.total",
		metric.WithDescription("Total readings recorded by devices"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create readingsRecorded counter: %w", err)
	}

	m.queriesTotal, err = m.meter.Int64Counter(
		"iot.queries.total",
		metric.WithDescription("Total bulk reads started"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create queriesTotal counter: %w", err)
	}

	m.queryResults, err = m.meter.Int64Counter(
		"iot.query.results.total",
		metric.WithDescription("Per-device bulk read outcomes by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create queryResults counter: %w", err)
	}

	m.queryDuration, err = m.meter.Float64Histogram(
		"iot.query.duration.ms",
		metric.WithDescription("Bulk read duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create queryDuration histogram: %w", err)
	}

	return m, nil
}

func (m *Metrics) deviceStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.devicesActive.Add(ctx, 1)
}

func (m *Metrics) deviceStopped(ctx context.Context) {
	if m == nil {
		return
	}
	m.devicesActive.Add(ctx, -1)
}

func (m *Metrics) groupStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.groupsActive.Add(ctx, 1)
}

func (m *Metrics) groupStopped(ctx context.Context) {
	if m == nil {
		return
	}
	m.groupsActive.Add(ctx, -1)
}

func (m *Metrics) readingRecorded(ctx context.Context) {
	if m == nil {
		return
	}
	m.readingsRecorded.Add(ctx, 1)
}

func (m *Metrics) queryStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.queriesTotal.Add(ctx, 1)
}

func (m *Metrics) queryFinished(ctx context.Context, results map[string]Result, durationMs float64) {
	if m == nil {
		return
	}
	for _, r := range results {
		m.queryResults.Add(ctx, 1, metric.WithAttributes(
			attribute.String("status", r.Status.String()),
		))
	}
	m.queryDuration.Record(ctx, durationMs)
}
