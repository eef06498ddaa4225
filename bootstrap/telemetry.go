package bootstrap

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/najoast/sngo-iot/config"
	"github.com/najoast/sngo-iot/logger"
)

const (
	exportTimeout   = 30 * time.Second
	traceBatchSize  = 512
	traceBatchDelay = 5 * time.Second
	tracerName      = "github.com/najoast/sngo-iot"
)

// TelemetryService owns the meter provider the device actors report to and,
// when traces are on, the tracer the hub opens request spans with. With
// monitoring disabled it hands out a no-op meter provider and no tracer.
// Both signals are pushed over OTLP/gRPC when an endpoint is configured;
// extra readers and span processors, used by tests, are attached either way.
type TelemetryService struct {
	cfg        config.MonitorConfig
	app        config.AppConfig
	readers    []sdkmetric.Reader
	processors []sdktrace.SpanProcessor
	log        *logger.Logger

	provider metric.MeterProvider
	tracer   trace.Tracer
	shutdown []func(context.Context) error
}

// NewTelemetryService creates the service from the app and monitor sections.
func NewTelemetryService(cfg *config.Config, log *logger.Logger, readers []sdkmetric.Reader, processors []sdktrace.SpanProcessor) *TelemetryService {
	return &TelemetryService{
		cfg:        cfg.Monitor,
		app:        cfg.App,
		readers:    readers,
		processors: processors,
		log:        log.With("component", "telemetry"),
	}
}

func (s *TelemetryService) Name() string {
	return ServiceTelemetry
}

func (s *TelemetryService) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.provider = noop.NewMeterProvider()
		s.log.Info("telemetry disabled")
		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(s.app.Name),
			semconv.ServiceVersionKey.String(s.app.Version),
			semconv.DeploymentEnvironmentKey.String(string(s.app.Environment)),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	if err := s.initMeterProvider(ctx, res); err != nil {
		return err
	}
	if s.cfg.Traces {
		if err := s.initTracerProvider(ctx, res); err != nil {
			_ = s.Stop(ctx)
			return err
		}
	}
	return nil
}

func (s *TelemetryService) initMeterProvider(ctx context.Context, res *resource.Resource) error {
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range s.readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}

	if s.cfg.Endpoint != "" {
		exporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(s.cfg.Endpoint),
			otlpmetricgrpc.WithInsecure(),
			otlpmetricgrpc.WithTimeout(exportTimeout),
		)
		if err != nil {
			return fmt.Errorf("failed to create metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(s.cfg.MetricsInterval),
		)))
		s.log.Info("exporting metrics", "endpoint", s.cfg.Endpoint, "interval", s.cfg.MetricsInterval)
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	s.provider = mp
	s.shutdown = append(s.shutdown, mp.Shutdown)
	return nil
}

func (s *TelemetryService) initTracerProvider(ctx context.Context, res *resource.Resource) error {
	sampler := sdktrace.ParentBased(sdktrace.TraceIDRatioBased(s.cfg.TraceSampleRate))
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	}
	for _, p := range s.processors {
		opts = append(opts, sdktrace.WithSpanProcessor(p))
	}

	if s.cfg.Endpoint != "" {
		exporter, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(s.cfg.Endpoint),
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithTimeout(exportTimeout),
		)
		if err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter,
			sdktrace.WithMaxExportBatchSize(traceBatchSize),
			sdktrace.WithBatchTimeout(traceBatchDelay),
		))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	s.tracer = tp.Tracer(tracerName)
	s.shutdown = append(s.shutdown, tp.Shutdown)
	s.log.Info("tracing enabled", "sample_rate", s.cfg.TraceSampleRate)
	return nil
}

func (s *TelemetryService) Stop(ctx context.Context) error {
	var errs []error
	for _, fn := range s.shutdown {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.shutdown = nil
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

func (s *TelemetryService) Health(ctx context.Context) (HealthStatus, error) {
	if s.provider == nil {
		return HealthStatus{State: HealthStopped, LastCheck: time.Now()}, nil
	}
	return HealthStatus{
		State:     HealthHealthy,
		LastCheck: time.Now(),
		Data: map[string]interface{}{
			"enabled":  s.cfg.Enabled,
			"traces":   s.tracer != nil,
			"endpoint": s.cfg.Endpoint,
		},
	}, nil
}

// MeterProvider returns the provider built by Start, or nil before that.
func (s *TelemetryService) MeterProvider() metric.MeterProvider {
	return s.provider
}

// Tracer returns the request tracer, or nil when tracing is off.
func (s *TelemetryService) Tracer() trace.Tracer {
	return s.tracer
}
