package main

import (
	"context"

	"github.com/shipbox/billing/internal/infrastructure/config"
	"github.com/shipbox/billing/internal/infrastructure/logger"
	"github.com/shipbox/billing/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const meterName = "github.com/shipbox/billing"

type telemetryStack struct {
	tracer   *telemetry.TracerProvider
	meters   *telemetry.MeterProvider
	logs     *telemetry.LoggerProvider
	profiler *telemetry.Profiler
	meter    metric.Meter
}

// setupTelemetry starts the OTLP providers and the profiler. When OTLP logs
// are enabled the returned logger also writes to the log exporter.
func setupTelemetry(ctx context.Context, cfg *config.Config, log *zap.Logger) (*telemetryStack, *zap.Logger) {
	t := &telemetryStack{}
	exp := telemetry.Exporter{
		Endpoint:    cfg.Telemetry.CollectorEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
		ServiceName: cfg.Telemetry.ServiceName,
	}
	var err error

	t.tracer, err = telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:       cfg.Telemetry.Enabled,
		SamplingRatio: cfg.Telemetry.SamplingRatio,
		Exporter:      exp,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}

	t.meters, err = telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:        cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		ExportInterval: cfg.Telemetry.MetricsInterval,
		Exporter:       exp,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	t.meter = t.meters.Meter(meterName)

	t.logs, err = telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:  cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		Exporter: exp,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	if t.logs.IsEnabled() {
		otelCore := telemetry.NewZapOTELCore(t.logs, cfg.Telemetry.ServiceName, logger.ParseLevel(cfg.Log.Level))
		log = log.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, otelCore)
		}))
	}

	t.profiler, err = telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Profiling.Enabled,
		ServerAddress:     cfg.Profiling.ServerAddress,
		ApplicationName:   cfg.Telemetry.ServiceName,
		BasicAuthUser:     cfg.Profiling.BasicAuthUser,
		BasicAuthPassword: cfg.Profiling.BasicAuthPassword,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if t.profiler.IsEnabled() && cfg.Profiling.SpanProfiles {
		t.tracer.EnableSpanProfiles()
	}

	return t, log
}

// httpMeter is nil unless metrics export, so the HTTP middleware stays a
// pass-through in development.
func (t *telemetryStack) httpMeter() metric.Meter {
	if !t.meters.IsEnabled() {
		return nil
	}
	return t.meter
}

// shutdown flushes the exporters, traces last so spans from the shutdown
// itself are kept. Each provider logs its own failure.
func (t *telemetryStack) shutdown(log *zap.Logger) {
	ctx := context.Background()

	if err := t.profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	_ = t.logs.Shutdown(ctx)
	_ = t.meters.Shutdown(ctx)
	_ = t.tracer.Shutdown(ctx)
}
