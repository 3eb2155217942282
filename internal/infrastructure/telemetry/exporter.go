package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Exporter is the OTLP collector every signal is shipped to.
type Exporter struct {
	Endpoint    string
	Insecure    bool
	ServiceName string
}

const shutdownTimeout = 10 * time.Second

// shutdownSignal flushes one provider within shutdownTimeout.
func shutdownSignal(ctx context.Context, signal string, logger *zap.Logger, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		logger.Error("Error shutting down telemetry", zap.String("signal", signal), zap.Error(err))
		return fmt.Errorf("failed to shutdown %s provider: %w", signal, err)
	}
	logger.Info("Telemetry provider shutdown complete", zap.String("signal", signal))
	return nil
}

func logStarted(logger *zap.Logger, signal string, exp Exporter, fields ...zap.Field) {
	logger.Info("Telemetry provider initialized", append([]zap.Field{
		zap.String("signal", signal),
		zap.String("collector_endpoint", exp.Endpoint),
		zap.String("service_name", exp.ServiceName),
	}, fields...)...)
}
