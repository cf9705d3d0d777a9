package observability

import (
	"context"
	"log/slog"
	"sync"
)

// Config captures observability toggles.
type Config struct {
	Enabled bool
	// Metrics 控制是否写入 Prometheus 指标
	Metrics bool
}

// ShutdownFunc allows callers to tear down any observability exporters.
type ShutdownFunc func(context.Context) error

var (
	loggerMu             sync.RWMutex
	instrumentationLog   *slog.Logger
	instrumentationState Config
)

func currentLogger() (*slog.Logger, Config) {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return instrumentationLog, instrumentationState
}

func metricsEnabled() bool {
	_, cfg := currentLogger()
	return cfg.Enabled && cfg.Metrics
}

// Setup installs the span logger and toggles metric collection.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (ShutdownFunc, error) {
	loggerMu.Lock()
	instrumentationLog = logger
	instrumentationState = cfg
	loggerMu.Unlock()

	if logger != nil {
		switch {
		case cfg.Enabled && cfg.Metrics:
			logger.InfoContext(ctx, "[OBSERVABILITY][SETUP] spans and prometheus metrics enabled")
		case cfg.Enabled:
			logger.InfoContext(ctx, "[OBSERVABILITY][SETUP] spans enabled, metrics disabled")
		default:
			logger.InfoContext(ctx, "[OBSERVABILITY][SETUP] disabled")
		}
	}
	return func(context.Context) error {
		loggerMu.Lock()
		instrumentationState = Config{}
		loggerMu.Unlock()
		return nil
	}, nil
}
