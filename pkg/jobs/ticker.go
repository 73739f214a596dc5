package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Every runs fn immediately and then on each interval until ctx is done.
// Errors are logged and do not stop the loop.
func Every(ctx context.Context, name string, interval time.Duration, logger *zap.Logger, fn func(context.Context) error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		logger.Warn("periodic task disabled", zap.String("task", name))
		return
	}

	tick := func() {
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("periodic task failed", zap.String("task", name), zap.Error(err))
		}
	}

	tick()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick()
		}
	}
}
