package manager

import (
	"context"
	"log/slog"
	"time"

	"github.com/wwppc/contestd/pkg/cron"
)

const DefaultDiscoverySchedule = "@every 1m"

// discoveryLoop runs fn once immediately and then on every activation of the
// schedule until ctx is done.
func discoveryLoop(ctx context.Context, schedule *cron.Schedule, now func() time.Time, fn func(context.Context) error, logger *slog.Logger) error {
	logger.Info("contest discovery started", slog.String("schedule", schedule.String()))

	for {
		if err := fn(ctx); err != nil {
			logger.Error("contest discovery failed", slog.Any("error", err))
		}

		next := schedule.Next(now(), "")
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info("contest discovery stopping")

			return ctx.Err()
		case <-timer.C:
		}
	}
}
