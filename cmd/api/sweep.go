package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"tradedoc/internal/reminder"
)

func sweepEvery(ctx context.Context, scheduler *reminder.Scheduler, interval time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := scheduler.Sweep(ctx); err != nil {
			log.Error().Err(err).Msg("reminder sweep failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
