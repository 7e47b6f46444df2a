package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// StaleMessage is recorded on jobs failed by the sweeper
const StaleMessage = "dispatch outcome unknown"

// startSweeper schedules Sweep when a schedule is configured
func (w *Worker) startSweeper(ctx context.Context) error {
	if w.schedule == "" {
		return nil
	}

	w.cron = cron.New()
	_, err := w.cron.AddFunc(w.schedule, func() {
		if _, err := w.Sweep(ctx); err != nil {
			w.logger.Error("Stale job sweep failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", w.schedule, err)
	}

	w.cron.Start()
	w.logger.Info("Stale job sweeper started",
		slog.String("schedule", w.schedule),
		slog.Duration("stale_after", w.staleAfter),
	)
	return nil
}

// Sweep fails jobs left in processing for longer than the stale threshold,
// typically by a worker that died between sending and recording the result.
func (w *Worker) Sweep(ctx context.Context) (int64, error) {
	return w.store.FailStalePrintJobs(ctx, w.now().Add(-w.staleAfter), StaleMessage)
}
