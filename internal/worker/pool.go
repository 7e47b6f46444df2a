package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/cloudprint/internal/printjob/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop processes tasks until stopped. A job already taken off the
// channel runs to completion even when ctx is cancelled.
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	logger := w.logger.With(slog.String("worker_name", workerName))

	for {
		select {
		case <-w.stopChan:
			logger.Debug("Worker goroutine stopping - stopChan closed")
			return

		case <-ctx.Done():
			logger.Debug("Worker goroutine stopping - context canceled")
			return

		case t := <-w.jobsChan:
			err := w.processJob(context.WithoutCancel(ctx), t.msg)
			w.settle(logger, t, err)
		}
	}
}

// settle acknowledges the delivery according to the processing result
func (w *Worker) settle(logger *slog.Logger, t *task, err error) {
	logger = logger.With(slog.String("job_id", t.msg.JobID))

	if err == nil {
		if ackErr := t.delivery.Ack(false); ackErr != nil {
			logger.Error("Failed to ACK message", slog.String("error", ackErr.Error()))
		}
		return
	}

	requeue := shouldRequeueJob(err)
	logger.Warn("Job not completed",
		slog.String("error", err.Error()),
		slog.Bool("requeue", requeue),
	)

	if requeue {
		w.waitRetryDelay()
	}

	if nackErr := t.delivery.Nack(false, requeue); nackErr != nil {
		logger.Error("Failed to NACK message", slog.String("error", nackErr.Error()))
	}
}

func (w *Worker) waitRetryDelay() {
	if w.retryDelay <= 0 {
		return
	}

	timer := time.NewTimer(w.retryDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-w.stopChan:
	}
}

// shouldRequeueJob determines if a job should be requeued based on the error type
func shouldRequeueJob(err error) bool {
	if errors.Is(err, domain.ErrJobNotClaimable) ||
		errors.Is(err, domain.ErrJobNotFound) ||
		errors.Is(err, domain.ErrMaxRetriesExceeded) ||
		errors.Is(err, domain.ErrPrinterNotConfigured) {
		return false
	}

	var retryableErr *domain.RetryableError
	return errors.As(err, &retryableErr)
}
