package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/cloudprint/internal/dispatch"
	"github.com/cuongbtq/cloudprint/internal/printjob/domain"
)

// processJob claims a pending job, sends its raw commands, and records the outcome.
// A nil return acknowledges the message; a RetryableError hands it back to the broker.
func (w *Worker) processJob(ctx context.Context, msg *domain.JobMessage) error {
	logger := w.logger.With(
		slog.String("job_id", msg.JobID),
		slog.String("worker_id", w.workerID),
	)

	job, err := w.store.ClaimPrintJob(ctx, msg.JobID, "dispatching")
	if err != nil {
		if errors.Is(err, domain.ErrJobNotClaimable) || errors.Is(err, domain.ErrJobNotFound) {
			logger.Warn("Job not claimable, skipping", slog.String("reason", err.Error()))
			return err
		}
		logger.Error("Failed to claim job", slog.String("error", err.Error()))
		return domain.NewRetryableError(fmt.Errorf("failed to claim job: %w", err))
	}

	logger = logger.With(
		slog.String("store_id", job.StoreID),
		slog.String("printer_type", string(job.PrinterType)),
		slog.Int("retry_count", job.RetryCount),
	)

	sender, ok := w.printers.Resolve(job.StoreID, job.PrinterType, job.PrinterID)
	if !ok {
		err := fmt.Errorf("%w for %s printer", domain.ErrPrinterNotConfigured, job.PrinterType)
		w.finish(ctx, logger, job.JobID, domain.JobStatusFailed, err.Error())
		return err
	}

	opts := []dispatch.SendOption{dispatch.WithCopies(job.Content.Copies)}
	if job.Content.Options != nil {
		opts = append(opts, dispatch.WithEncoding(job.Content.Options.Encoding))
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	resp, err := sender.Send(jobCtx, job.RawCommands, opts...)
	if err == nil {
		logger.Info("Job completed successfully", slog.String("gateway_msg", resp.Msg))
		w.finish(ctx, logger, job.JobID, domain.JobStatusCompleted, "printed")
		return nil
	}

	if !dispatch.IsTransport(err) {
		logger.Error("Gateway rejected job", slog.String("error", err.Error()))
		w.finish(ctx, logger, job.JobID, domain.JobStatusFailed, err.Error())
		return err
	}

	if !job.CanRetry() {
		logger.Warn("Job exceeded max retries", slog.Int("max_retries", job.MaxRetries))
		w.finish(ctx, logger, job.JobID, domain.JobStatusFailed, "max retries exceeded: "+err.Error())
		return fmt.Errorf("%w: %v", domain.ErrMaxRetriesExceeded, err)
	}

	if reqErr := w.store.RequeuePrintJob(ctx, job.JobID, err.Error()); reqErr != nil {
		logger.Error("Failed to requeue job", slog.String("error", reqErr.Error()))
		return fmt.Errorf("failed to requeue job: %w", reqErr)
	}

	logger.Info("Job will be retried", slog.String("error", err.Error()))
	return domain.NewRetryableError(err)
}

// finish writes the terminal status of a claimed job. A job the sweeper or an
// operator already moved out of processing keeps its status. Either way the
// message outcome does not change.
func (w *Worker) finish(ctx context.Context, logger *slog.Logger, jobID string, status domain.JobStatus, message string) {
	err := w.store.FinishPrintJob(ctx, jobID, status, message)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidTransition):
		logger.Warn("Job left processing before its outcome was recorded",
			slog.String("status", string(status)),
		)
	default:
		logger.Error("Failed to update job status",
			slog.String("status", string(status)),
			slog.String("error", err.Error()),
		)
	}
}
