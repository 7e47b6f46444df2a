package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/cloudprint/internal/printing"
	"github.com/cuongbtq/cloudprint/internal/printjob/domain"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robfig/cron/v3"
)

// Store is the job persistence the worker drives
type Store interface {
	ClaimPrintJob(ctx context.Context, jobID, message string) (*domain.PrintJob, error)
	RequeuePrintJob(ctx context.Context, jobID, message string) error
	FinishPrintJob(ctx context.Context, jobID string, status domain.JobStatus, message string) error
	FailStalePrintJobs(ctx context.Context, cutoff time.Time, message string) (int64, error)
}

// Printers resolves the sender for a job's store, role and optional device
type Printers interface {
	Resolve(storeID string, role domain.PrinterType, printerID string) (printing.Sender, bool)
}

// Consumer delivers job messages. *rabbitmq.Client satisfies it.
type Consumer interface {
	Consume(consumerTag string, prefetch int) (<-chan amqp.Delivery, error)
}

// Config holds worker configuration
type Config struct {
	Logger      *slog.Logger
	Store       Store
	Printers    Printers
	Consumer    Consumer
	Concurrency int
	JobTimeout  time.Duration
	// RetryDelay is waited before a retryable message is handed back to the broker.
	RetryDelay    time.Duration
	SweepSchedule string
	StaleAfter    time.Duration
}

// task pairs a parsed message with the delivery that acknowledges it
type task struct {
	msg      *domain.JobMessage
	delivery amqp.Delivery
}

// Worker consumes job messages and dispatches them to printers
type Worker struct {
	logger      *slog.Logger
	store       Store
	printers    Printers
	consumer    Consumer
	concurrency int
	jobTimeout  time.Duration
	retryDelay  time.Duration
	staleAfter  time.Duration
	schedule    string
	workerID    string
	now         func() time.Time

	cron     *cron.Cron
	jobsChan chan *task
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	return &Worker{
		logger:      cfg.Logger,
		store:       cfg.Store,
		printers:    cfg.Printers,
		consumer:    cfg.Consumer,
		concurrency: cfg.Concurrency,
		jobTimeout:  cfg.JobTimeout,
		retryDelay:  cfg.RetryDelay,
		staleAfter:  cfg.StaleAfter,
		schedule:    cfg.SweepSchedule,
		workerID:    "worker-" + uuid.NewString()[:8],
		now:         func() time.Time { return time.Now().UTC() },
		jobsChan:    make(chan *task),
		stopChan:    make(chan struct{}),
	}
}

// Start consumes until ctx is cancelled or the delivery channel closes. A closed
// channel is reported as an error so the caller can restart the process.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return err
	}

	if err := w.startSweeper(ctx); err != nil {
		return err
	}

	w.spawnWorkerPool(ctx)

	if closed := w.startMessageDispatcher(ctx, deliveries); closed {
		return fmt.Errorf("delivery channel closed")
	}

	w.logger.Info("Worker context canceled, stopping...")
	return nil
}

// Stop waits for in-flight jobs and the sweeper to finish
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("Stopping worker...")
		close(w.stopChan)
		w.wg.Wait()
		if w.cron != nil {
			<-w.cron.Stop().Done()
		}
		w.logger.Info("Worker stopped")
	})
}
