package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/cloudprint/internal/formatter"
	"github.com/cuongbtq/cloudprint/internal/printjob/domain"
	"github.com/cuongbtq/cloudprint/internal/printjob/storage"
	"github.com/google/uuid"
)

// Store is the persistence the service needs
type Store interface {
	CreatePrintJob(ctx context.Context, job *domain.PrintJob) error
	GetPrintJob(ctx context.Context, jobID string) (*domain.PrintJob, error)
	ListPrintJobs(ctx context.Context, filter storage.JobFilter) ([]*domain.PrintJob, error)
	UpdatePrintJobStatus(ctx context.Context, jobID string, status domain.JobStatus, message string) error
	CancelPendingPrintJob(ctx context.Context, jobID, message string) (bool, error)
}

// Publisher announces new jobs to the dispatch stage
type Publisher interface {
	Publish(ctx context.Context, body []byte, contentType string) error
}

// CreatePrintJobInput carries the caller-supplied fields of a new job
type CreatePrintJobInput struct {
	TenantID          string
	StoreID           string
	PrinterType       domain.PrinterType
	PrinterID         string
	Content           domain.PrintContent
	CreatedBy         string
	Source            domain.JobSource
	RelatedOrderID    string
	RelatedEntityID   string
	RelatedEntityType string
	MaxRetries        *int
	Language          formatter.Language

	// Inline marks jobs the caller dispatches itself; they are never published.
	Inline bool
}

// ListPrintJobsInput selects a page of a store's jobs
type ListPrintJobsInput struct {
	StoreID string
	Status  domain.JobStatus
	Limit   int
	Cursor  *storage.JobCursor
}

// Service creates print jobs and moves them through their lifecycle
type Service struct {
	store             Store
	formatter         *formatter.Formatter
	publisher         Publisher
	logger            *slog.Logger
	defaultLanguage   formatter.Language
	defaultMaxRetries int
	now               func() time.Time
	newID             func() string
}

// Option configures a Service
type Option func(*Service)

// WithPublisher enqueues every non-inline job after it is stored
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithDefaultLanguage sets the language used when the input names none
func WithDefaultLanguage(lang formatter.Language) Option {
	return func(s *Service) { s.defaultLanguage = lang }
}

// WithDefaultMaxRetries overrides domain.DefaultMaxRetries
func WithDefaultMaxRetries(n int) Option {
	return func(s *Service) { s.defaultMaxRetries = n }
}

// NewService creates a new Service
func NewService(store Store, f *formatter.Formatter, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:             store,
		formatter:         f,
		logger:            logger,
		defaultLanguage:   formatter.DefaultLanguage,
		defaultMaxRetries: domain.DefaultMaxRetries,
		now:               func() time.Time { return time.Now().UTC() },
		newID:             uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validateCreate(in *CreatePrintJobInput) error {
	if in.TenantID == "" {
		return domain.NewValidationError("tenant_id", "is required")
	}
	if in.StoreID == "" {
		return domain.NewValidationError("store_id", "is required")
	}
	if in.Content.Body == nil {
		return domain.NewValidationError("content", "is required")
	}
	if in.PrinterType != "" && !in.PrinterType.Valid() {
		return domain.NewValidationError("printer_type", fmt.Sprintf("unknown printer type %q", in.PrinterType))
	}
	if in.Source != "" && !in.Source.Valid() {
		return domain.NewValidationError("source", fmt.Sprintf("unknown source %q", in.Source))
	}
	if in.MaxRetries != nil && *in.MaxRetries < 0 {
		return domain.NewValidationError("max_retries", "must not be negative")
	}
	return nil
}

// CreatePrintJob validates the input, renders raw commands, and stores a pending job
func (s *Service) CreatePrintJob(ctx context.Context, in CreatePrintJobInput) (*domain.PrintJob, error) {
	if err := validateCreate(&in); err != nil {
		return nil, err
	}

	content := in.Content
	if content.Copies == 0 {
		content.Copies = 1
	}
	if err := content.Validate(); err != nil {
		return nil, err
	}

	printerType := in.PrinterType
	if printerType == "" {
		printerType = domain.PrinterTypeGeneral
	}

	source := in.Source
	if source == "" {
		source = domain.JobSourceUser
	}

	maxRetries := s.defaultMaxRetries
	if in.MaxRetries != nil {
		maxRetries = *in.MaxRetries
	}

	lang := in.Language
	if lang == "" {
		lang = s.defaultLanguage
	}

	now := s.now().Truncate(time.Microsecond)
	job := &domain.PrintJob{
		JobID:             s.newID(),
		TenantID:          in.TenantID,
		StoreID:           in.StoreID,
		PrinterType:       printerType,
		PrinterID:         in.PrinterID,
		Content:           content,
		RawCommands:       s.formatter.Format(content, lang),
		Status:            domain.JobStatusPending,
		RetryCount:        0,
		MaxRetries:        maxRetries,
		CreatedAt:         now,
		UpdatedAt:         now,
		CreatedBy:         in.CreatedBy,
		Source:            source,
		RelatedOrderID:    in.RelatedOrderID,
		RelatedEntityID:   in.RelatedEntityID,
		RelatedEntityType: in.RelatedEntityType,
	}

	if err := s.store.CreatePrintJob(ctx, job); err != nil {
		s.logger.Error("Failed to persist print job",
			slog.String("store_id", job.StoreID),
			slog.Any("error", err),
		)
		return nil, err
	}

	s.logger.Info("Print job created",
		slog.String("job_id", job.JobID),
		slog.String("store_id", job.StoreID),
		slog.String("printer_type", string(job.PrinterType)),
		slog.String("content_type", string(content.Type())),
	)

	if s.publisher != nil && !in.Inline {
		if err := s.enqueue(ctx, job); err != nil {
			return nil, err
		}
	}

	return job, nil
}

// enqueue publishes the job id. A job that cannot be announced is failed so it
// does not sit in pending with nobody to dispatch it.
func (s *Service) enqueue(ctx context.Context, job *domain.PrintJob) error {
	body, err := json.Marshal(domain.JobMessage{JobID: job.JobID})
	if err != nil {
		return fmt.Errorf("failed to marshal job message: %w", err)
	}

	if err := s.publisher.Publish(ctx, body, "application/json"); err != nil {
		s.logger.Error("Failed to enqueue print job",
			slog.String("job_id", job.JobID),
			slog.Any("error", err),
		)
		if updErr := s.store.UpdatePrintJobStatus(ctx, job.JobID, domain.JobStatusFailed, "enqueue failed: "+err.Error()); updErr != nil {
			s.logger.Error("Failed to mark unqueued job as failed",
				slog.String("job_id", job.JobID),
				slog.Any("error", updErr),
			)
		}
		return fmt.Errorf("failed to enqueue print job: %w", err)
	}

	return nil
}

// GetPrintJob returns one job or domain.ErrJobNotFound
func (s *Service) GetPrintJob(ctx context.Context, jobID string) (*domain.PrintJob, error) {
	return s.store.GetPrintJob(ctx, jobID)
}

// GetPrintJobs lists a store's jobs newest-first, DefaultListLimit per page unless set
func (s *Service) GetPrintJobs(ctx context.Context, in ListPrintJobsInput) ([]*domain.PrintJob, error) {
	if in.StoreID == "" {
		return nil, domain.NewValidationError("store_id", "is required")
	}
	if in.Status != "" && !in.Status.Valid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown status %q", in.Status))
	}

	limit := in.Limit
	if limit <= 0 {
		limit = domain.DefaultListLimit
	}

	return s.store.ListPrintJobs(ctx, storage.JobFilter{
		StoreID: in.StoreID,
		Status:  in.Status,
		Limit:   limit,
		Cursor:  in.Cursor,
	})
}

// UpdatePrintJobStatus applies a transition chosen by the caller and returns the
// updated job. The current status is not checked.
func (s *Service) UpdatePrintJobStatus(ctx context.Context, jobID string, status domain.JobStatus, message string) (*domain.PrintJob, error) {
	if !status.Valid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}

	if err := s.store.UpdatePrintJobStatus(ctx, jobID, status, message); err != nil {
		return nil, err
	}

	return s.store.GetPrintJob(ctx, jobID)
}

// CancelPrintJob fails a pending job. It returns false when the job is missing or
// no longer pending; callers that need to tell those apart should look the job up first.
func (s *Service) CancelPrintJob(ctx context.Context, jobID string) (bool, error) {
	ok, err := s.store.CancelPendingPrintJob(ctx, jobID, domain.CancelledMessage)
	if err != nil {
		return false, err
	}

	if ok {
		s.logger.Info("Print job cancelled", slog.String("job_id", jobID))
	}

	return ok, nil
}
