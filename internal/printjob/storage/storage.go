package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/cloudprint/internal/printjob/domain"
	"github.com/jmoiron/sqlx"
)

const jobColumns = `
	job_id, tenant_id, store_id, printer_type, printer_id,
	content, raw_commands, status, status_message,
	retry_count, max_retries, created_at, updated_at, completed_at,
	created_by, source, related_order_id, related_entity_id, related_entity_type`

// Storage persists print jobs. Queries are written with ? placeholders and
// rebound for the connected driver.
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// JobFilter narrows ListPrintJobs results
type JobFilter struct {
	StoreID string
	Status  domain.JobStatus
	Limit   int
	Cursor  *JobCursor
}

// JobCursor marks the last row of a previous page
type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

type jobRow struct {
	JobID             string     `db:"job_id"`
	TenantID          string     `db:"tenant_id"`
	StoreID           string     `db:"store_id"`
	PrinterType       string     `db:"printer_type"`
	PrinterID         string     `db:"printer_id"`
	Content           string     `db:"content"`
	RawCommands       []byte     `db:"raw_commands"`
	Status            string     `db:"status"`
	StatusMessage     string     `db:"status_message"`
	RetryCount        int        `db:"retry_count"`
	MaxRetries        int        `db:"max_retries"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
	CompletedAt       *time.Time `db:"completed_at"`
	CreatedBy         string     `db:"created_by"`
	Source            string     `db:"source"`
	RelatedOrderID    string     `db:"related_order_id"`
	RelatedEntityID   string     `db:"related_entity_id"`
	RelatedEntityType string     `db:"related_entity_type"`
}

func (r *jobRow) toDomain() (*domain.PrintJob, error) {
	var content domain.PrintContent
	if err := json.Unmarshal([]byte(r.Content), &content); err != nil {
		return nil, fmt.Errorf("failed to decode content of job %s: %w", r.JobID, err)
	}

	job := &domain.PrintJob{
		JobID:             r.JobID,
		TenantID:          r.TenantID,
		StoreID:           r.StoreID,
		PrinterType:       domain.PrinterType(r.PrinterType),
		PrinterID:         r.PrinterID,
		Content:           content,
		RawCommands:       string(r.RawCommands),
		Status:            domain.JobStatus(r.Status),
		StatusMessage:     r.StatusMessage,
		RetryCount:        r.RetryCount,
		MaxRetries:        r.MaxRetries,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
		CreatedBy:         r.CreatedBy,
		Source:            domain.JobSource(r.Source),
		RelatedOrderID:    r.RelatedOrderID,
		RelatedEntityID:   r.RelatedEntityID,
		RelatedEntityType: r.RelatedEntityType,
	}
	if r.CompletedAt != nil {
		completed := r.CompletedAt.UTC()
		job.CompletedAt = &completed
	}

	return job, nil
}

// CreatePrintJob inserts a new job record
func (s *Storage) CreatePrintJob(ctx context.Context, job *domain.PrintJob) error {
	content, err := json.Marshal(job.Content)
	if err != nil {
		return fmt.Errorf("failed to encode content: %w", err)
	}

	query := s.db.Rebind(`
		INSERT INTO print_jobs (` + jobColumns + `
		) VALUES (
			?, ?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?, ?, ?
		)
	`)

	_, err = s.db.ExecContext(
		ctx,
		query,
		job.JobID,
		job.TenantID,
		job.StoreID,
		string(job.PrinterType),
		job.PrinterID,
		string(content),
		[]byte(job.RawCommands),
		string(job.Status),
		job.StatusMessage,
		job.RetryCount,
		job.MaxRetries,
		job.CreatedAt.UTC(),
		job.UpdatedAt.UTC(),
		utcOrNil(job.CompletedAt),
		job.CreatedBy,
		string(job.Source),
		job.RelatedOrderID,
		job.RelatedEntityID,
		job.RelatedEntityType,
	)
	if err != nil {
		return fmt.Errorf("failed to create print job: %w", err)
	}

	return nil
}

// GetPrintJob loads a job by id, returning domain.ErrJobNotFound when absent
func (s *Storage) GetPrintJob(ctx context.Context, jobID string) (*domain.PrintJob, error) {
	var row jobRow
	query := s.db.Rebind(`SELECT ` + jobColumns + ` FROM print_jobs WHERE job_id = ?`)

	if err := s.db.GetContext(ctx, &row, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get print job: %w", err)
	}

	return row.toDomain()
}

// ListPrintJobs returns jobs newest-first, capped at filter.Limit
func (s *Storage) ListPrintJobs(ctx context.Context, filter JobFilter) ([]*domain.PrintJob, error) {
	query := `SELECT ` + jobColumns + ` FROM print_jobs WHERE 1=1`
	args := []interface{}{}

	if filter.StoreID != "" {
		query += " AND store_id = ?"
		args = append(args, filter.StoreID)
	}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}

	if filter.Cursor != nil {
		query += " AND (created_at < ? OR (created_at = ? AND job_id < ?))"
		createdAt := filter.Cursor.CreatedAt.UTC()
		args = append(args, createdAt, createdAt, filter.Cursor.JobID)
	}

	// job_id breaks ties between rows created in the same instant
	query += " ORDER BY created_at DESC, job_id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list print jobs: %w", err)
	}

	jobs := make([]*domain.PrintJob, 0, len(rows))
	for i := range rows {
		job, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}

// UpdatePrintJobStatus sets status and message without checking the current status.
// completed_at is stamped for terminal statuses and cleared otherwise.
func (s *Storage) UpdatePrintJobStatus(ctx context.Context, jobID string, status domain.JobStatus, message string) error {
	now := s.now()

	var completedAt *time.Time
	if status.IsTerminal() {
		completedAt = &now
	}

	query := s.db.Rebind(`
		UPDATE print_jobs
		SET status = ?,
			status_message = ?,
			completed_at = ?,
			updated_at = ?
		WHERE job_id = ?
	`)

	result, err := s.db.ExecContext(ctx, query, string(status), message, completedAt, now, jobID)
	if err != nil {
		return fmt.Errorf("failed to update print job status: %w", err)
	}

	if err := requireRow(result, domain.ErrJobNotFound); err != nil {
		return err
	}

	s.logger.Info("Print job status updated",
		slog.String("job_id", jobID),
		slog.String("status", string(status)),
	)

	return nil
}

// FinishPrintJob moves a processing job to a terminal status. A job that left
// processing in the meantime is not touched and ErrInvalidTransition is returned.
func (s *Storage) FinishPrintJob(ctx context.Context, jobID string, status domain.JobStatus, message string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("%w: %s is not terminal", domain.ErrInvalidTransition, status)
	}

	now := s.now()

	query := s.db.Rebind(`
		UPDATE print_jobs
		SET status = ?,
			status_message = ?,
			completed_at = ?,
			updated_at = ?
		WHERE job_id = ?
		  AND status = ?
	`)

	result, err := s.db.ExecContext(ctx, query,
		string(status), message, now, now, jobID, string(domain.JobStatusProcessing))
	if err != nil {
		return fmt.Errorf("failed to finish print job: %w", err)
	}

	return requireRow(result, domain.ErrInvalidTransition)
}

// CancelPendingPrintJob fails a job only while it is pending. It reports false for
// jobs that are missing or in any other status.
func (s *Storage) CancelPendingPrintJob(ctx context.Context, jobID, message string) (bool, error) {
	now := s.now()

	query := s.db.Rebind(`
		UPDATE print_jobs
		SET status = ?,
			status_message = ?,
			completed_at = ?,
			updated_at = ?
		WHERE job_id = ?
		  AND status = ?
	`)

	result, err := s.db.ExecContext(ctx, query,
		string(domain.JobStatusFailed), message, now, now, jobID, string(domain.JobStatusPending))
	if err != nil {
		return false, fmt.Errorf("failed to cancel print job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows == 1, nil
}

// ClaimPrintJob moves a pending job to processing for one dispatch attempt.
// Concurrent claims on the same job succeed at most once.
func (s *Storage) ClaimPrintJob(ctx context.Context, jobID, message string) (*domain.PrintJob, error) {
	query := s.db.Rebind(`
		UPDATE print_jobs
		SET status = ?,
			status_message = ?,
			updated_at = ?
		WHERE job_id = ?
		  AND status = ?
	`)

	result, err := s.db.ExecContext(ctx, query,
		string(domain.JobStatusProcessing), message, s.now(), jobID, string(domain.JobStatusPending))
	if err != nil {
		return nil, fmt.Errorf("failed to claim print job: %w", err)
	}

	if err := requireRow(result, domain.ErrJobNotClaimable); err != nil {
		if _, getErr := s.GetPrintJob(ctx, jobID); errors.Is(getErr, domain.ErrJobNotFound) {
			return nil, domain.ErrJobNotFound
		}
		s.logger.Warn("Failed to claim print job - not pending",
			slog.String("job_id", jobID),
		)
		return nil, err
	}

	return s.GetPrintJob(ctx, jobID)
}

// RequeuePrintJob returns a processing job to pending and counts the failed attempt
func (s *Storage) RequeuePrintJob(ctx context.Context, jobID, message string) error {
	query := s.db.Rebind(`
		UPDATE print_jobs
		SET status = ?,
			status_message = ?,
			retry_count = retry_count + 1,
			updated_at = ?
		WHERE job_id = ?
		  AND status = ?
	`)

	result, err := s.db.ExecContext(ctx, query,
		string(domain.JobStatusPending), message, s.now(), jobID, string(domain.JobStatusProcessing))
	if err != nil {
		return fmt.Errorf("failed to requeue print job: %w", err)
	}

	return requireRow(result, domain.ErrInvalidTransition)
}

// FailStalePrintJobs fails processing jobs not touched since before cutoff and
// returns how many were changed.
func (s *Storage) FailStalePrintJobs(ctx context.Context, cutoff time.Time, message string) (int64, error) {
	now := s.now()

	query := s.db.Rebind(`
		UPDATE print_jobs
		SET status = ?,
			status_message = ?,
			completed_at = ?,
			updated_at = ?
		WHERE status = ?
		  AND updated_at < ?
	`)

	result, err := s.db.ExecContext(ctx, query,
		string(domain.JobStatusFailed), message, now, now, string(domain.JobStatusProcessing), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to fail stale print jobs: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows > 0 {
		s.logger.Warn("Failed stale print jobs",
			slog.Int64("count", rows),
			slog.Time("cutoff", cutoff),
		)
	}

	return rows, nil
}

func requireRow(result sql.Result, errNone error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errNone
	}
	return nil
}

func utcOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
