// Package printing fans business events out to a store's printer roles.
package printing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/cloudprint/internal/dispatch"
	"github.com/cuongbtq/cloudprint/internal/formatter"
	"github.com/cuongbtq/cloudprint/internal/printjob/domain"
	"github.com/cuongbtq/cloudprint/internal/printjob/service"
	"golang.org/x/sync/errgroup"
)

// Sender delivers raw commands to one printer
type Sender interface {
	Send(ctx context.Context, raw string, opts ...dispatch.SendOption) (*dispatch.Response, error)
	Language() formatter.Language
}

// JobRecorder tracks each dispatch as a print job. *service.Service satisfies it.
type JobRecorder interface {
	CreatePrintJob(ctx context.Context, in service.CreatePrintJobInput) (*domain.PrintJob, error)
	UpdatePrintJobStatus(ctx context.Context, jobID string, status domain.JobStatus, message string) (*domain.PrintJob, error)
}

// unavailableSender stands in for a role whose client could not be built, so the
// failure surfaces at dispatch time instead of at startup.
type unavailableSender struct {
	err error
}

func (u unavailableSender) Send(context.Context, string, ...dispatch.SendOption) (*dispatch.Response, error) {
	return nil, u.err
}

func (u unavailableSender) Language() formatter.Language {
	return formatter.DefaultLanguage
}

// Result reports each requested target. A nil field was not requested.
type Result struct {
	ReceiptPrinted     *bool `json:"receipt_printed"`
	KitchenSlipPrinted *bool `json:"kitchen_slip_printed"`
}

// FullOptions selects the targets of PrintOrderFull
type FullOptions struct {
	PrintReceipt bool
	PrintKitchen bool
	// Language overrides each printer's configured language when set.
	Language formatter.Language
}

// Service binds printer roles to senders
type Service struct {
	roles     map[domain.PrinterType]Sender
	formatter *formatter.Formatter
	recorder  JobRecorder
	logger    *slog.Logger
}

// Option configures a Service
type Option func(*Service)

// WithRecorder records every dispatch as a job
func WithRecorder(r JobRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithSender binds role to an already constructed sender
func WithSender(role domain.PrinterType, sender Sender) Option {
	return func(s *Service) { s.roles[role] = sender }
}

// NewService builds one dispatch client per configured role. A role with missing
// credentials is kept and fails when used.
func NewService(printers map[domain.PrinterType]dispatch.Config, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		roles:     make(map[domain.PrinterType]Sender, len(printers)),
		formatter: formatter.New(logger),
		logger:    logger,
	}

	for role, cfg := range printers {
		if cfg.SecretKey == "" {
			logger.Warn("Printer role configured without secret key",
				slog.String("role", string(role)),
				slog.String("printer_sn", cfg.Serial),
			)
		}

		client, err := dispatch.NewClient(cfg, logger)
		if err != nil {
			s.roles[role] = unavailableSender{err: fmt.Errorf("%s printer unavailable: %w", role, err)}
			continue
		}
		s.roles[role] = client
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Sender returns the sender bound to role
func (s *Service) Sender(role domain.PrinterType) (Sender, bool) {
	sender, ok := s.roles[role]
	return sender, ok
}

// PrintReceipt prints the customer receipt for order
func (s *Service) PrintReceipt(ctx context.Context, order Order) bool {
	return s.print(ctx, domain.PrinterTypeReceipt, order, domain.PrintContent{Body: order.Receipt(), Copies: 1}, "")
}

// PrintKitchenSlip prints the kitchen ticket for order
func (s *Service) PrintKitchenSlip(ctx context.Context, order Order) bool {
	return s.print(ctx, domain.PrinterTypeKitchen, order, domain.PrintContent{Body: order.Ticket(), Copies: 1}, "")
}

// PrintOrderFull prints the requested targets concurrently. Failures are only
// reported through the result and logs.
func (s *Service) PrintOrderFull(ctx context.Context, order Order, opts FullOptions) Result {
	var result Result
	var g errgroup.Group

	if opts.PrintReceipt {
		g.Go(func() error {
			ok := s.print(ctx, domain.PrinterTypeReceipt, order, domain.PrintContent{Body: order.Receipt(), Copies: 1}, opts.Language)
			result.ReceiptPrinted = &ok
			return nil
		})
	}

	if opts.PrintKitchen {
		g.Go(func() error {
			ok := s.print(ctx, domain.PrinterTypeKitchen, order, domain.PrintContent{Body: order.Ticket(), Copies: 1}, opts.Language)
			result.KitchenSlipPrinted = &ok
			return nil
		})
	}

	_ = g.Wait()

	return result
}

func (s *Service) print(ctx context.Context, role domain.PrinterType, order Order, content domain.PrintContent, lang formatter.Language) (ok bool) {
	logger := s.logger.With(
		slog.String("role", string(role)),
		slog.String("order_id", order.OrderID),
		slog.String("store_id", order.StoreID),
	)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Print dispatch panicked", slog.Any("panic", r))
			ok = false
		}
	}()

	sender, found := s.roles[role]
	if !found {
		logger.Warn("No printer configured for role")
		return false
	}

	if lang == "" {
		lang = sender.Language()
	}

	job := s.record(ctx, logger, role, order, content, lang)

	var raw string
	if job != nil {
		raw = job.RawCommands
		s.transition(ctx, logger, job, domain.JobStatusProcessing, "dispatching")
	} else {
		raw = s.formatter.Format(content, lang)
	}

	resp, err := sender.Send(ctx, raw)
	if err != nil {
		logger.Error("Print dispatch failed", slog.Any("error", err))
		if job != nil {
			s.transition(ctx, logger, job, domain.JobStatusFailed, err.Error())
		}
		return false
	}

	logger.Info("Print dispatched", slog.String("gateway_msg", resp.Msg))
	if job != nil {
		s.transition(ctx, logger, job, domain.JobStatusCompleted, "printed")
	}

	return true
}

func (s *Service) record(ctx context.Context, logger *slog.Logger, role domain.PrinterType, order Order, content domain.PrintContent, lang formatter.Language) *domain.PrintJob {
	if s.recorder == nil {
		return nil
	}

	job, err := s.recorder.CreatePrintJob(ctx, service.CreatePrintJobInput{
		TenantID:          order.TenantID,
		StoreID:           order.StoreID,
		PrinterType:       role,
		Content:           content,
		CreatedBy:         order.CreatedBy,
		Source:            domain.JobSourceSystem,
		RelatedOrderID:    order.OrderID,
		RelatedEntityID:   order.OrderID,
		RelatedEntityType: "order",
		Language:          lang,
		Inline:            true,
	})
	if err != nil {
		logger.Warn("Failed to record print job", slog.Any("error", err))
		return nil
	}

	return job
}

func (s *Service) transition(ctx context.Context, logger *slog.Logger, job *domain.PrintJob, status domain.JobStatus, message string) {
	if _, err := s.recorder.UpdatePrintJobStatus(ctx, job.JobID, status, message); err != nil {
		logger.Warn("Failed to update print job status",
			slog.String("job_id", job.JobID),
			slog.String("status", string(status)),
			slog.Any("error", err),
		)
	}
}
