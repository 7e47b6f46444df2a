package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/cloudprint/internal/printing"
	"github.com/cuongbtq/cloudprint/internal/printjob/domain"
	"github.com/cuongbtq/cloudprint/internal/printjob/service"
	"github.com/gin-gonic/gin"
)

// JobService is the print job API the handlers call
type JobService interface {
	CreatePrintJob(ctx context.Context, in service.CreatePrintJobInput) (*domain.PrintJob, error)
	GetPrintJob(ctx context.Context, jobID string) (*domain.PrintJob, error)
	GetPrintJobs(ctx context.Context, in service.ListPrintJobsInput) ([]*domain.PrintJob, error)
	UpdatePrintJobStatus(ctx context.Context, jobID string, status domain.JobStatus, message string) (*domain.PrintJob, error)
	CancelPrintJob(ctx context.Context, jobID string) (bool, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger      *slog.Logger
	Jobs        JobService
	Printers    *printing.Registry
	HealthCheck func(ctx context.Context) error
	ServiceName string
}

// JobHandler handles print job HTTP requests
type JobHandler struct {
	logger *slog.Logger
	jobs   JobService
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger: deps.Logger,
		jobs:   deps.Jobs,
	}
}

// OrderHandler handles order print fan-out requests
type OrderHandler struct {
	logger   *slog.Logger
	printers *printing.Registry
}

// NewOrderHandler creates a new OrderHandler instance
func NewOrderHandler(deps *Dependencies) *OrderHandler {
	return &OrderHandler{
		logger:   deps.Logger,
		printers: deps.Printers,
	}
}

// respondError maps service errors onto HTTP statuses
func respondError(c *gin.Context, logger *slog.Logger, err error, action string) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
			"field": verr.Field,
		})
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
	case errors.Is(err, domain.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Print job not found",
		})
	default:
		logger.Error("Failed to "+action, slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to " + action,
		})
	}
}
