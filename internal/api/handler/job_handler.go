package handler

import (
	"log/slog"
	"net/http"

	"github.com/cuongbtq/cloudprint/internal/api/dto"
	"github.com/cuongbtq/cloudprint/internal/formatter"
	"github.com/cuongbtq/cloudprint/internal/printjob/domain"
	"github.com/cuongbtq/cloudprint/internal/printjob/service"
	"github.com/cuongbtq/cloudprint/internal/printjob/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxPageSize = 100

// CreatePrintJob handles POST /api/v1/print-jobs
func (h *JobHandler) CreatePrintJob(c *gin.Context) {
	var req dto.CreatePrintJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	in := service.CreatePrintJobInput{
		TenantID:          req.TenantID,
		StoreID:           req.StoreID,
		PrinterType:       domain.PrinterType(req.PrinterType),
		PrinterID:         req.PrinterID,
		CreatedBy:         req.CreatedBy,
		Source:            domain.JobSource(req.Source),
		RelatedOrderID:    req.RelatedOrderID,
		RelatedEntityID:   req.RelatedEntityID,
		RelatedEntityType: req.RelatedEntityType,
		MaxRetries:        req.MaxRetries,
		Language:          formatter.Language(req.Language),
	}
	if req.Content != nil {
		in.Content = *req.Content
	}

	job, err := h.jobs.CreatePrintJob(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.logger, err, "create print job")
		return
	}

	c.JSON(http.StatusCreated, dto.NewPrintJobDTO(job))
}

// GetPrintJob handles GET /api/v1/print-jobs/:job_id
func (h *JobHandler) GetPrintJob(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	job, err := h.jobs.GetPrintJob(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, h.logger, err, "get print job")
		return
	}

	c.JSON(http.StatusOK, dto.NewPrintJobDTO(job))
}

// ListPrintJobs handles GET /api/v1/print-jobs
func (h *JobHandler) ListPrintJobs(c *gin.Context) {
	var req dto.ListPrintJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.Limit <= 0 {
		req.Limit = domain.DefaultListLimit
	}
	if req.Limit > maxPageSize {
		req.Limit = maxPageSize
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	// One extra row tells whether another page exists
	jobs, err := h.jobs.GetPrintJobs(c.Request.Context(), service.ListPrintJobsInput{
		StoreID: req.StoreID,
		Status:  domain.JobStatus(req.Status),
		Limit:   req.Limit + 1,
		Cursor:  cursor,
	})
	if err != nil {
		respondError(c, h.logger, err, "list print jobs")
		return
	}

	hasMore := len(jobs) > req.Limit
	if hasMore {
		jobs = jobs[:req.Limit]
	}

	resp := dto.ListPrintJobsResponse{Jobs: make([]dto.PrintJobDTO, len(jobs))}
	for i, job := range jobs {
		resp.Jobs[i] = dto.NewPrintJobDTO(job)
	}

	if hasMore {
		last := jobs[len(jobs)-1]
		resp.NextCursor = EncodeJobCursor(&storage.JobCursor{
			CreatedAt: last.CreatedAt,
			JobID:     last.JobID,
		})
	}

	c.JSON(http.StatusOK, resp)
}

// UpdatePrintJobStatus handles PATCH /api/v1/print-jobs/:job_id/status
func (h *JobHandler) UpdatePrintJobStatus(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	var req dto.UpdatePrintJobStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	job, err := h.jobs.UpdatePrintJobStatus(c.Request.Context(), jobID, domain.JobStatus(req.Status), req.StatusMessage)
	if err != nil {
		respondError(c, h.logger, err, "update print job status")
		return
	}

	c.JSON(http.StatusOK, dto.NewPrintJobDTO(job))
}

// CancelPrintJob handles POST /api/v1/print-jobs/:job_id/cancel.
// cancelled is false both for unknown jobs and for jobs past pending.
func (h *JobHandler) CancelPrintJob(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	cancelled, err := h.jobs.CancelPrintJob(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, h.logger, err, "cancel print job")
		return
	}

	c.JSON(http.StatusOK, dto.CancelPrintJobResponse{
		JobID:     jobID,
		Cancelled: cancelled,
	})
}

func (h *JobHandler) jobID(c *gin.Context) (string, bool) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		h.logger.Error("Invalid job_id format", slog.String("job_id", jobID), slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return "", false
	}
	return jobID, true
}
