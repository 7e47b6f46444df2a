package dto

import (
	"time"

	"github.com/cuongbtq/cloudprint/internal/printjob/domain"
)

type CreatePrintJobRequest struct {
	TenantID          string               `json:"tenant_id"`
	StoreID           string               `json:"store_id"`
	PrinterType       string               `json:"printer_type"`
	PrinterID         string               `json:"printer_id"`
	Content           *domain.PrintContent `json:"content"`
	CreatedBy         string               `json:"created_by"`
	Source            string               `json:"source"`
	RelatedOrderID    string               `json:"related_order_id"`
	RelatedEntityID   string               `json:"related_entity_id"`
	RelatedEntityType string               `json:"related_entity_type"`
	MaxRetries        *int                 `json:"max_retries"`
	Language          string               `json:"language"`
}

type ListPrintJobsRequest struct {
	StoreID string `form:"store_id"`
	Status  string `form:"status"`
	Limit   int    `form:"limit"`
	Cursor  string `form:"cursor"`
}

type ListPrintJobsResponse struct {
	Jobs       []PrintJobDTO `json:"jobs"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

type UpdatePrintJobStatusRequest struct {
	Status        string `json:"status" binding:"required"`
	StatusMessage string `json:"status_message"`
}

type CancelPrintJobResponse struct {
	JobID     string `json:"job_id"`
	Cancelled bool   `json:"cancelled"`
}

type PrintJobDTO struct {
	JobID             string              `json:"job_id"`
	TenantID          string              `json:"tenant_id"`
	StoreID           string              `json:"store_id"`
	PrinterType       string              `json:"printer_type"`
	PrinterID         string              `json:"printer_id,omitempty"`
	Content           domain.PrintContent `json:"content"`
	RawCommands       string              `json:"raw_commands"`
	Status            string              `json:"status"`
	StatusMessage     string              `json:"status_message,omitempty"`
	RetryCount        int                 `json:"retry_count"`
	MaxRetries        int                 `json:"max_retries"`
	CreatedAt         string              `json:"created_at"`
	UpdatedAt         string              `json:"updated_at"`
	CompletedAt       *string             `json:"completed_at,omitempty"`
	CreatedBy         string              `json:"created_by,omitempty"`
	Source            string              `json:"source"`
	RelatedOrderID    string              `json:"related_order_id,omitempty"`
	RelatedEntityID   string              `json:"related_entity_id,omitempty"`
	RelatedEntityType string              `json:"related_entity_type,omitempty"`
}

// NewPrintJobDTO converts a job for the wire
func NewPrintJobDTO(job *domain.PrintJob) PrintJobDTO {
	out := PrintJobDTO{
		JobID:             job.JobID,
		TenantID:          job.TenantID,
		StoreID:           job.StoreID,
		PrinterType:       string(job.PrinterType),
		PrinterID:         job.PrinterID,
		Content:           job.Content,
		RawCommands:       job.RawCommands,
		Status:            string(job.Status),
		StatusMessage:     job.StatusMessage,
		RetryCount:        job.RetryCount,
		MaxRetries:        job.MaxRetries,
		CreatedAt:         job.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:         job.UpdatedAt.Format(time.RFC3339Nano),
		CreatedBy:         job.CreatedBy,
		Source:            string(job.Source),
		RelatedOrderID:    job.RelatedOrderID,
		RelatedEntityID:   job.RelatedEntityID,
		RelatedEntityType: job.RelatedEntityType,
	}
	if job.CompletedAt != nil {
		completed := job.CompletedAt.Format(time.RFC3339Nano)
		out.CompletedAt = &completed
	}
	return out
}
