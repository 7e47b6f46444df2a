package domain

import "time"

// PrintJob is one request to render and transmit content to a printer.
//
// The record is a best-effort status cache: a crash between the gateway accepting a
// payload and the job being marked completed leaves the job in processing. Nothing
// reconciles the record with a device acknowledgement.
type PrintJob struct {
	JobID         string       `json:"job_id"`
	TenantID      string       `json:"tenant_id"`
	StoreID       string       `json:"store_id"`
	PrinterType   PrinterType  `json:"printer_type"`
	PrinterID     string       `json:"printer_id,omitempty"`
	Content       PrintContent `json:"content"`
	RawCommands   string       `json:"raw_commands"`
	Status        JobStatus    `json:"status"`
	StatusMessage string       `json:"status_message,omitempty"`
	RetryCount    int          `json:"retry_count"`
	MaxRetries    int          `json:"max_retries"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	CompletedAt   *time.Time   `json:"completed_at,omitempty"`
	CreatedBy     string       `json:"created_by,omitempty"`
	Source        JobSource    `json:"source"`

	RelatedOrderID    string `json:"related_order_id,omitempty"`
	RelatedEntityID   string `json:"related_entity_id,omitempty"`
	RelatedEntityType string `json:"related_entity_type,omitempty"`
}

// CanRetry reports whether another pending → processing attempt is allowed.
func (j *PrintJob) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// JobMessage is the broker message announcing a job ready for dispatch
type JobMessage struct {
	JobID       string `json:"job_id"`
	DeliveryTag uint64 `json:"-"`
}
