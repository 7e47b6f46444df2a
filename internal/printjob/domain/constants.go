package domain

// JobStatus is the lifecycle state of a print job.
type JobStatus string

// Print job status constants
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// PrinterType selects which printer role a job is routed to.
type PrinterType string

const (
	PrinterTypeKitchen PrinterType = "kitchen"
	PrinterTypeReceipt PrinterType = "receipt"
	PrinterTypeLabel   PrinterType = "label"
	PrinterTypeGeneral PrinterType = "general"
)

func (t PrinterType) Valid() bool {
	switch t {
	case PrinterTypeKitchen, PrinterTypeReceipt, PrinterTypeLabel, PrinterTypeGeneral:
		return true
	}
	return false
}

// JobSource records who or what originated a job.
type JobSource string

const (
	JobSourceUser   JobSource = "user"
	JobSourceSystem JobSource = "system"
	JobSourceAuto   JobSource = "auto"
)

func (s JobSource) Valid() bool {
	switch s {
	case JobSourceUser, JobSourceSystem, JobSourceAuto:
		return true
	}
	return false
}

const (
	// DefaultMaxRetries bounds re-dispatch attempts when the caller does not set one.
	DefaultMaxRetries = 3

	// DefaultListLimit is the page size for status queries.
	DefaultListLimit = 30

	// CancelledMessage is stored on jobs cancelled while pending.
	CancelledMessage = "manually cancelled"
)
