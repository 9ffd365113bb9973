package models

import "time"

// RegisterFormat selects the output format of a register export.
type RegisterFormat string

const (
	RegisterFormatCSV RegisterFormat = "csv"
	RegisterFormatPDF RegisterFormat = "pdf"
)

// Valid returns true when the format is supported.
func (f RegisterFormat) Valid() bool {
	return f == RegisterFormatCSV || f == RegisterFormatPDF
}

// RegisterStatus tracks an export job through the queue.
type RegisterStatus string

const (
	RegisterStatusQueued     RegisterStatus = "QUEUED"
	RegisterStatusProcessing RegisterStatus = "PROCESSING"
	RegisterStatusFinished   RegisterStatus = "FINISHED"
	RegisterStatusFailed     RegisterStatus = "FAILED"
)

// RegisterJob is an asynchronous export of a session's attendance register.
// FilePath is set once the job finishes; Error once it fails.
type RegisterJob struct {
	ID          string         `db:"id" json:"id"`
	SessionID   string         `db:"session_id" json:"session_id"`
	Format      RegisterFormat `db:"format" json:"format"`
	Status      RegisterStatus `db:"status" json:"status"`
	FilePath    *string        `db:"file_path" json:"-"`
	Error       *string        `db:"error" json:"error,omitempty"`
	RequestedBy string         `db:"requested_by" json:"requested_by"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}
