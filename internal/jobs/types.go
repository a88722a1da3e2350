// Package jobs defines the asynchronous statement-extraction job contract
// shared by the queue implementations and the worker.
package jobs

import (
	"context"
	"time"
)

// JobType identifies what a job does.
type JobType string

// JobTypeExtractStatement is a statement extraction job.
const JobTypeExtractStatement JobType = "extract_statement"

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// ExtractStatementJob asks the worker to pull a statement document from GCS
// and run the extraction pipeline over it.
type ExtractStatementJob struct {
	JobID string `json:"job_id"`

	CompanyID string `json:"company_id"`
	UserID    string `json:"user_id,omitempty"`
	AccountID string `json:"account_id,omitempty"`

	GCSURI       string `json:"gcs_uri"`
	DocumentID   string `json:"document_id,omitempty"`
	DocumentType string `json:"document_type,omitempty"` // pdf/xlsx/csv; inferred from the URI when empty

	Status    JobStatus  `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	DoneAt    *time.Time `json:"done_at,omitempty"`

	Error      string `json:"error,omitempty"`
	RetryCount int    `json:"retry_count"`
	MaxRetries int    `json:"max_retries"`

	// Populated on completion.
	ExtractionRunID  string `json:"extraction_run_id,omitempty"`
	Strategy         string `json:"strategy,omitempty"`
	TransactionCount int    `json:"transaction_count,omitempty"`
}

// Job is the generic job interface.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *ExtractStatementJob) GetID() string        { return j.JobID }
func (j *ExtractStatementJob) GetType() JobType     { return JobTypeExtractStatement }
func (j *ExtractStatementJob) GetStatus() JobStatus { return j.Status }

// Publisher enqueues extraction jobs. Implementations may be in-memory or a
// hosted queue.
type Publisher interface {
	PublishExtractStatement(ctx context.Context, job *ExtractStatementJob) error
	Close() error
}

// Consumer delivers jobs to a handler.
type Consumer interface {
	Start(ctx context.Context, handler JobHandler) error
	Stop(ctx context.Context) error
}

// JobHandler processes one job. A returned error triggers a retry until the
// job's retry budget runs out.
type JobHandler func(ctx context.Context, job Job) error

// JobStore tracks job state across the queue lifecycle.
type JobStore interface {
	SaveJob(ctx context.Context, job *ExtractStatementJob) error
	GetJob(ctx context.Context, jobID string) (*ExtractStatementJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*ExtractStatementJob, error)
}

// JobFilter narrows ListJobs results.
type JobFilter struct {
	CompanyID string
	Status    JobStatus
	Limit     int
	Offset    int
}
