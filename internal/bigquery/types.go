package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

// TransactionRow is one extracted movement in the transactions table.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"`

	CompanyID string `bigquery:"company_id"`
	UserID    string `bigquery:"user_id"`
	AccountID string `bigquery:"account_id"`

	DocumentID      string `bigquery:"document_id"`
	ExtractionRunID string `bigquery:"extraction_run_id"`

	TransactionDate civil.Date `bigquery:"transaction_date"`

	Amount       *big.Rat `bigquery:"amount"`
	BalanceAfter *big.Rat `bigquery:"balance_after"`

	Type string `bigquery:"type"` // CREDIT / DEBIT
	Kind string `bigquery:"kind"` // INCOME / EXPENSE / TRANSFER

	RawDescription        string              `bigquery:"raw_description"`
	NormalizedDescription bigquery.NullString `bigquery:"normalized_description"`
	DisplayName           bigquery.NullString `bigquery:"display_name"`

	Category  bigquery.NullString `bigquery:"category"`
	Reference bigquery.NullString `bigquery:"reference"`

	Confidence          float64             `bigquery:"confidence"`
	ClassificationModel bigquery.NullString `bigquery:"classification_model"`

	CreatedTS time.Time `bigquery:"created_ts"`
}

// ExtractionRunRow records one pipeline run over a document.
type ExtractionRunRow struct {
	ExtractionRunID string `bigquery:"extraction_run_id"`
	DocumentID      string `bigquery:"document_id"`
	CompanyID       string `bigquery:"company_id"`

	StartedTS  time.Time              `bigquery:"started_ts"`
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"`

	Institution string `bigquery:"institution"`
	Strategy    string `bigquery:"strategy"`

	Status       string `bigquery:"status"` // RUNNING / SUCCESS / FAILED
	ErrorMessage string `bigquery:"error_message"`

	TransactionCount  bigquery.NullInt64 `bigquery:"transaction_count"`
	BalanceReconciled bigquery.NullBool  `bigquery:"balance_reconciled"`
	Issues            []string           `bigquery:"issues"`
}
