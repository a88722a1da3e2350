// Package bigquery persists extraction output: transactions and run records.
// Streaming inserts for bulk rows, parameterized DML for run state changes.
package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/contaflow/bankparse/internal/statement"
)

const (
	transactionsTable   = "transactions"
	extractionRunsTable = "extraction_runs"
)

// Store wraps a BigQuery client bound to one project and dataset.
type Store struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewStore creates a Store. The caller owns the client lifetime via Close.
func NewStore(ctx context.Context, projectID, datasetID string) (*Store, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("bigquery: create client: %w", err)
	}
	return &Store{client: client, projectID: projectID, datasetID: datasetID}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Client exposes the underlying client so other stores can share the
// connection.
func (s *Store) Client() *bigquery.Client {
	return s.client
}

// InsertTransactions streams a batch of rows into the transactions table.
func (s *Store) InsertTransactions(ctx context.Context, rows []*TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}
	table := s.client.DatasetInProject(s.projectID, s.datasetID).Table(transactionsTable)
	if err := table.Inserter().Put(ctx, rows); err != nil {
		return fmt.Errorf("bigquery: insert transactions: %w", err)
	}
	return nil
}

// StartExtractionRun inserts a RUNNING run row and returns its ID.
func (s *Store) StartExtractionRun(ctx context.Context, documentID, companyID string) (string, error) {
	runID := uuid.NewString()

	q := s.client.Query(fmt.Sprintf(`
		INSERT %s.%s (extraction_run_id, document_id, company_id, started_ts, status)
		VALUES (@extraction_run_id, @document_id, @company_id, @started_ts, @status)
	`, s.datasetID, extractionRunsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "extraction_run_id", Value: runID},
		{Name: "document_id", Value: documentID},
		{Name: "company_id", Value: companyID},
		{Name: "started_ts", Value: time.Now()},
		{Name: "status", Value: "RUNNING"},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return "", fmt.Errorf("bigquery: start extraction run: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return "", fmt.Errorf("bigquery: start extraction run wait: %w", err)
	}
	if err := status.Err(); err != nil {
		return "", fmt.Errorf("bigquery: start extraction run status: %w", err)
	}
	return runID, nil
}

// MarkExtractionRunSucceeded finalizes a run with its outcome counters.
func (s *Store) MarkExtractionRunSucceeded(ctx context.Context, runID, institution, strategy string, txCount int, reconciled bool) error {
	q := s.client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    institution = @institution,
		    strategy = @strategy,
		    transaction_count = @transaction_count,
		    balance_reconciled = @balance_reconciled
		WHERE extraction_run_id = @extraction_run_id
	`, s.datasetID, extractionRunsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: "SUCCESS"},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "institution", Value: institution},
		{Name: "strategy", Value: strategy},
		{Name: "transaction_count", Value: int64(txCount)},
		{Name: "balance_reconciled", Value: reconciled},
		{Name: "extraction_run_id", Value: runID},
	}
	return s.runToCompletion(ctx, q, "mark run succeeded")
}

// MarkExtractionRunFailed finalizes a run with its error.
func (s *Store) MarkExtractionRunFailed(ctx context.Context, runID string, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	q := s.client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status, finished_ts = @finished_ts, error_message = @error_message
		WHERE extraction_run_id = @extraction_run_id
	`, s.datasetID, extractionRunsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: "FAILED"},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: msg},
		{Name: "extraction_run_id", Value: runID},
	}
	return s.runToCompletion(ctx, q, "mark run failed")
}

func (s *Store) runToCompletion(ctx context.Context, q *bigquery.Query, op string) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("bigquery: %s: %w", op, err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("bigquery: %s wait: %w", op, err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("bigquery: %s status: %w", op, err)
	}
	return nil
}

// RowsFromTransactions converts canonical transactions into insert rows.
func RowsFromTransactions(doc statement.Document, documentID, runID string, txs []statement.Transaction) []*TransactionRow {
	now := time.Now()
	rows := make([]*TransactionRow, 0, len(txs))
	for i := range txs {
		t := &txs[i]
		row := &TransactionRow{
			TransactionID:   uuid.NewString(),
			CompanyID:       doc.CompanyID,
			UserID:          doc.UserID,
			AccountID:       doc.AccountID,
			DocumentID:      documentID,
			ExtractionRunID: runID,
			Amount:          t.Amount.Rat(),
			Type:            string(t.Type),
			Kind:            string(t.Kind),
			RawDescription:  t.Description,
			Confidence:      t.Confidence,
			CreatedTS:       now,
		}
		if !t.Date.IsZero() {
			row.TransactionDate = civil.DateOf(t.Date)
		}
		if t.BalanceAfter != nil {
			row.BalanceAfter = t.BalanceAfter.Rat()
		}
		row.NormalizedDescription = bigquery.NullString{StringVal: t.NormalizedDescription(), Valid: true}
		if t.DisplayName != "" {
			row.DisplayName = bigquery.NullString{StringVal: t.DisplayName, Valid: true}
		}
		if t.Category != "" {
			row.Category = bigquery.NullString{StringVal: t.Category, Valid: true}
		}
		if t.Reference != "" {
			row.Reference = bigquery.NullString{StringVal: t.Reference, Valid: true}
		}
		if t.ClassificationModel != "" {
			row.ClassificationModel = bigquery.NullString{StringVal: t.ClassificationModel, Valid: true}
		}
		rows = append(rows, row)
	}
	return rows
}
