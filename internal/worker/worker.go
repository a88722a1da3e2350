// Package worker executes statement extraction jobs: fetch the document,
// run the pipeline, persist the result, record the run.
package worker

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"github.com/contaflow/bankparse/internal/bigquery"
	"github.com/contaflow/bankparse/internal/gcsstore"
	"github.com/contaflow/bankparse/internal/jobs"
	"github.com/contaflow/bankparse/internal/pipeline"
	"github.com/contaflow/bankparse/internal/statement"
)

// Warehouse is the slice of the result store the worker needs.
type Warehouse interface {
	StartExtractionRun(ctx context.Context, documentID, companyID string) (string, error)
	InsertTransactions(ctx context.Context, rows []*bigquery.TransactionRow) error
	MarkExtractionRunSucceeded(ctx context.Context, runID, institution, strategy string, txCount int, reconciled bool) error
	MarkExtractionRunFailed(ctx context.Context, runID string, runErr error) error
}

// Processor handles extraction jobs end to end.
type Processor struct {
	storage   gcsstore.StorageService
	engine    *pipeline.Engine
	warehouse Warehouse // nil skips persistence
	opts      pipeline.Options
	log       zerolog.Logger

	// OnResult, when set, receives each successfully extracted result after
	// persistence. One-shot callers use it to report the outcome.
	OnResult func(job *jobs.ExtractStatementJob, res *pipeline.Result)
}

// NewProcessor creates a Processor. warehouse may be nil for dry runs.
func NewProcessor(storage gcsstore.StorageService, engine *pipeline.Engine, warehouse Warehouse, opts pipeline.Options, log zerolog.Logger) *Processor {
	return &Processor{
		storage:   storage,
		engine:    engine,
		warehouse: warehouse,
		opts:      opts,
		log:       log,
	}
}

// Handle implements jobs.JobHandler for extraction jobs.
func (p *Processor) Handle(ctx context.Context, job jobs.Job) error {
	ej, ok := job.(*jobs.ExtractStatementJob)
	if !ok {
		return fmt.Errorf("unexpected job type: %T", job)
	}

	log := p.log.With().Str("job_id", ej.JobID).Str("gcs_uri", ej.GCSURI).Logger()
	log.Info().Msg("processing extraction job")

	content, err := p.storage.Fetch(ctx, ej.GCSURI)
	if err != nil {
		return fmt.Errorf("fetch document: %w", err)
	}

	docType, err := resolveDocType(ej.DocumentType, ej.GCSURI)
	if err != nil {
		return err
	}

	doc := statement.Document{
		Content:   content,
		Type:      docType,
		Filename:  p.storage.FilenameFromURI(ej.GCSURI),
		CompanyID: ej.CompanyID,
		UserID:    ej.UserID,
		AccountID: ej.AccountID,
	}

	var runID string
	if p.warehouse != nil {
		runID, err = p.warehouse.StartExtractionRun(ctx, ej.DocumentID, ej.CompanyID)
		if err != nil {
			return fmt.Errorf("start extraction run: %w", err)
		}
		ej.ExtractionRunID = runID
	}

	res, err := p.engine.Process(ctx, doc, p.opts)
	if err != nil {
		if p.warehouse != nil {
			if mErr := p.warehouse.MarkExtractionRunFailed(ctx, runID, err); mErr != nil {
				log.Error().Err(mErr).Msg("failed to record run failure")
			}
		}
		return err
	}

	for _, issue := range res.Report.Issues {
		log.Warn().
			Str("severity", string(issue.Severity)).
			Str("code", issue.Code).
			Msg(issue.Message)
	}

	if p.warehouse != nil {
		rows := bigquery.RowsFromTransactions(doc, ej.DocumentID, runID, res.Transactions)
		if err := p.warehouse.InsertTransactions(ctx, rows); err != nil {
			if mErr := p.warehouse.MarkExtractionRunFailed(ctx, runID, err); mErr != nil {
				log.Error().Err(mErr).Msg("failed to record run failure")
			}
			return err
		}
		if err := p.warehouse.MarkExtractionRunSucceeded(ctx, runID, string(res.Institution), string(res.Strategy), len(res.Transactions), res.Report.BalanceReconciled); err != nil {
			log.Error().Err(err).Msg("failed to record run success")
		}
	}

	ej.Strategy = string(res.Strategy)
	ej.TransactionCount = len(res.Transactions)

	if p.OnResult != nil {
		p.OnResult(ej, res)
	}

	log.Info().
		Str("strategy", ej.Strategy).
		Int("transactions", ej.TransactionCount).
		Msg("extraction job completed")
	return nil
}

// resolveDocType prefers the declared type and falls back to the URI
// extension.
func resolveDocType(declared, uri string) (statement.DocumentType, error) {
	s := strings.ToLower(strings.TrimSpace(declared))
	if s == "" {
		s = strings.TrimPrefix(strings.ToLower(path.Ext(uri)), ".")
	}
	switch s {
	case "pdf":
		return statement.DocPDF, nil
	case "xlsx", "xls":
		return statement.DocXLSX, nil
	case "csv":
		return statement.DocCSV, nil
	default:
		return "", fmt.Errorf("unsupported document type %q for %s", s, uri)
	}
}
