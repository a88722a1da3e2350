package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/contaflow/bankparse/internal/bankrules"
	"github.com/contaflow/bankparse/internal/bigquery"
	"github.com/contaflow/bankparse/internal/jobs"
	"github.com/contaflow/bankparse/internal/jobs/inmemory"
	"github.com/contaflow/bankparse/internal/logger"
	"github.com/contaflow/bankparse/internal/normalize"
	"github.com/contaflow/bankparse/internal/pipeline"
	"github.com/contaflow/bankparse/internal/statement"
)

const csvStatement = `ESTADO DE CUENTA,BBVA MEXICO
SALDO ANTERIOR,"10,000.00"
01/07/2025,COMPRA OXXO GAS,-89.50,"9,910.50"
05/07/2025,SPEI RECIBIDO NOMINA,"5,000.00","14,910.50"
12/07/2025,PAGO TARJETA SERVICIO,"-1,500.00","13,410.50"
SALDO FINAL,"13,410.50"
`

// fakeStorage serves canned bytes per URI.
type fakeStorage struct {
	objects map[string][]byte
}

func (f *fakeStorage) Fetch(ctx context.Context, uri string) ([]byte, error) {
	data, ok := f.objects[uri]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", uri)
	}
	return data, nil
}

func (f *fakeStorage) Upload(ctx context.Context, bucket, object string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	uri := fmt.Sprintf("gs://%s/%s", bucket, object)
	f.objects[uri] = data
	return uri, nil
}

func (f *fakeStorage) FilenameFromURI(uri string) string {
	return path.Base(strings.TrimPrefix(uri, "gs://"))
}

// fakeWarehouse records the run lifecycle.
type fakeWarehouse struct {
	runID     string
	rows      []*bigquery.TransactionRow
	succeeded bool
	failed    bool
	lastErr   error
	insertErr error
}

func (f *fakeWarehouse) StartExtractionRun(ctx context.Context, documentID, companyID string) (string, error) {
	f.runID = "run-1"
	return f.runID, nil
}

func (f *fakeWarehouse) InsertTransactions(ctx context.Context, rows []*bigquery.TransactionRow) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.rows = append(f.rows, rows...)
	return nil
}

func (f *fakeWarehouse) MarkExtractionRunSucceeded(ctx context.Context, runID, institution, strategy string, txCount int, reconciled bool) error {
	f.succeeded = true
	return nil
}

func (f *fakeWarehouse) MarkExtractionRunFailed(ctx context.Context, runID string, runErr error) error {
	f.failed = true
	f.lastErr = runErr
	return nil
}

func testProcessor(storage *fakeStorage, wh Warehouse) *Processor {
	log := logger.NewWithWriter(&strings.Builder{})
	engine := pipeline.New(bankrules.NewRegistry(), normalize.NewClassifier(nil, log), nil, log)
	return NewProcessor(storage, engine, wh, pipeline.Options{}, log)
}

func TestHandleCompletesJob(t *testing.T) {
	storage := &fakeStorage{objects: map[string][]byte{
		"gs://statements/co-1/estado.csv": []byte(csvStatement),
	}}
	wh := &fakeWarehouse{}
	p := testProcessor(storage, wh)

	job := &jobs.ExtractStatementJob{
		JobID:      "job-1",
		CompanyID:  "co-1",
		DocumentID: "doc-1",
		GCSURI:     "gs://statements/co-1/estado.csv",
	}
	if err := p.Handle(context.Background(), job); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if job.ExtractionRunID != "run-1" {
		t.Errorf("run ID = %q, want run-1", job.ExtractionRunID)
	}
	if job.Strategy != string(pipeline.StrategyHeuristic) {
		t.Errorf("strategy = %q", job.Strategy)
	}
	if job.TransactionCount != 3 {
		t.Errorf("transaction count = %d, want 3", job.TransactionCount)
	}
	if len(wh.rows) != 3 {
		t.Fatalf("inserted %d rows, want 3", len(wh.rows))
	}
	if !wh.succeeded || wh.failed {
		t.Errorf("run lifecycle: succeeded=%v failed=%v", wh.succeeded, wh.failed)
	}

	row := wh.rows[0]
	if row.CompanyID != "co-1" || row.DocumentID != "doc-1" || row.ExtractionRunID != "run-1" {
		t.Errorf("row identity = %s/%s/%s", row.CompanyID, row.DocumentID, row.ExtractionRunID)
	}
	if row.Amount == nil {
		t.Error("row amount missing")
	}
	if row.TransactionID == "" {
		t.Error("row transaction ID missing")
	}
}

func TestHandleDeliversResult(t *testing.T) {
	storage := &fakeStorage{objects: map[string][]byte{
		"gs://statements/co-1/estado.csv": []byte(csvStatement),
	}}
	p := testProcessor(storage, nil)

	var gotJob *jobs.ExtractStatementJob
	var gotRes *pipeline.Result
	p.OnResult = func(job *jobs.ExtractStatementJob, res *pipeline.Result) {
		gotJob, gotRes = job, res
	}

	job := &jobs.ExtractStatementJob{
		JobID:     "job-1",
		CompanyID: "co-1",
		GCSURI:    "gs://statements/co-1/estado.csv",
	}
	if err := p.Handle(context.Background(), job); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if gotJob != job {
		t.Error("hook did not receive the handled job")
	}
	if gotRes == nil || len(gotRes.Transactions) != 3 {
		t.Fatalf("hook result = %+v, want 3 transactions", gotRes)
	}
}

func TestHandleFetchFailure(t *testing.T) {
	storage := &fakeStorage{objects: map[string][]byte{}}
	wh := &fakeWarehouse{}
	p := testProcessor(storage, wh)

	err := p.Handle(context.Background(), &jobs.ExtractStatementJob{
		JobID:  "job-1",
		GCSURI: "gs://statements/missing.csv",
	})
	if err == nil {
		t.Fatal("expected fetch error")
	}
	// No run was started, so nothing to mark.
	if wh.failed || wh.succeeded {
		t.Errorf("lifecycle touched on fetch failure: %+v", wh)
	}
}

func TestHandleMarksRunFailedOnPipelineError(t *testing.T) {
	storage := &fakeStorage{objects: map[string][]byte{
		"gs://statements/junk.csv": []byte("sin,datos\nutiles,aqui\n"),
	}}
	wh := &fakeWarehouse{}
	p := testProcessor(storage, wh)

	err := p.Handle(context.Background(), &jobs.ExtractStatementJob{
		JobID:  "job-1",
		GCSURI: "gs://statements/junk.csv",
	})
	if !errors.Is(err, statement.ErrAllStrategiesFailed) {
		t.Fatalf("err = %v, want ErrAllStrategiesFailed", err)
	}
	if !wh.failed {
		t.Error("run not marked failed")
	}
	if wh.succeeded {
		t.Error("failed run marked succeeded")
	}
}

func TestHandleMarksRunFailedOnInsertError(t *testing.T) {
	storage := &fakeStorage{objects: map[string][]byte{
		"gs://statements/estado.csv": []byte(csvStatement),
	}}
	wh := &fakeWarehouse{insertErr: errors.New("streaming quota")}
	p := testProcessor(storage, wh)

	err := p.Handle(context.Background(), &jobs.ExtractStatementJob{
		JobID:  "job-1",
		GCSURI: "gs://statements/estado.csv",
	})
	if err == nil {
		t.Fatal("expected insert error to propagate")
	}
	if !wh.failed {
		t.Error("run not marked failed after insert error")
	}
}

func TestUploadPublishProcessRoundTrip(t *testing.T) {
	// The ingest flow: upload the document, publish a job, let the queue
	// drive the processor to a terminal status.
	ctx := context.Background()
	storage := &fakeStorage{objects: map[string][]byte{}}

	uri, err := storage.Upload(ctx, "statements", "co-1/estado.csv", strings.NewReader(csvStatement))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if uri != "gs://statements/co-1/estado.csv" {
		t.Fatalf("uri = %q", uri)
	}

	p := testProcessor(storage, nil)
	jobStore := inmemory.NewStore()
	q := inmemory.NewQueue(1, 1, jobStore)
	if err := q.Start(ctx, p.Handle); err != nil {
		t.Fatalf("start queue: %v", err)
	}
	defer q.Stop(ctx)

	job := &jobs.ExtractStatementJob{CompanyID: "co-1", GCSURI: uri, MaxRetries: 1}
	if err := q.PublishExtractStatement(ctx, job); err != nil {
		t.Fatalf("publish: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		got, err := jobStore.GetJob(ctx, job.JobID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if got.Status == jobs.JobStatusCompleted {
			if got.TransactionCount != 3 {
				t.Errorf("transaction count = %d, want 3", got.TransactionCount)
			}
			break
		}
		if got.Status == jobs.JobStatusFailed {
			t.Fatalf("job failed: %s", got.Error)
		}
		if time.Now().After(deadline) {
			t.Fatalf("job stuck in status %q", got.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHandleRejectsWrongJobType(t *testing.T) {
	p := testProcessor(&fakeStorage{}, nil)
	if err := p.Handle(context.Background(), fakeJob{}); err == nil {
		t.Fatal("expected error for unknown job type")
	}
}

type fakeJob struct{}

func (fakeJob) GetID() string             { return "x" }
func (fakeJob) GetType() jobs.JobType     { return "other" }
func (fakeJob) GetStatus() jobs.JobStatus { return jobs.JobStatusPending }

func TestResolveDocType(t *testing.T) {
	tests := []struct {
		declared string
		uri      string
		want     statement.DocumentType
		wantErr  bool
	}{
		{"pdf", "gs://b/x.bin", statement.DocPDF, false},
		{"", "gs://b/estado.PDF", statement.DocPDF, false},
		{"", "gs://b/estado.xlsx", statement.DocXLSX, false},
		{"xls", "gs://b/estado", statement.DocXLSX, false},
		{"", "gs://b/estado.csv", statement.DocCSV, false},
		{"", "gs://b/estado", "", true},
		{"docx", "gs://b/estado.docx", "", true},
	}
	for _, tc := range tests {
		got, err := resolveDocType(tc.declared, tc.uri)
		if tc.wantErr {
			if err == nil {
				t.Errorf("resolveDocType(%q, %q) expected error", tc.declared, tc.uri)
			}
			continue
		}
		if err != nil {
			t.Errorf("resolveDocType(%q, %q) error: %v", tc.declared, tc.uri, err)
			continue
		}
		if got != tc.want {
			t.Errorf("resolveDocType(%q, %q) = %q, want %q", tc.declared, tc.uri, got, tc.want)
		}
	}
}
