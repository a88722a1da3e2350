package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/contaflow/bankparse/internal/aiparse"
	"github.com/contaflow/bankparse/internal/bankrules"
	"github.com/contaflow/bankparse/internal/config"
	"github.com/contaflow/bankparse/internal/corrections"
	"github.com/contaflow/bankparse/internal/gcsstore"
	"github.com/contaflow/bankparse/internal/jobs"
	"github.com/contaflow/bankparse/internal/jobs/inmemory"
	"github.com/contaflow/bankparse/internal/logger"
	"github.com/contaflow/bankparse/internal/normalize"
	"github.com/contaflow/bankparse/internal/pipeline"
	"github.com/contaflow/bankparse/internal/worker"
)

// ingest uploads a statement to GCS, enqueues an extraction job and waits
// for the in-process worker to finish it. With --gcs-uri the upload is
// skipped and the already-stored object is enqueued directly.
func main() {
	filePath := flag.String("file", "", "local statement file (pdf, xlsx or csv) to upload and extract")
	gcsURI := flag.String("gcs-uri", "", "GCS URI of an already uploaded statement (gs://bucket/file.pdf)")
	companyID := flag.String("company", "", "company the statement belongs to")
	noAI := flag.Bool("no-ai", false, "disable the external classifier")
	flag.Parse()

	log := logger.New("bankparse-ingest", os.Getenv("LOG_LEVEL"), true)

	if (*filePath == "") == (*gcsURI == "") {
		log.Fatal().Msg("exactly one of --file or --gcs-uri is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	cfg, cfgErr := config.Load()
	if cfgErr != nil {
		log.Warn().Err(cfgErr).Msg("no usable configuration, running without the external classifier")
	}

	storage, err := gcsstore.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("create storage client")
	}
	defer storage.Close()

	uri := *gcsURI
	if *filePath != "" {
		uri, err = upload(ctx, storage, cfg, *companyID, *filePath)
		if err != nil {
			log.Fatal().Err(err).Msg("upload statement")
		}
		log.Info().Str("gcs_uri", uri).Msg("statement uploaded")
	}

	var aiParser *aiparse.Parser
	modelName := ""
	if !*noAI && cfgErr == nil {
		svc, sErr := aiparse.NewGeminiService(ctx, cfg.GeminiModel)
		if sErr != nil {
			log.Fatal().Err(sErr).Msg("create gemini service")
		}
		aiParser = aiparse.New(svc, aiparse.Config{
			ChunkTokens: cfg.ChunkTokens,
			MaxRetries:  cfg.AIMaxRetries,
			Workers:     cfg.AIWorkers,
			CallTimeout: cfg.AICallTimeout,
		}, log)
		modelName = cfg.GeminiModel
	}

	engine := pipeline.New(
		bankrules.NewRegistry(),
		normalize.NewClassifier(corrections.NewMemory(corrections.NewInMemoryStore()), log),
		aiParser,
		log,
	)

	processor := worker.NewProcessor(storage, engine, nil, pipeline.Options{ModelName: modelName}, log)
	processor.OnResult = func(_ *jobs.ExtractStatementJob, res *pipeline.Result) {
		printResult(res)
	}

	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(1, 1, jobStore)
	if err := queue.Start(ctx, processor.Handle); err != nil {
		log.Fatal().Err(err).Msg("start job consumer")
	}

	job := &jobs.ExtractStatementJob{
		CompanyID:  *companyID,
		GCSURI:     uri,
		MaxRetries: 1,
	}
	if err := queue.PublishExtractStatement(ctx, job); err != nil {
		log.Fatal().Err(err).Msg("enqueue extraction job")
	}
	log.Info().Str("job_id", job.JobID).Msg("extraction job enqueued")

	final, err := waitForJob(ctx, jobStore, job.JobID)
	if err != nil {
		log.Fatal().Err(err).Msg("wait for extraction job")
	}
	if final.Status != jobs.JobStatusCompleted {
		log.Fatal().Str("status", string(final.Status)).Str("error", final.Error).Msg("extraction job failed")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := queue.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("stop job consumer")
	}
}

// upload pushes the local file into the configured bucket, namespaced by
// company so concurrent uploads of equally named files cannot collide.
func upload(ctx context.Context, storage gcsstore.StorageService, cfg *config.Config, companyID, filePath string) (string, error) {
	bucket := os.Getenv("GCS_BUCKET")
	if cfg != nil && cfg.GCSBucket != "" {
		bucket = cfg.GCSBucket
	}
	if bucket == "" {
		return "", fmt.Errorf("GCS_BUCKET is required to upload a local file")
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("read statement file: %w", err)
	}

	object := filepath.Base(filePath)
	if companyID != "" {
		object = path.Join(companyID, object)
	}
	return storage.Upload(ctx, bucket, object, bytes.NewReader(content))
}

// waitForJob polls the job store until the job reaches a terminal status.
func waitForJob(ctx context.Context, store jobs.JobStore, jobID string) (*jobs.ExtractStatementJob, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			job, err := store.GetJob(ctx, jobID)
			if err != nil {
				return nil, err
			}
			if job.Status == jobs.JobStatusCompleted || job.Status == jobs.JobStatusFailed {
				return job, nil
			}
		}
	}
}

func printResult(res *pipeline.Result) {
	fmt.Printf("Institution: %s\n", res.Institution)
	fmt.Printf("Strategy:    %s\n", res.Strategy)
	fmt.Printf("Reconciled:  %v\n", res.Report.BalanceReconciled)
	fmt.Printf("Transactions (%d):\n", len(res.Transactions))
	for i := range res.Transactions {
		t := &res.Transactions[i]
		date := "----------"
		if !t.Date.IsZero() {
			date = t.Date.Format("2006-01-02")
		}
		fmt.Printf("  %s  %-7s %12s  %s\n", date, t.Type, t.Amount.StringFixed(2), t.Description)
	}
	for _, issue := range res.Report.Issues {
		fmt.Printf("%s %s: %s\n", issue.Severity, issue.Code, issue.Message)
	}
}
