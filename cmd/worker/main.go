package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/contaflow/bankparse/internal/aiparse"
	"github.com/contaflow/bankparse/internal/bankrules"
	"github.com/contaflow/bankparse/internal/bigquery"
	"github.com/contaflow/bankparse/internal/config"
	"github.com/contaflow/bankparse/internal/corrections"
	"github.com/contaflow/bankparse/internal/gcsstore"
	"github.com/contaflow/bankparse/internal/jobs/inmemory"
	"github.com/contaflow/bankparse/internal/logger"
	"github.com/contaflow/bankparse/internal/normalize"
	"github.com/contaflow/bankparse/internal/pipeline"
	"github.com/contaflow/bankparse/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("bankparse-worker", "info", false)
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}

	log := logger.New("bankparse-worker", cfg.LogLevel, cfg.LogPretty)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := bigquery.NewStore(ctx, cfg.GCPProjectID, cfg.BigQueryDataset)
	if err != nil {
		log.Fatal().Err(err).Msg("create warehouse store")
	}
	defer store.Close()

	storage, err := gcsstore.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("create storage client")
	}
	defer storage.Close()

	correctionStore := corrections.NewBigQueryStore(store.Client(), cfg.BigQueryDataset, cfg.CorrectionsTable)
	memory := corrections.NewMemory(correctionStore)

	var aiParser *aiparse.Parser
	if !cfg.AIDisabled {
		svc, err := aiparse.NewGeminiService(ctx, cfg.GeminiModel)
		if err != nil {
			log.Fatal().Err(err).Msg("create gemini service")
		}
		aiParser = aiparse.New(svc, aiparse.Config{
			ChunkTokens: cfg.ChunkTokens,
			MaxRetries:  cfg.AIMaxRetries,
			Workers:     cfg.AIWorkers,
			CallTimeout: cfg.AICallTimeout,
		}, log)
	}

	engine := pipeline.New(
		bankrules.NewRegistry(),
		normalize.NewClassifier(memory, log),
		aiParser,
		log,
	)

	processor := worker.NewProcessor(storage, engine, store, pipeline.Options{
		ModelName: cfg.GeminiModel,
	}, log)

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.QueueBuffer, cfg.QueueWorkers, jobStore)

	if err := jobQueue.Start(ctx, processor.Handle); err != nil {
		log.Fatal().Err(err).Msg("start job consumer")
	}

	log.Info().Msg("worker started, waiting for jobs")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown")
	}
	log.Info().Msg("worker exited")
}
