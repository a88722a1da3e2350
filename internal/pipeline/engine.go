// Package pipeline orchestrates the extraction cascade: text extraction,
// bank detection, the layout/heuristic/external-classifier strategies, then
// normalization, deduplication and validation. Strategies may be skipped or
// fall back; the normalize-dedupe-validate tail always runs.
package pipeline

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/contaflow/bankparse/internal/aiparse"
	"github.com/contaflow/bankparse/internal/bankrules"
	"github.com/contaflow/bankparse/internal/normalize"
	"github.com/contaflow/bankparse/internal/statement"
)

// Strategy identifies which extraction path produced the transaction set.
type Strategy string

const (
	StrategyLayout    Strategy = "LAYOUT"
	StrategyHeuristic Strategy = "HEURISTIC"
	StrategyAI        Strategy = "AI"
)

// detectSampleLen bounds the text prefix given to bank detection. The
// fingerprints live in the statement header.
const detectSampleLen = 4096

// Options configures one extraction run.
type Options struct {
	// ModelName stamps transactions produced by the external classifier.
	ModelName string
}

// Result is the engine's output for one document.
type Result struct {
	RunID        string
	Institution  bankrules.InstitutionID
	Strategy     Strategy
	Transactions []statement.Transaction
	Summary      statement.ExtractionSummary
	Report       statement.ValidationReport
	AIReport     *aiparse.Report
	Duration     time.Duration
}

// Engine wires the steps together. Construct once, share across jobs.
type Engine struct {
	registry   *bankrules.Registry
	classifier *normalize.Classifier
	ai         *aiparse.Parser
	log        zerolog.Logger
}

// New creates an Engine. ai may be nil to run without the external
// classifier; the layout and heuristic strategies still apply.
func New(registry *bankrules.Registry, classifier *normalize.Classifier, ai *aiparse.Parser, log zerolog.Logger) *Engine {
	return &Engine{
		registry:   registry,
		classifier: classifier,
		ai:         ai,
		log:        log,
	}
}

// Process runs the full cascade over one document.
func (e *Engine) Process(ctx context.Context, doc statement.Document, opts Options) (*Result, error) {
	started := time.Now()
	runID := uuid.New().String()
	log := e.log.With().Str("run_id", runID).Str("filename", doc.Filename).Logger()

	state := &State{Document: doc, Options: opts}
	steps := []Step{
		&ExtractTextStep{},
		&DetectBankStep{Registry: e.registry},
		&ParseStep{AI: e.ai},
		&NormalizeStep{Classifier: e.classifier},
		&DedupeStep{},
		&ValidateStep{},
	}

	// Steps run to completion even when ctx is canceled mid-run: the parse
	// step falls back to heuristic output on a canceled classifier call and
	// the normalize/dedupe/validate tail is pure local work.
	for _, step := range steps {
		if err := step.Execute(ctx, state); err != nil {
			log.Error().Err(err).Type("step", step).Msg("pipeline step failed")
			return nil, err
		}
	}

	if len(state.Transactions) == 0 {
		log.Warn().Str("strategy", string(state.Strategy)).Msg("no transactions from any strategy")
		return nil, statement.ErrAllStrategiesFailed
	}

	res := &Result{
		RunID:        runID,
		Institution:  state.Institution,
		Strategy:     state.Strategy,
		Transactions: state.Transactions,
		Summary:      state.Summary,
		Report:       state.Report,
		AIReport:     state.AIReport,
		Duration:     time.Since(started),
	}

	log.Info().
		Str("institution", string(state.Institution)).
		Str("strategy", string(state.Strategy)).
		Int("transactions", len(res.Transactions)).
		Bool("reconciled", res.Report.BalanceReconciled).
		Dur("duration", res.Duration).
		Msg("statement processed")

	return res, nil
}

var (
	displayRefRe  = regexp.MustCompile(`\b\d{6,}\b`)
	displayCaser  = cases.Title(language.Spanish)
	displayMaxLen = 48
)

// displayName builds a short human-facing label from the raw concept:
// reference numbers stripped, title case, truncated on a word boundary.
func displayName(description string) string {
	s := displayRefRe.ReplaceAllString(description, "")
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	s = displayCaser.String(strings.ToLower(s))
	if len(s) <= displayMaxLen {
		return s
	}
	cut := strings.LastIndex(s[:displayMaxLen], " ")
	if cut <= 0 {
		cut = displayMaxLen
	}
	return strings.TrimSpace(s[:cut])
}
