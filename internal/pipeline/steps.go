package pipeline

import (
	"context"
	"fmt"

	"github.com/contaflow/bankparse/internal/aiparse"
	"github.com/contaflow/bankparse/internal/bankrules"
	"github.com/contaflow/bankparse/internal/dedupe"
	"github.com/contaflow/bankparse/internal/extract"
	"github.com/contaflow/bankparse/internal/normalize"
	"github.com/contaflow/bankparse/internal/parse"
	"github.com/contaflow/bankparse/internal/statement"
	"github.com/contaflow/bankparse/internal/validate"
)

// Step is a single stage of the extraction pipeline.
type Step interface {
	Execute(ctx context.Context, state *State) error
}

// State holds the shared state across all pipeline steps.
type State struct {
	Document statement.Document
	Options  Options

	Extraction  *extract.Result
	Institution bankrules.InstitutionID
	Rules       bankrules.RuleSet
	Meta        parse.Meta
	Strategy    Strategy
	Raws        []statement.RawTransaction
	AIReport    *aiparse.Report

	Transactions []statement.Transaction
	Summary      statement.ExtractionSummary
	Report       statement.ValidationReport
}

// ExtractTextStep converts document bytes into text and positioned words.
type ExtractTextStep struct{}

func (s *ExtractTextStep) Execute(ctx context.Context, state *State) error {
	ex, err := extract.ForDocument(state.Document)
	if err != nil {
		return err
	}
	res, err := ex.Extract(ctx, state.Document)
	if err != nil {
		return fmt.Errorf("%w: %v", statement.ErrExtractionFailed, err)
	}
	state.Extraction = res
	return nil
}

// DetectBankStep fingerprints the statement and loads the institution rules.
// Detection failure is not an error; the base rule set still applies.
type DetectBankStep struct {
	Registry *bankrules.Registry
}

func (s *DetectBankStep) Execute(ctx context.Context, state *State) error {
	sample := state.Extraction.Text
	if len(sample) > detectSampleLen {
		sample = sample[:detectSampleLen]
	}
	id, _ := bankrules.Detect(sample)
	state.Institution = id
	state.Rules = s.Registry.For(id)
	return nil
}

// ParseStep runs the strategy cascade: the bank-specific layout extractor
// when one exists and position data survived, otherwise the heuristic line
// parser followed by the external classifier as the primary path, with the
// heuristic result kept as the fallback when the classifier fails.
type ParseStep struct {
	AI *aiparse.Parser // nil disables the external classifier
}

func (s *ParseStep) Execute(ctx context.Context, state *State) error {
	text := state.Extraction.Text

	if len(state.Extraction.Words) > 0 && bankrules.HasLayoutExtractor(state.Institution) {
		if raws := parse.Layout(state.Extraction.Words, state.Rules); len(raws) > 0 {
			// Balance metadata still comes from the text scan.
			_, state.Meta = parse.Lines(text, state.Rules)
			state.Raws = raws
			state.Strategy = StrategyLayout
			return nil
		}
	}

	raws, meta := parse.Lines(text, state.Rules)
	state.Meta = meta
	state.Raws = raws
	state.Strategy = StrategyHeuristic

	if s.AI == nil {
		return nil
	}

	aiRaws, report, err := s.AI.Parse(ctx, text, aiparse.Meta{
		CompanyID:     state.Document.CompanyID,
		Institution:   string(state.Institution),
		AccountNumber: meta.AccountNumber,
		PeriodRaw:     meta.PeriodRaw,
	})
	state.AIReport = &report
	if err != nil {
		// The heuristic result stands in as the fallback. Cancellation is
		// no different: outstanding chunk calls abort and whatever the
		// heuristic found still flows through the rest of the pipeline.
		return nil
	}
	state.Raws = aiRaws
	state.Strategy = StrategyAI
	return nil
}

// NormalizeStep classifies every raw candidate into a canonical transaction.
type NormalizeStep struct {
	Classifier *normalize.Classifier
}

func (s *NormalizeStep) Execute(ctx context.Context, state *State) error {
	periodYear := 0
	if start, _ := normalize.ResolvePeriod(state.Meta.PeriodRaw); start != nil {
		periodYear = start.Year()
	}

	opts := normalize.Options{
		CompanyID:  state.Document.CompanyID,
		PeriodYear: periodYear,
		ModelName:  state.Options.ModelName,
	}
	if state.Strategy != StrategyAI {
		opts.ModelName = ""
	}

	txs := make([]statement.Transaction, 0, len(state.Raws))
	for _, raw := range state.Raws {
		if raw.OpeningBalance {
			continue
		}
		tx, ok := s.Classifier.Classify(ctx, raw, state.Rules, opts)
		if !ok {
			continue
		}
		state.stampIdentity(&tx)
		txs = append(txs, tx)
	}
	state.Transactions = txs
	return nil
}

// DedupeStep removes duplicates introduced by page overlap or strategy
// fallbacks. First appearance wins.
type DedupeStep struct{}

func (s *DedupeStep) Execute(ctx context.Context, state *State) error {
	state.Transactions = dedupe.Transactions(state.Transactions)
	return nil
}

// ValidateStep reconciles the set against the declared balances and builds
// the summary. It reports problems; it never mutates transactions.
type ValidateStep struct{}

func (s *ValidateStep) Execute(ctx context.Context, state *State) error {
	state.Report = validate.Extraction(
		state.Extraction.Text,
		state.Transactions,
		state.Meta.OpeningBalance,
		state.Meta.ClosingBalance,
	)
	state.Summary = statement.Summarize(state.Transactions, state.Meta.OpeningBalance, state.Meta.ClosingBalance)
	state.Summary.Institution = string(state.Institution)
	state.Summary.AccountNumber = state.Meta.AccountNumber
	state.Summary.CLABE = state.Meta.CLABE
	if start, end := normalize.ResolvePeriod(state.Meta.PeriodRaw); start != nil {
		state.Summary.PeriodStart = start
		if end != nil {
			state.Summary.PeriodEnd = end
		}
	}
	for _, issue := range state.Report.Issues {
		if issue.Severity == statement.SeverityWarning {
			state.Summary.Warnings = append(state.Summary.Warnings, issue.Message)
		}
	}
	return nil
}

func (s *State) stampIdentity(tx *statement.Transaction) {
	tx.DisplayName = displayName(tx.Description)
}
