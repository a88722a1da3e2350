// Package normalize assigns transaction type, movement kind and category to
// raw candidates. Precedence: explicit extractor hint, then credit keywords
// (so refunds are not misread as purchases), then debit keywords, then the
// caller-supplied default. The correction memory overrides the heuristic
// category when a sufficiently similar human correction exists.
package normalize

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/contaflow/bankparse/internal/bankrules"
	"github.com/contaflow/bankparse/internal/corrections"
	"github.com/contaflow/bankparse/internal/parse"
	"github.com/contaflow/bankparse/internal/statement"
)

// DefaultSimilarityThreshold is the cosine similarity at which a stored
// correction overrides the heuristic category.
const DefaultSimilarityThreshold = 0.88

// Options configures one classification run.
type Options struct {
	CompanyID           string
	PeriodYear          int
	DefaultType         statement.TransactionType
	SimilarityThreshold float64
	ModelName           string
}

// Classifier turns RawTransactions into canonical Transactions.
type Classifier struct {
	memory *corrections.Memory // nil disables correction lookups
	log    zerolog.Logger
}

// NewClassifier creates a classifier. memory may be nil.
func NewClassifier(memory *corrections.Memory, log zerolog.Logger) *Classifier {
	return &Classifier{memory: memory, log: log}
}

// Classify normalizes one candidate. ok is false when the candidate must be
// discarded (unparseable amount, or zero amount outside an opening-balance
// pseudo-transaction).
func (c *Classifier) Classify(ctx context.Context, raw statement.RawTransaction, rules bankrules.RuleSet, opts Options) (statement.Transaction, bool) {
	if opts.DefaultType == "" {
		opts.DefaultType = statement.TypeDebit
	}
	if opts.SimilarityThreshold == 0 {
		opts.SimilarityThreshold = DefaultSimilarityThreshold
	}

	amount, err := parse.ParseAmount(raw.AmountRaw)
	if err != nil {
		c.log.Debug().Str("amount", raw.AmountRaw).Msg("discarding candidate with unparseable amount")
		return statement.Transaction{}, false
	}
	if amount.IsZero() && !raw.OpeningBalance {
		return statement.Transaction{}, false
	}

	desc := statement.NormalizeDescription(raw.DescriptionRaw)
	if len(desc) > statement.MaxDescriptionLen {
		cut := statement.MaxDescriptionLen
		for cut > 0 && !utf8.RuneStart(desc[cut]) {
			cut--
		}
		desc = desc[:cut]
	}

	txType, confidence := c.resolveType(desc, raw, amount, rules, opts)

	// Sign follows the resolved type; contradictions are corrected, not
	// rejected (extractors disagree about sign far too often to error out).
	switch txType {
	case statement.TypeDebit:
		amount = amount.Abs().Neg()
	case statement.TypeCredit:
		amount = amount.Abs()
	}

	kind := movementKind(txType, desc, rules)

	tx := statement.Transaction{
		Description: desc,
		Amount:      amount,
		Type:        txType,
		Kind:        kind,
		Reference:   raw.ReferenceRaw,
		Confidence:  confidence,
		SourceLine:  raw.SourceLine,
	}
	if opts.ModelName != "" {
		tx.ClassificationModel = opts.ModelName
	}
	if raw.CategoryRaw != "" {
		tx.Category = strings.TrimSpace(raw.CategoryRaw)
	}

	if date, err := ParseDate(raw.DateRaw, opts.PeriodYear); err == nil {
		tx.Date = date
	}
	if raw.BalanceRaw != "" {
		if bal, err := parse.ParseAmount(raw.BalanceRaw); err == nil {
			tx.BalanceAfter = &bal
		}
	}

	c.applyCorrection(ctx, &tx, opts)

	return tx, true
}

// resolveType applies the classification precedence and returns the type
// with a confidence reflecting which rule decided.
func (c *Classifier) resolveType(desc string, raw statement.RawTransaction, amount decimal.Decimal, rules bankrules.RuleSet, opts Options) (statement.TransactionType, float64) {
	// 1. Explicit hint from a structured extractor response.
	switch strings.ToUpper(strings.TrimSpace(raw.TypeRaw)) {
	case "ABONO", "CREDIT", "DEPOSITO":
		return statement.TypeCredit, 0.9
	case "CARGO", "DEBIT", "RETIRO":
		return statement.TypeDebit, 0.9
	}

	// 2. Credit keywords first: income keywords outrank expense keywords so
	// "REEMBOLSO COMPRA OXXO" stays income.
	for _, kw := range rules.CreditKeywords {
		if strings.Contains(desc, kw) {
			return statement.TypeCredit, 0.8
		}
	}
	for _, kw := range rules.DebitKeywords {
		if strings.Contains(desc, kw) {
			return statement.TypeDebit, 0.8
		}
	}

	// 3. A signed amount is still a usable signal before the default.
	if amount.IsNegative() {
		return statement.TypeDebit, 0.7
	}

	return opts.DefaultType, 0.6
}

// movementKind derives the business classification. Transfer keywords win
// regardless of the credit/debit sign: moving money between own accounts is
// neither income nor expense.
func movementKind(txType statement.TransactionType, desc string, rules bankrules.RuleSet) statement.MovementKind {
	for _, kw := range rules.TransferKeywords {
		if strings.Contains(desc, kw) {
			return statement.KindTransfer
		}
	}
	if txType == statement.TypeCredit {
		return statement.KindIncome
	}
	return statement.KindExpense
}

// applyCorrection overrides the category when the correction memory holds a
// close enough match, raising confidence to at least 0.9.
func (c *Classifier) applyCorrection(ctx context.Context, tx *statement.Transaction, opts Options) {
	if c.memory == nil || opts.CompanyID == "" {
		return
	}
	matches, err := c.memory.FindSimilar(ctx, opts.CompanyID, tx.Description, 1)
	if err != nil {
		c.log.Warn().Err(err).Msg("correction lookup failed; keeping heuristic category")
		return
	}
	if len(matches) == 0 || matches[0].Similarity < opts.SimilarityThreshold {
		return
	}
	tx.Category = matches[0].Category
	if tx.Confidence < 0.9 {
		tx.Confidence = 0.9
	}
	c.log.Debug().
		Str("description", tx.Description).
		Str("category", tx.Category).
		Float64("similarity", matches[0].Similarity).
		Msg("category overridden by correction memory")
}
