// Package statement holds the domain types shared by every stage of the
// extraction pipeline: raw candidates, canonical transactions, summaries and
// validation reports.
package statement

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the raw accounting sign of a movement.
type TransactionType string

const (
	TypeCredit TransactionType = "CREDIT"
	TypeDebit  TransactionType = "DEBIT"
)

// MovementKind is the business classification, distinct from the
// credit/debit sign: a credit can still be an internal transfer.
type MovementKind string

const (
	KindIncome   MovementKind = "INCOME"
	KindExpense  MovementKind = "EXPENSE"
	KindTransfer MovementKind = "TRANSFER"
)

// DocumentType identifies the declared format of an uploaded statement.
type DocumentType string

const (
	DocPDF  DocumentType = "pdf"
	DocXLSX DocumentType = "xlsx"
	DocCSV  DocumentType = "csv"
)

// Document is the input contract: raw bytes plus identifiers used to stamp
// the output records. Content is never mutated by the pipeline.
type Document struct {
	Content   []byte
	Type      DocumentType
	Filename  string
	CompanyID string
	UserID    string
	AccountID string
}

// RawTransaction is a pre-validation candidate produced by any extractor
// stage. It is immutable once created; only the normalizer consumes it.
type RawTransaction struct {
	DateRaw        string
	DescriptionRaw string
	AmountRaw      string
	TypeRaw        string // optional hint: "CARGO"/"ABONO"/"CREDIT"/"DEBIT"
	CategoryRaw    string // optional hint from a structured classifier response
	ReferenceRaw   string
	BalanceRaw     string
	SourceLine     string
	OpeningBalance bool // designated opening-balance pseudo-transaction
}

// MaxDescriptionLen caps canonical transaction descriptions.
const MaxDescriptionLen = 500

// Transaction is the canonical unit handed to callers. Amount is signed:
// negative for debits/expenses, positive for credits/income. It is never
// mutated after the pipeline returns it.
type Transaction struct {
	Date                time.Time
	Description         string
	Amount              decimal.Decimal
	Type                TransactionType
	Kind                MovementKind
	Category            string
	Reference           string
	BalanceAfter        *decimal.Decimal
	Confidence          float64
	SourceLine          string
	ClassificationModel string
	DisplayName         string
}

// NormalizedDescription returns the uppercase, space-collapsed form used by
// the deduplicator and the correction memory.
func (t *Transaction) NormalizedDescription() string {
	return NormalizeDescription(t.Description)
}

// NormalizeDescription uppercases and collapses runs of whitespace.
func NormalizeDescription(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), " ")
}

// ExtractionSummary aggregates the result of one extraction pass. It is
// always recomputed whole by Summarize, never patched in place.
type ExtractionSummary struct {
	TotalTransactions int
	TotalCredits      decimal.Decimal
	TotalDebits       decimal.Decimal
	OpeningBalance    *decimal.Decimal
	ClosingBalance    *decimal.Decimal
	PeriodStart       *time.Time
	PeriodEnd         *time.Time
	ByKind            map[MovementKind]decimal.Decimal

	Institution   string
	AccountNumber string
	CLABE         string
	Warnings      []string
}

// Summarize recomputes the full summary from a transaction set. TotalDebits
// is reported as a positive magnitude.
func Summarize(txs []Transaction, opening, closing *decimal.Decimal) ExtractionSummary {
	s := ExtractionSummary{
		TotalTransactions: len(txs),
		OpeningBalance:    opening,
		ClosingBalance:    closing,
		ByKind:            make(map[MovementKind]decimal.Decimal),
	}
	for i := range txs {
		t := &txs[i]
		if t.Amount.IsPositive() {
			s.TotalCredits = s.TotalCredits.Add(t.Amount)
		} else {
			s.TotalDebits = s.TotalDebits.Add(t.Amount.Neg())
		}
		s.ByKind[t.Kind] = s.ByKind[t.Kind].Add(t.Amount)

		if !t.Date.IsZero() {
			if s.PeriodStart == nil || t.Date.Before(*s.PeriodStart) {
				d := t.Date
				s.PeriodStart = &d
			}
			if s.PeriodEnd == nil || t.Date.After(*s.PeriodEnd) {
				d := t.Date
				s.PeriodEnd = &d
			}
		}
	}
	return s
}

// Severity tags a validation issue.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityWarning  Severity = "WARNING"
)

// Issue is one finding of the extraction validator.
type Issue struct {
	Severity Severity
	Code     string
	Message  string
}

// ValidationReport is the validator's output. The validator only reports;
// it never repairs the transaction set.
type ValidationReport struct {
	Issues            []Issue
	ExpectedCount     int
	ExtractedCount    int
	CalculatedClosing *decimal.Decimal
	DeclaredClosing   *decimal.Decimal
	BalanceReconciled bool
	Complete          bool
}

// HasCritical reports whether any issue is critical.
func (r *ValidationReport) HasCritical() bool {
	for _, is := range r.Issues {
		if is.Severity == SeverityCritical {
			return true
		}
	}
	return false
}
