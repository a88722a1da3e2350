// Package validate independently cross-checks an extraction run. It re-scans
// the raw text with looser transaction signatures than the parsers use and
// verifies the accounting invariant opening + credits - debits = closing.
// The validator only reports; repair belongs to the normalizer and the
// deduplicator.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/contaflow/bankparse/internal/statement"
)

// BalanceTolerance is half a currency unit: statements round line items
// independently, so exact equality is too strict.
var BalanceTolerance = decimal.NewFromFloat(0.5)

// Deliberately looser than the parser patterns: any date-shaped prefix
// followed eventually by a monetary token counts as a transaction signature.
var signatureRes = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\s*\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b.*\d[\d,]*\.\d{2}`),
	regexp.MustCompile(`(?mi)^\s*(?:ENE|FEB|MAR|ABR|MAY|JUN|JUL|AGO|SEP|OCT|NOV|DIC|JAN|APR|AUG|DEC)\.?\s*\d{1,2}\b.*\d[\d,]*\.\d{2}`),
	regexp.MustCompile(`(?mi)^\s*\d{1,2}[\s-](?:ENE|FEB|MAR|ABR|MAY|JUN|JUL|AGO|SEP|OCT|NOV|DIC)\b.*\d[\d,]*\.\d{2}`),
}

// Extraction produces a completeness report for one pipeline run. The
// transaction set is never mutated.
func Extraction(rawText string, txs []statement.Transaction, expectedOpening, expectedClosing *decimal.Decimal) statement.ValidationReport {
	report := statement.ValidationReport{
		ExtractedCount:  len(txs),
		DeclaredClosing: expectedClosing,
		Complete:        true,
	}

	report.ExpectedCount = countSignatures(rawText)
	if report.ExpectedCount > 0 && report.ExtractedCount < report.ExpectedCount {
		report.Complete = false
		report.Issues = append(report.Issues, statement.Issue{
			Severity: statement.SeverityCritical,
			Code:     "COUNT_MISMATCH",
			Message: fmt.Sprintf("text contains %d transaction-like lines but %d transactions were extracted",
				report.ExpectedCount, report.ExtractedCount),
		})
	}

	checkBalances(&report, txs, expectedOpening, expectedClosing)
	checkUnmatchedAmounts(&report, rawText, txs)

	return report
}

func checkBalances(report *statement.ValidationReport, txs []statement.Transaction, opening, closing *decimal.Decimal) {
	if opening == nil || closing == nil {
		report.Issues = append(report.Issues, statement.Issue{
			Severity: statement.SeverityWarning,
			Code:     "BALANCES_UNDECLARED",
			Message:  "statement did not declare both opening and closing balances; reconciliation skipped",
		})
		return
	}

	calculated := *opening
	for i := range txs {
		calculated = calculated.Add(txs[i].Amount)
	}
	report.CalculatedClosing = &calculated

	diff := calculated.Sub(*closing).Abs()
	if diff.LessThanOrEqual(BalanceTolerance) {
		report.BalanceReconciled = true
		return
	}

	report.Complete = false
	report.Issues = append(report.Issues, statement.Issue{
		Severity: statement.SeverityCritical,
		Code:     "BALANCE_MISMATCH",
		Message: fmt.Sprintf("opening %s + movements = %s, but statement declares closing %s (off by %s)",
			opening.StringFixed(2), calculated.StringFixed(2), closing.StringFixed(2), diff.StringFixed(2)),
	})
}

// checkUnmatchedAmounts flags monetary tokens on transaction-like lines
// whose value never appears in the extracted set. A pure warning: totals,
// rates and balances legitimately produce unmatched tokens.
func checkUnmatchedAmounts(report *statement.ValidationReport, rawText string, txs []statement.Transaction) {
	extracted := make(map[string]bool, len(txs)*2)
	for i := range txs {
		extracted[txs[i].Amount.Abs().StringFixed(2)] = true
		if txs[i].BalanceAfter != nil {
			extracted[txs[i].BalanceAfter.Abs().StringFixed(2)] = true
		}
	}

	amountRe := regexp.MustCompile(`\d[\d,]*\.\d{2}`)
	unmatched := 0
	for _, re := range signatureRes {
		for _, line := range re.FindAllString(rawText, -1) {
			for _, tok := range amountRe.FindAllString(line, -1) {
				clean := strings.ReplaceAll(tok, ",", "")
				if d, err := decimal.NewFromString(clean); err == nil && !extracted[d.Abs().StringFixed(2)] {
					unmatched++
				}
			}
		}
	}
	if unmatched > 0 {
		report.Issues = append(report.Issues, statement.Issue{
			Severity: statement.SeverityWarning,
			Code:     "UNMATCHED_AMOUNTS",
			Message:  fmt.Sprintf("%d monetary tokens on transaction-like lines have no extracted counterpart", unmatched),
		})
	}
}

func countSignatures(rawText string) int {
	seen := make(map[string]bool)
	for _, re := range signatureRes {
		for _, m := range re.FindAllString(rawText, -1) {
			seen[strings.TrimSpace(m)] = true
		}
	}
	return len(seen)
}
