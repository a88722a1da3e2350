package parse

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/contaflow/bankparse/internal/bankrules"
	"github.com/contaflow/bankparse/internal/statement"
)

// Meta carries statement-level values the heuristic parser finds while
// scanning: declared balances and account identifiers.
type Meta struct {
	OpeningBalance *decimal.Decimal
	ClosingBalance *decimal.Decimal
	AccountNumber  string
	CLABE          string
	PeriodRaw      string
}

var (
	openingRe = regexp.MustCompile(`(?i)SALDO\s+(?:ANTERIOR|INICIAL)`)
	closingRe = regexp.MustCompile(`(?i)SALDO\s+(?:FINAL|ACTUAL|AL\s+CORTE)`)
	clabeRe   = regexp.MustCompile(`\b(\d{18})\b`)
	accountRe = regexp.MustCompile(`(?i)(?:CUENTA|NO\.?\s*DE\s*CUENTA)[:\s]+(\d{8,11})\b`)
	periodRe  = regexp.MustCompile(`(?i)(?:PERIODO|DEL)\s+(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})\s+AL?\s+(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`)
)

// Lines runs the heuristic regex parser over raw statement text. It returns
// pre-validation candidates; classification happens later in the normalizer.
func Lines(text string, rules bankrules.RuleSet) ([]statement.RawTransaction, Meta) {
	var (
		out  []statement.RawTransaction
		meta Meta
	)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.ReplaceAll(line, "\t", " "))
		if line == "" {
			continue
		}

		if m := periodRe.FindStringSubmatch(line); m != nil && meta.PeriodRaw == "" {
			meta.PeriodRaw = m[1] + " AL " + m[2]
		}
		if m := accountRe.FindStringSubmatch(line); m != nil && meta.AccountNumber == "" {
			meta.AccountNumber = m[1]
		}
		if meta.CLABE == "" {
			if m := clabeRe.FindStringSubmatch(line); m != nil {
				meta.CLABE = m[1]
			}
		}

		if skip, isBalance := matchesSkip(line, rules); skip {
			if isBalance {
				captureBalance(line, rules, &meta)
			}
			continue
		}

		if !StartsRecord(line) {
			// Multi-line concept continuation: attach to the previous record.
			if rules.MergeMultilineConcepts && len(out) > 0 && !hasMoney(line, rules) {
				last := &out[len(out)-1]
				last.DescriptionRaw = collapseSpaces(last.DescriptionRaw + " " + line)
				last.SourceLine += "\n" + line
			}
			continue
		}

		if raw, ok := parseRecordLine(line, rules); ok {
			out = append(out, raw)
		}
	}

	return out, meta
}

// parseRecordLine splits one date-prefixed line into its raw fields.
func parseRecordLine(line string, rules bankrules.RuleSet) (statement.RawTransaction, bool) {
	dateRaw, rest := leadingDate(line)
	if dateRaw == "" {
		return statement.RawTransaction{}, false
	}
	ref, rest := takeReference(rest)

	amounts, spans := findAmounts(rest, rules)
	if len(amounts) == 0 {
		return statement.RawTransaction{}, false
	}

	amountRaw, balanceRaw := pickAmounts(amounts, rules)

	// The description is whatever precedes the first monetary token.
	desc := rest
	if len(spans) > 0 {
		desc = rest[:spans[0][0]]
	}
	desc = collapseSpaces(desc)
	if desc == "" {
		return statement.RawTransaction{}, false
	}

	return statement.RawTransaction{
		DateRaw:        dateRaw,
		DescriptionRaw: desc,
		AmountRaw:      amountRaw,
		ReferenceRaw:   ref,
		BalanceRaw:     balanceRaw,
		SourceLine:     line,
	}, true
}

// pickAmounts decides which monetary tokens are the amount and the running
// balance. With a running balance column the last token is the balance;
// prefer_first_amount banks repeat the amount and the first copy wins.
func pickAmounts(amounts []string, rules bankrules.RuleSet) (amountRaw, balanceRaw string) {
	switch {
	case len(amounts) == 1:
		return amounts[0], ""
	case rules.PreferFirstAmount:
		return amounts[0], amounts[len(amounts)-1]
	case rules.HasRunningBalanceColumn:
		return amounts[len(amounts)-2], amounts[len(amounts)-1]
	default:
		return amounts[len(amounts)-2], amounts[len(amounts)-1]
	}
}

// findAmounts locates monetary tokens. Whitespace-separated tokens are
// matched whole, so a separator-free balance such as 38208.57 can never be
// clipped to a partial match like 208.57. A token counts as money when one
// of the rule set's amount patterns hits it and the token grammar agrees.
func findAmounts(s string, rules bankrules.RuleSet) ([]string, [][]int) {
	var vals []string
	var spans [][]int
	for start := 0; start < len(s); {
		if s[start] == ' ' || s[start] == '\t' {
			start++
			continue
		}
		end := start
		for end < len(s) && s[end] != ' ' && s[end] != '\t' {
			end++
		}
		tok := s[start:end]
		if IsMoneyToken(tok) && matchesAmountPattern(tok, rules) {
			vals = append(vals, tok)
			spans = append(spans, []int{start, end})
		}
		start = end
	}
	return vals, spans
}

func matchesAmountPattern(tok string, rules bankrules.RuleSet) bool {
	for _, pat := range rules.AmountPatterns {
		if pat.MatchString(tok) {
			return true
		}
	}
	return false
}

func hasMoney(line string, rules bankrules.RuleSet) bool {
	vals, _ := findAmounts(line, rules)
	return len(vals) > 0
}

// matchesSkip reports whether the line is a known non-transaction row and
// whether it is specifically a balance row worth capturing.
func matchesSkip(line string, rules bankrules.RuleSet) (skip, isBalance bool) {
	for _, pat := range rules.SkipPatterns {
		if pat.MatchString(line) {
			return true, openingRe.MatchString(line) || closingRe.MatchString(line)
		}
	}
	return false, false
}

func captureBalance(line string, rules bankrules.RuleSet, meta *Meta) {
	vals, _ := findAmounts(line, rules)
	if len(vals) == 0 {
		return
	}
	amt, err := ParseAmount(vals[len(vals)-1])
	if err != nil {
		return
	}
	switch {
	case openingRe.MatchString(line) && meta.OpeningBalance == nil:
		meta.OpeningBalance = &amt
	case closingRe.MatchString(line) && meta.ClosingBalance == nil:
		meta.ClosingBalance = &amt
	}
}
