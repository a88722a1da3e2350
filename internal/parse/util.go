// Package parse converts extracted statement text into raw transaction
// candidates. Two strategies live here: the regex/keyword line parser for
// generic statements and the word-position layout extractor for banks with
// reliably tabular layouts.
package parse

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Record-start shapes seen across Mexican statements: numeric dates,
// month-abbreviation-first (BBVA card statements) and day-first.
var (
	dateNumericRe = regexp.MustCompile(`^(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})\b`)
	dateMonFirstRe = regexp.MustCompile(`(?i)^((?:ENE|FEB|MAR|ABR|MAY|JUN|JUL|AGO|SEP|OCT|NOV|DIC|JAN|APR|AUG|DEC)\.?\s*\d{1,2})\b`)
	dateDayFirstRe = regexp.MustCompile(`(?i)^(\d{1,2}[\s-](?:ENE|FEB|MAR|ABR|MAY|JUN|JUL|AGO|SEP|OCT|NOV|DIC|JAN|APR|AUG|DEC)(?:[\s-]\d{2,4})?)\b`)
)

// StartsRecord reports whether a line begins a new transaction record.
// The chunked classifier uses this to split text only at safe boundaries.
func StartsRecord(line string) bool {
	line = strings.TrimSpace(line)
	return dateNumericRe.MatchString(line) ||
		dateMonFirstRe.MatchString(line) ||
		dateDayFirstRe.MatchString(line)
}

// leadingDate returns the date prefix of a record line and the rest of the
// line after it, or ("", line) when the line does not start a record.
func leadingDate(line string) (string, string) {
	line = strings.TrimSpace(line)
	for _, re := range []*regexp.Regexp{dateNumericRe, dateMonFirstRe, dateDayFirstRe} {
		if m := re.FindStringSubmatch(line); m != nil {
			return strings.TrimSpace(m[1]), strings.TrimSpace(line[len(m[0]):])
		}
	}
	return "", line
}

// moneyTokenRe matches a standalone monetary token: optional sign/currency,
// exactly two decimals, thousands separators optional. Some banks print
// large balances without separators, so 38208.57 is money too. A bare
// integer such as a folio number does not count as money.
var moneyTokenRe = regexp.MustCompile(`^\(?-?\$?(?:\d{1,3}(?:,\d{3})*|\d+)\.\d{2}\)?-?$`)

// IsMoneyToken reports whether a single token looks like an amount.
func IsMoneyToken(tok string) bool {
	return moneyTokenRe.MatchString(strings.TrimSpace(tok))
}

// ParseAmount converts "1,234.56", "$1,234.56", "(378.85)" or "378.85-" to
// a decimal. Parentheses and trailing minus both mean negative.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	if strings.HasSuffix(s, "-") {
		neg = true
		s = strings.TrimSuffix(s, "-")
	}
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// referenceRe matches folio/reference tokens: a run of 6+ digits that is not
// a monetary token.
var referenceRe = regexp.MustCompile(`^\d{6,}$`)

// takeReference pulls a leading reference token off a description fragment.
func takeReference(rest string) (ref, remainder string) {
	fields := strings.Fields(rest)
	if len(fields) > 0 && referenceRe.MatchString(fields[0]) {
		return fields[0], strings.Join(fields[1:], " ")
	}
	return "", rest
}

// collapseSpaces normalizes runs of whitespace inside a description.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
