package parse

import (
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/contaflow/bankparse/internal/bankrules"
	"github.com/contaflow/bankparse/internal/extract"
	"github.com/contaflow/bankparse/internal/statement"
)

// Layout reconstructs transactions from word-position data instead of raw
// text lines. A date-shaped row starts a record; trailing free-text rows are
// folded into the description until the next record starts.
//
// Amount handling is the core of this path: the last two monetary tokens of
// a record line are read as [amount, balance]. When only a balance is
// present, or when a running balance column exists, the signed amount is
// taken from the delta between consecutive balances, which survives OCR
// noise in the amount column far better than parsing the amount text.
func Layout(words []extract.Word, rules bankrules.RuleSet) []statement.RawTransaction {
	rows := buildRows(words)
	if len(rows) == 0 {
		return nil
	}

	var (
		out      []statement.RawTransaction
		current  *layoutRecord
		prevBal  *decimal.Decimal
		haveRows bool
	)

	flush := func() {
		if current == nil {
			return
		}
		raw, newBal, ok := current.finish(rules, prevBal, !haveRows)
		if ok {
			out = append(out, raw)
			haveRows = true
		}
		if newBal != nil {
			prevBal = newBal
		}
		current = nil
	}

	for _, row := range rows {
		if StartsRecord(row) {
			flush()
			date, rest := leadingDate(row)
			current = &layoutRecord{dateRaw: date, firstLine: rest, source: row}
			continue
		}
		if current != nil && rules.MergeMultilineConcepts {
			if skip, _ := matchesSkip(row, rules); !skip && !hasMoney(row, rules) {
				current.extra = append(current.extra, row)
				current.source += "\n" + row
			}
		}
	}
	flush()

	return out
}

type layoutRecord struct {
	dateRaw   string
	firstLine string
	extra     []string
	source    string
}

// finish resolves one accumulated record into a raw transaction. It returns
// the record's closing balance (when present) so the caller can carry it
// into the next record's delta computation.
func (r *layoutRecord) finish(rules bankrules.RuleSet, prevBal *decimal.Decimal, first bool) (statement.RawTransaction, *decimal.Decimal, bool) {
	ref, rest := takeReference(r.firstLine)

	fields := strings.Fields(rest)
	var money []string
	var descParts []string
	for _, f := range fields {
		if IsMoneyToken(f) {
			money = append(money, f)
		} else {
			descParts = append(descParts, f)
		}
	}
	desc := collapseSpaces(strings.Join(append(descParts, r.extra...), " "))

	var amountTok, balanceTok string
	switch {
	case len(money) >= 2:
		amountTok = money[len(money)-2]
		balanceTok = money[len(money)-1]
	case len(money) == 1:
		balanceTok = money[0]
	default:
		return statement.RawTransaction{}, nil, false
	}

	balance, balErr := ParseAmount(balanceTok)
	var newBal *decimal.Decimal
	if balErr == nil {
		newBal = &balance
	}

	amount, typeRaw := resolveAmount(amountTok, newBal, prevBal, rules)

	// The first record is an opening-balance row when it carries no real
	// movement: a skip-pattern description or a near-zero computed amount.
	if first && newBal != nil {
		skipDesc := false
		for _, pat := range rules.SkipPatterns {
			if pat.MatchString(desc) {
				skipDesc = true
				break
			}
		}
		if skipDesc || amount.Abs().LessThan(decimal.NewFromFloat(0.005)) {
			return statement.RawTransaction{
				DateRaw:        r.dateRaw,
				DescriptionRaw: desc,
				AmountRaw:      "0.00",
				BalanceRaw:     balanceTok,
				SourceLine:     r.source,
				OpeningBalance: true,
			}, newBal, true
		}
	}

	if amount.IsZero() && amountTok == "" {
		// No amount token and no usable delta: nothing to emit.
		return statement.RawTransaction{}, newBal, false
	}

	return statement.RawTransaction{
		DateRaw:        r.dateRaw,
		DescriptionRaw: desc,
		AmountRaw:      amount.StringFixed(2),
		TypeRaw:        typeRaw,
		ReferenceRaw:   ref,
		BalanceRaw:     balanceTok,
		SourceLine:     r.source,
	}, newBal, true
}

// resolveAmount produces the signed amount for a record. The balance delta
// is authoritative when the institution has a running balance column and a
// previous balance is known; otherwise the parsed amount text is used with
// sign still inferred from the delta when one is available.
func resolveAmount(amountTok string, bal, prevBal *decimal.Decimal, rules bankrules.RuleSet) (decimal.Decimal, string) {
	var delta *decimal.Decimal
	if bal != nil && prevBal != nil {
		d := bal.Sub(*prevBal)
		delta = &d
	}

	if amountTok == "" {
		if delta == nil {
			return decimal.Zero, ""
		}
		return *delta, typeFromSign(*delta)
	}

	parsed, err := ParseAmount(amountTok)
	if err != nil {
		if delta == nil {
			return decimal.Zero, ""
		}
		return *delta, typeFromSign(*delta)
	}

	if delta != nil {
		if rules.HasRunningBalanceColumn {
			// Delta wins; the parsed amount stays on the source line for the
			// validator's cross-check.
			return *delta, typeFromSign(*delta)
		}
		// Otherwise keep the parsed magnitude but take the sign from the
		// balance progression.
		if delta.IsNegative() {
			return parsed.Abs().Neg(), "CARGO"
		}
		return parsed.Abs(), "ABONO"
	}

	return parsed, ""
}

func typeFromSign(d decimal.Decimal) string {
	if d.IsNegative() {
		return "CARGO"
	}
	return "ABONO"
}

// buildRows groups words into text rows: per page, cluster by rounded Y
// (PDF Y grows upward, so rows sort descending), then order words by X.
func buildRows(words []extract.Word) []string {
	byPage := make(map[int][]extract.Word)
	pages := make([]int, 0, 4)
	for _, w := range words {
		if _, ok := byPage[w.Page]; !ok {
			pages = append(pages, w.Page)
		}
		byPage[w.Page] = append(byPage[w.Page], w)
	}
	sort.Ints(pages)

	var rows []string
	for _, p := range pages {
		clusters := make(map[int][]extract.Word)
		for _, w := range byPage[p] {
			yKey := int(math.Round(w.Y / 2.0)) // ~2pt row tolerance
			clusters[yKey] = append(clusters[yKey], w)
		}
		yKeys := make([]int, 0, len(clusters))
		for y := range clusters {
			yKeys = append(yKeys, y)
		}
		sort.Sort(sort.Reverse(sort.IntSlice(yKeys)))

		for _, y := range yKeys {
			items := clusters[y]
			sort.Slice(items, func(a, b int) bool { return items[a].X < items[b].X })
			parts := make([]string, 0, len(items))
			for _, it := range items {
				parts = append(parts, it.Text)
			}
			if row := strings.TrimSpace(strings.Join(parts, " ")); row != "" {
				rows = append(rows, row)
			}
		}
	}
	return rows
}
