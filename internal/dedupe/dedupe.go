// Package dedupe collapses repeated extraction output into unique
// transactions. The key includes the reference: two identical same-day
// charges with different references are both legitimate.
package dedupe

import (
	"github.com/contaflow/bankparse/internal/statement"
)

type key struct {
	date        string
	description string
	amount      string
	reference   string
}

func keyOf(t *statement.Transaction) key {
	return key{
		date:        t.Date.Format("2006-01-02"),
		description: t.NormalizedDescription(),
		amount:      t.Amount.Round(2).StringFixed(2),
		reference:   t.Reference,
	}
}

// Transactions deduplicates by (date, normalized description, amount@2dp,
// reference). On collision the longer description wins and a non-nil
// balance replaces a nil one; order of first appearance is preserved.
// The operation is idempotent.
func Transactions(txs []statement.Transaction) []statement.Transaction {
	out := make([]statement.Transaction, 0, len(txs))
	index := make(map[key]int, len(txs))

	for i := range txs {
		k := keyOf(&txs[i])
		if at, ok := index[k]; ok {
			merge(&out[at], &txs[i])
			continue
		}
		index[k] = len(out)
		out = append(out, txs[i])
	}
	return out
}

func merge(kept, dup *statement.Transaction) {
	if len(dup.Description) > len(kept.Description) {
		kept.Description = dup.Description
	}
	if kept.BalanceAfter == nil && dup.BalanceAfter != nil {
		kept.BalanceAfter = dup.BalanceAfter
	}
	if dup.Confidence > kept.Confidence {
		kept.Confidence = dup.Confidence
	}
	if kept.Category == "" && dup.Category != "" {
		kept.Category = dup.Category
	}
}
