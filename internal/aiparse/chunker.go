package aiparse

import (
	"strings"

	"github.com/contaflow/bankparse/internal/parse"
)

// EstimateTokens approximates the model token count of a text. Statement
// text is mostly short numeric tokens, four bytes per token is a workable
// upper bound for budgeting.
func EstimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// SplitChunks breaks statement text into chunks that each fit within
// budgetTokens. A chunk boundary is only placed before a line that starts a
// new transaction record, so multi-line descriptions never straddle two
// chunks. Concatenating the returned chunks reproduces the input exactly.
func SplitChunks(text string, budgetTokens int) []string {
	if text == "" {
		return nil
	}
	if budgetTokens < 1 {
		budgetTokens = 1
	}

	lines := strings.SplitAfter(text, "\n")

	var chunks []string
	var cur strings.Builder
	curTokens := 0

	for _, line := range lines {
		if line == "" {
			continue
		}
		lineTokens := EstimateTokens(line)
		if cur.Len() > 0 && curTokens+lineTokens > budgetTokens && parse.StartsRecord(line) {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curTokens = 0
		}
		cur.WriteString(line)
		curTokens += lineTokens
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}
