package aiparse

import (
	"fmt"
	"strings"
)

// Meta carries the statement-level context the model needs to resolve
// yearless dates and ambiguous amounts inside a chunk.
type Meta struct {
	CompanyID     string
	Institution   string
	AccountNumber string
	PeriodRaw     string
}

// buildPrompt assembles the full instruction block plus one chunk of
// statement text. The contract is strict JSON only, one object with a
// "transactions" array.
func buildPrompt(meta Meta, chunk string) string {
	var b strings.Builder

	b.WriteString(
		"You are a financial statement parser for Mexican bank statements.\n\n" +
			"Task:\n" +
			"- Parse ALL transaction movements in the statement text below.\n" +
			"- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n" +
			"- Output a single JSON object: {\"transactions\": [...]}.\n\n" +
			"Each element of \"transactions\" must have these fields:\n" +
			"- \"date\": string, ISO format \"YYYY-MM-DD\"\n" +
			"- \"description\": string, the full concept including continuation lines\n" +
			"- \"amount\": number, always positive\n" +
			"- \"type\": string, \"CARGO\" for money out or \"ABONO\" for money in\n" +
			"- \"reference\": string or null, the movement reference or folio number\n" +
			"- \"balance_after\": number or null, the running balance after the movement\n" +
			"- \"category\": string or null, a short expense/income category in Spanish\n\n")

	b.WriteString("Rules:\n" +
		"- Headers, footers, page numbers and marketing text are NOT transactions.\n" +
		"- SALDO ANTERIOR / SALDO FINAL lines are balances, not transactions.\n" +
		"- Keep multi-line concepts together as one transaction.\n" +
		"- Do NOT invent transactions that are not in the text.\n\n" +
		"Return ONLY valid raw JSON.\n" +
		"Do NOT wrap the response in code fences.\n" +
		"Do NOT use ```json or any Markdown.\n" +
		"Output must begin with \"{\" and end with \"}\".\n\n")

	if meta.Institution != "" {
		fmt.Fprintf(&b, "Bank: %s\n", meta.Institution)
	}
	if meta.AccountNumber != "" {
		fmt.Fprintf(&b, "Account: %s\n", meta.AccountNumber)
	}
	if meta.PeriodRaw != "" {
		fmt.Fprintf(&b, "Statement period: %s\n", meta.PeriodRaw)
	}

	b.WriteString("\nStatement text:\n")
	b.WriteString(chunk)
	return b.String()
}
