// Package extract turns raw statement documents into plain text and, for
// PDFs, word-position data the layout parser can consume. Multiple backends
// are tried in sequence; the rest of the pipeline only depends on Result.
package extract

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/contaflow/bankparse/internal/statement"
)

// Word is one positioned token from a layout-aware extraction.
type Word struct {
	Text string
	X    float64
	Y    float64
	Page int
}

// Result is the common output shape of every backend.
type Result struct {
	Text  string
	Pages []string
	Words []Word // empty when the backend has no position data
}

// Extractor converts a document into a Result.
type Extractor interface {
	Extract(ctx context.Context, doc statement.Document) (*Result, error)
}

// ForDocument picks the backend for the declared document type.
func ForDocument(doc statement.Document) (Extractor, error) {
	switch doc.Type {
	case statement.DocPDF:
		return &PDFExtractor{}, nil
	case statement.DocXLSX:
		return &XLSXExtractor{}, nil
	case statement.DocCSV:
		return &CSVExtractor{}, nil
	default:
		return nil, fmt.Errorf("unsupported document type %q", doc.Type)
	}
}

// commonWords appear in virtually every Mexican or English-language bank
// statement. Text containing none of them is treated as garbage.
var commonWords = []string{
	"saldo", "cuenta", "fecha", "cargo", "abono", "deposito", "retiro",
	"movimiento", "periodo", "estado de cuenta", "clabe", "rfc", "importe",
	"balance", "account", "date", "credit", "debit", "statement", "amount",
}

// textQuality returns the ratio of readable characters to total characters.
// A strict ASCII-plus-Latin check: identity-encoded fonts produce accented
// garbage that unicode.IsLetter would wrongly accept.
func textQuality(text string) float64 {
	total, readable := 0, 0
	for _, r := range text {
		total++
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			readable++
		case unicode.IsSpace(r):
			readable++
		case strings.ContainsRune(".,-/:;()'\"$%&@#!?+=*", r):
			readable++
		case r == 'á' || r == 'é' || r == 'í' || r == 'ó' || r == 'ú' || r == 'ñ' ||
			r == 'Á' || r == 'É' || r == 'Í' || r == 'Ó' || r == 'Ú' || r == 'Ñ':
			readable++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(readable) / float64(total)
}

// isReadable checks length, character quality and the presence of at least
// one recognizable statement word.
func isReadable(text string) bool {
	if len(strings.TrimSpace(text)) <= 50 {
		return false
	}
	if textQuality(text) <= 0.6 {
		return false
	}
	lower := strings.ToLower(text)
	for _, w := range commonWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
