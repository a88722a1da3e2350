package extract

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/contaflow/bankparse/internal/statement"
)

// PDFExtractor reads PDF statements with ledongthuc/pdf. It tries the
// row-based method first (best layout preservation), then reconstructs rows
// from raw text-object coordinates. Word positions are always collected so
// the layout parser can run when the institution supports it.
type PDFExtractor struct{}

func (e *PDFExtractor) Extract(ctx context.Context, doc statement.Document) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf library crashed: %v: %w", r, statement.ErrExtractionFailed)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(doc.Content), int64(len(doc.Content)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %v: %w", err, statement.ErrExtractionFailed)
	}
	numPages := reader.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("pdf has no pages: %w", statement.ErrExtractionFailed)
	}

	words := collectWords(reader, numPages)

	pages := extractByRow(reader, numPages)
	if !isReadable(strings.Join(pages, "\n")) {
		pages = pagesFromWords(words, numPages)
	}
	text := strings.Join(pages, "\n\n")
	if !isReadable(text) {
		return nil, fmt.Errorf("no readable text in pdf (scanned or custom-encoded fonts): %w", statement.ErrExtractionFailed)
	}

	return &Result{Text: text, Pages: pages, Words: words}, nil
}

func extractByRow(r *pdf.Reader, numPages int) []string {
	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		var lines []string
		for _, row := range rows {
			var parts []string
			for _, word := range row.Content {
				parts = append(parts, word.S)
			}
			if line := strings.TrimSpace(strings.Join(parts, " ")); line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages
}

// collectWords pulls every positioned text object off every page.
func collectWords(r *pdf.Reader, numPages int) []Word {
	var words []Word
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		for _, t := range content.Text {
			if strings.TrimSpace(t.S) == "" {
				continue
			}
			words = append(words, Word{Text: t.S, X: t.X, Y: t.Y, Page: i})
		}
	}
	return words
}

// pagesFromWords rebuilds page text from word coordinates: group by rounded
// Y into rows, sort rows top-to-bottom (PDF Y grows upward) and words left
// to right, inserting a column gap where X jumps.
func pagesFromWords(words []Word, numPages int) []string {
	byPage := make(map[int][]Word)
	for _, w := range words {
		byPage[w.Page] = append(byPage[w.Page], w)
	}

	var pages []string
	for p := 1; p <= numPages; p++ {
		pw := byPage[p]
		if len(pw) == 0 {
			continue
		}
		rows := make(map[int][]Word)
		for _, w := range pw {
			yKey := int(math.Round(w.Y))
			rows[yKey] = append(rows[yKey], w)
		}
		yKeys := make([]int, 0, len(rows))
		for y := range rows {
			yKeys = append(yKeys, y)
		}
		sort.Sort(sort.Reverse(sort.IntSlice(yKeys)))

		var lines []string
		for _, y := range yKeys {
			items := rows[y]
			sort.Slice(items, func(a, b int) bool { return items[a].X < items[b].X })
			var sb strings.Builder
			var prevX float64
			for j, it := range items {
				if j > 0 {
					if it.X-prevX > 15 {
						sb.WriteString("  ")
					} else {
						sb.WriteString(" ")
					}
				}
				sb.WriteString(it.Text)
				prevX = it.X
			}
			if line := strings.TrimSpace(sb.String()); line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages
}
