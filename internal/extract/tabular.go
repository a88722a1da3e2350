package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/contaflow/bankparse/internal/statement"
)

// XLSXExtractor flattens spreadsheet statements into tab-separated lines,
// one line per row, sheets separated as pages.
type XLSXExtractor struct{}

func (e *XLSXExtractor) Extract(ctx context.Context, doc statement.Document) (*Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(doc.Content))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %v: %w", err, statement.ErrExtractionFailed)
	}
	defer f.Close()

	var pages []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		var lines []string
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			pages = append(pages, strings.Join(lines, "\n"))
		}
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("xlsx has no non-empty sheets: %w", statement.ErrExtractionFailed)
	}
	return &Result{Text: strings.Join(pages, "\n\n"), Pages: pages}, nil
}

// CSVExtractor flattens delimited text statements. Lazy quotes and variable
// field counts are tolerated: exported statements are rarely strict CSV.
type CSVExtractor struct{}

func (e *CSVExtractor) Extract(ctx context.Context, doc statement.Document) (*Result, error) {
	r := csv.NewReader(bytes.NewReader(doc.Content))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	var lines []string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %v: %w", err, statement.ErrExtractionFailed)
		}
		line := strings.TrimSpace(strings.Join(record, "\t"))
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("csv is empty: %w", statement.ErrExtractionFailed)
	}
	text := strings.Join(lines, "\n")
	return &Result{Text: text, Pages: []string{text}}, nil
}
