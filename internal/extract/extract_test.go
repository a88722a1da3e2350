package extract

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/contaflow/bankparse/internal/statement"
)

func TestForDocument(t *testing.T) {
	for _, tc := range []struct {
		docType statement.DocumentType
		want    Extractor
	}{
		{statement.DocPDF, &PDFExtractor{}},
		{statement.DocXLSX, &XLSXExtractor{}},
		{statement.DocCSV, &CSVExtractor{}},
	} {
		ex, err := ForDocument(statement.Document{Type: tc.docType})
		if err != nil {
			t.Fatalf("ForDocument(%q): %v", tc.docType, err)
		}
		if ex == nil {
			t.Fatalf("ForDocument(%q) = nil", tc.docType)
		}
	}

	if _, err := ForDocument(statement.Document{Type: "docx"}); err == nil {
		t.Error("expected error for unsupported type")
	}
}

func TestCSVExtractor(t *testing.T) {
	content := `FECHA,CONCEPTO,IMPORTE,SALDO
01/07/2025,"COMPRA OXXO, SUCURSAL CENTRO",-89.50,"9,910.50"

05/07/2025,SPEI RECIBIDO,"5,000.00","14,910.50"
`
	res, err := (&CSVExtractor{}).Extract(context.Background(), statement.Document{Content: []byte(content)})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	lines := strings.Split(res.Text, "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3 (blank rows dropped)", len(lines))
	}
	// Fields become tab-separated; quoted commas survive inside a field.
	if !strings.Contains(lines[1], "COMPRA OXXO, SUCURSAL CENTRO") {
		t.Errorf("quoted field mangled: %q", lines[1])
	}
	if !strings.HasPrefix(lines[1], "01/07/2025\t") {
		t.Errorf("fields not tab-joined: %q", lines[1])
	}
	if len(res.Pages) != 1 {
		t.Errorf("pages = %d, want 1", len(res.Pages))
	}
}

func TestCSVExtractorEmpty(t *testing.T) {
	_, err := (&CSVExtractor{}).Extract(context.Background(), statement.Document{Content: []byte("\n\n")})
	if !errors.Is(err, statement.ErrExtractionFailed) {
		t.Fatalf("err = %v, want ErrExtractionFailed", err)
	}
}

func TestXLSXExtractor(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"FECHA", "CONCEPTO", "IMPORTE"},
		{"01/07/2025", "COMPRA OXXO GAS", "-89.50"},
		{"05/07/2025", "SPEI RECIBIDO NOMINA", "5,000.00"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write xlsx: %v", err)
	}

	res, err := (&XLSXExtractor{}).Extract(context.Background(), statement.Document{Content: buf.Bytes()})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	lines := strings.Split(res.Text, "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	if !strings.HasPrefix(lines[1], "01/07/2025\tCOMPRA OXXO GAS") {
		t.Errorf("row not flattened: %q", lines[1])
	}
}

func TestXLSXExtractorGarbage(t *testing.T) {
	_, err := (&XLSXExtractor{}).Extract(context.Background(), statement.Document{Content: []byte("not a zip archive")})
	if !errors.Is(err, statement.ErrExtractionFailed) {
		t.Fatalf("err = %v, want ErrExtractionFailed", err)
	}
}

func TestPDFExtractorGarbage(t *testing.T) {
	_, err := (&PDFExtractor{}).Extract(context.Background(), statement.Document{Content: []byte("%PDF-1.7 truncated nonsense")})
	if !errors.Is(err, statement.ErrExtractionFailed) {
		t.Fatalf("err = %v, want ErrExtractionFailed", err)
	}
}

func TestTextQuality(t *testing.T) {
	if q := textQuality("SALDO ANTERIOR 10,000.00"); q < 0.9 {
		t.Errorf("clean text quality = %v, want high", q)
	}
	if q := textQuality("€µ¶§©®±€µ¶§©®±"); q > 0.3 {
		t.Errorf("garbage quality = %v, want low", q)
	}
	if q := textQuality(""); q != 0 {
		t.Errorf("empty quality = %v, want 0", q)
	}
}

func TestIsReadable(t *testing.T) {
	readable := "ESTADO DE CUENTA\nSALDO ANTERIOR 10,000.00\nFECHA CONCEPTO IMPORTE SALDO MOVIMIENTOS"
	if !isReadable(readable) {
		t.Error("statement text judged unreadable")
	}
	if isReadable("too short") {
		t.Error("short text judged readable")
	}
	noKeywords := strings.Repeat("lorem ipsum dolor sit amet consectetur ", 3)
	if isReadable(noKeywords) {
		t.Error("text without statement vocabulary judged readable")
	}
}

func TestPagesFromWords(t *testing.T) {
	words := []Word{
		{Text: "SALDO", X: 10, Y: 700, Page: 1},
		{Text: "ANTERIOR", X: 50, Y: 700, Page: 1},
		{Text: "10,000.00", X: 200, Y: 700, Page: 1},
		{Text: "COMPRA", X: 10, Y: 680, Page: 1},
		{Text: "OXXO", X: 48, Y: 680, Page: 1},
	}
	pages := pagesFromWords(words, 1)
	if len(pages) != 1 {
		t.Fatalf("got %d pages, want 1", len(pages))
	}
	lines := strings.Split(pages[0], "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	// Top of the page (higher Y) comes first; a large X jump becomes a gap.
	if !strings.HasPrefix(lines[0], "SALDO ANTERIOR") {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.Contains(lines[0], "ANTERIOR  10,000.00") {
		t.Errorf("column gap missing: %q", lines[0])
	}
	if lines[1] != "COMPRA OXXO" {
		t.Errorf("second line = %q", lines[1])
	}
}
