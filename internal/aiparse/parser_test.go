package aiparse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/contaflow/bankparse/internal/logger"
	"github.com/contaflow/bankparse/internal/statement"
)

// fakeService scripts model behavior per chunk.
type fakeService struct {
	mu      sync.Mutex
	calls   int
	chunks  []string
	respond func(chunk string) (Response, error)
}

func (f *fakeService) Classify(ctx context.Context, prompt string) (Response, error) {
	parts := strings.SplitN(prompt, "Statement text:\n", 2)
	chunk := prompt
	if len(parts) == 2 {
		chunk = parts[1]
	}
	f.mu.Lock()
	f.calls++
	f.chunks = append(f.chunks, chunk)
	f.mu.Unlock()
	return f.respond(chunk)
}

func okResponse(chunk string) (Response, error) {
	firstLine := strings.SplitN(strings.TrimSpace(chunk), "\n", 2)[0]
	body := fmt.Sprintf(`{"transactions": [{"date": "2025-07-01", "description": %q, "amount": 1.00, "type": "CARGO"}]}`, firstLine)
	return Response{Text: body}, nil
}

func testParser(svc Service, cfg Config) *Parser {
	return New(svc, cfg, logger.NewWithWriter(&strings.Builder{}))
}

func TestParseHalvesChunkSizeUntilGivingUp(t *testing.T) {
	svc := &fakeService{respond: func(string) (Response, error) {
		return Response{Text: "{}", Truncated: true}, nil
	}}
	p := testParser(svc, Config{ChunkTokens: 8, MaxRetries: 4, Workers: 1})

	// One record line, one span: the span cannot split further, so every
	// attempt is a single call at sizes 8, 4, 2, 1.
	text := "01/07/2025 COMPRA OXXO 89.50\n"
	_, report, err := p.Parse(context.Background(), text, Meta{})

	if !errors.Is(err, statement.ErrClassificationParse) {
		t.Fatalf("err = %v, want ErrClassificationParse", err)
	}
	if svc.calls != 4 {
		t.Errorf("service calls = %d, want 4 (sizes 8, 4, 2, 1)", svc.calls)
	}
	if report.Retries != 3 {
		t.Errorf("retries = %d, want 3", report.Retries)
	}
	if report.FailedSpans != 1 || report.Spans != 1 {
		t.Errorf("spans = %d failed = %d, want 1/1", report.Spans, report.FailedSpans)
	}
}

func TestParseSuccessPreservesTextOrder(t *testing.T) {
	svc := &fakeService{respond: okResponse}
	p := testParser(svc, Config{ChunkTokens: 4, MaxRetries: 4, Workers: 4})

	lines := []string{
		"1/7/25 AAA 1.00",
		"2/7/25 BBB 2.00",
		"3/7/25 CCC 3.00",
		"4/7/25 DDD 4.00",
	}
	text := strings.Join(lines, "\n") + "\n"

	raws, report, err := p.Parse(context.Background(), text, Meta{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(raws) != len(lines) {
		t.Fatalf("got %d transactions, want %d", len(raws), len(lines))
	}
	for i, raw := range raws {
		if raw.DescriptionRaw != lines[i] {
			t.Errorf("transaction %d description = %q, want %q", i, raw.DescriptionRaw, lines[i])
		}
	}
	if report.FailedSpans != 0 {
		t.Errorf("failed spans = %d, want 0", report.FailedSpans)
	}
}

func TestParseShrunkSizeCarriesForwardToLaterSpans(t *testing.T) {
	// Chunks over 4 estimated tokens are "too big" and come back truncated.
	svc := &fakeService{respond: func(chunk string) (Response, error) {
		if EstimateTokens(chunk) > 4 {
			return Response{Text: "{}", Truncated: true}, nil
		}
		return okResponse(chunk)
	}}
	p := testParser(svc, Config{ChunkTokens: 8, MaxRetries: 4, Workers: 1})

	// Four 4-token record lines: two spans of two lines each at size 8.
	text := "1/7/25 A 1.00\n2/7/25 B 2.00\n3/7/25 C 3.00\n4/7/25 D 4.00\n"

	raws, report, err := p.Parse(context.Background(), text, Meta{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(raws) != 4 {
		t.Fatalf("got %d transactions, want 4", len(raws))
	}
	// Span one: one failed call at size 8, two successes at size 4. Span
	// two starts directly at the shrunken size: two successes. Without the
	// forward adaptation there would be a second size-8 failure.
	if report.Retries != 1 {
		t.Errorf("retries = %d, want 1", report.Retries)
	}
	if svc.calls != 5 {
		t.Errorf("service calls = %d, want 5", svc.calls)
	}
}

func TestParsePartialSpanFailureKeepsRest(t *testing.T) {
	svc := &fakeService{respond: func(chunk string) (Response, error) {
		if strings.Contains(chunk, "BBB") {
			return Response{Text: "sorry, no JSON today"}, nil
		}
		return okResponse(chunk)
	}}
	p := testParser(svc, Config{ChunkTokens: 4, MaxRetries: 2, Workers: 2})

	text := "1/7/25 AAA 1.00\n2/7/25 BBB 2.00\n3/7/25 CCC 3.00\n"
	raws, report, err := p.Parse(context.Background(), text, Meta{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.FailedSpans != 1 {
		t.Errorf("failed spans = %d, want 1", report.FailedSpans)
	}
	if len(raws) != 2 {
		t.Fatalf("got %d transactions, want 2 surviving spans", len(raws))
	}
	for _, raw := range raws {
		if strings.Contains(raw.DescriptionRaw, "BBB") {
			t.Errorf("failed span leaked into output: %q", raw.DescriptionRaw)
		}
	}
}

func TestParseCancelledContext(t *testing.T) {
	svc := &fakeService{respond: okResponse}
	p := testParser(svc, Config{ChunkTokens: 8, MaxRetries: 1, Workers: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := p.Parse(ctx, "1/7/25 AAA 1.00\n", Meta{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDefaultConfigWorkerPool(t *testing.T) {
	def := DefaultConfig()
	if def.Workers < 3 {
		t.Errorf("default workers = %d, want at least 3", def.Workers)
	}
	p := testParser(&fakeService{respond: okResponse}, Config{})
	if p.cfg.Workers != def.Workers {
		t.Errorf("zero config workers = %d, want default %d", p.cfg.Workers, def.Workers)
	}
}

func TestParseEmptyText(t *testing.T) {
	svc := &fakeService{respond: okResponse}
	p := testParser(svc, Config{})
	if _, _, err := p.Parse(context.Background(), "", Meta{}); err == nil {
		t.Error("expected error for empty text")
	}
}
