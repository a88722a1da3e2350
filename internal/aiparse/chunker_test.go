package aiparse

import (
	"strings"
	"testing"

	"github.com/contaflow/bankparse/internal/parse"
)

const chunkSample = `01/07/2025 SPEI ENVIADO 1,200.00 37,387.42
REFERENCIA CONTINUACION LINEA
03/07/2025 COMPRA OXXO 89.50 37,297.92
15/07/2025 DEPOSITO NOMINA 10,000.00 47,297.92
`

func TestSplitChunksConcatReproducesInput(t *testing.T) {
	for _, budget := range []int{1, 5, 10, 100, 10000} {
		chunks := SplitChunks(chunkSample, budget)
		if got := strings.Join(chunks, ""); got != chunkSample {
			t.Errorf("budget %d: concatenated chunks differ from input\ngot:  %q\nwant: %q", budget, got, chunkSample)
		}
	}
}

func TestSplitChunksBreaksOnlyAtRecordStarts(t *testing.T) {
	chunks := SplitChunks(chunkSample, 12)
	if len(chunks) < 2 {
		t.Fatalf("budget small enough to force splitting, got %d chunk(s)", len(chunks))
	}
	for i, c := range chunks[1:] {
		firstLine := strings.SplitN(c, "\n", 2)[0]
		if !parse.StartsRecord(firstLine) {
			t.Errorf("chunk %d starts mid-record: %q", i+1, firstLine)
		}
	}
}

func TestSplitChunksContinuationStaysWithRecord(t *testing.T) {
	// Whatever the budget, the continuation line must share a chunk with
	// the record above it.
	for budget := 1; budget < 40; budget++ {
		for _, c := range SplitChunks(chunkSample, budget) {
			if strings.HasPrefix(c, "REFERENCIA") {
				t.Fatalf("budget %d: continuation line began a chunk", budget)
			}
		}
	}
}

func TestSplitChunksEmpty(t *testing.T) {
	if chunks := SplitChunks("", 100); chunks != nil {
		t.Errorf("got %v, want nil", chunks)
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
	}
	for _, tc := range tests {
		if got := EstimateTokens(tc.in); got != tc.want {
			t.Errorf("EstimateTokens(%d bytes) = %d, want %d", len(tc.in), got, tc.want)
		}
	}
}
