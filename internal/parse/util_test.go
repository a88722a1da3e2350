package parse

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestStartsRecord(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"01/07/2025 SPEI ENVIADO 1,200.00", true},
		{"1-7-25 COMPRA OXXO 89.50", true},
		{"JUL. 01 12345678 OPENAI SUBSCRIPTION 378.85", true},
		{"15 ENE PAGO NOMINA 10,000.00", true},
		{"  02/07/2025 indented record", true},
		{"REFERENCIA 9981123412", false},
		{"SALDO ANTERIOR 38,587.42", false},
		{"continuation of the previous concept", false},
		{"", false},
	}
	for _, tc := range tests {
		if got := StartsRecord(tc.line); got != tc.want {
			t.Errorf("StartsRecord(%q) = %v, want %v", tc.line, got, tc.want)
		}
	}
}

func TestLeadingDate(t *testing.T) {
	date, rest := leadingDate("JUL. 01 12345678 OPENAI SUBSCRIPTION 378.85")
	if date != "JUL. 01" {
		t.Errorf("date = %q, want %q", date, "JUL. 01")
	}
	if rest != "12345678 OPENAI SUBSCRIPTION 378.85" {
		t.Errorf("rest = %q", rest)
	}

	date, rest = leadingDate("no date here")
	if date != "" || rest != "no date here" {
		t.Errorf("got (%q, %q), want empty date and original line", date, rest)
	}
}

func TestIsMoneyToken(t *testing.T) {
	tests := []struct {
		tok  string
		want bool
	}{
		{"378.85", true},
		{"38,208.57", true},
		{"38208.57", true}, // no thousands separators
		{"1234567.89", true},
		{"$1,234.56", true},
		{"-89.50", true},
		{"(378.85)", true},
		{"378.85-", true},
		{"12345678", false}, // folio, not money
		{"378.8", false},    // wrong decimals
		{"378", false},
		{"1234,56", false},
	}
	for _, tc := range tests {
		if got := IsMoneyToken(tc.tok); got != tc.want {
			t.Errorf("IsMoneyToken(%q) = %v, want %v", tc.tok, got, tc.want)
		}
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1,234.56", "1234.56", false},
		{"$1,234.56", "1234.56", false},
		{"-89.50", "-89.5", false},
		{"(378.85)", "-378.85", false},
		{"378.85-", "-378.85", false},
		{"0.00", "0", false},
		{"garbage", "", true},
		{"", "", true},
	}
	for _, tc := range tests {
		got, err := ParseAmount(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseAmount(%q) expected error, got %s", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAmount(%q) unexpected error: %v", tc.in, err)
			continue
		}
		want, _ := decimal.NewFromString(tc.want)
		if !got.Equal(want) {
			t.Errorf("ParseAmount(%q) = %s, want %s", tc.in, got, want)
		}
	}
}

func TestTakeReference(t *testing.T) {
	ref, rest := takeReference("12345678 OPENAI SUBSCRIPTION 378.85")
	if ref != "12345678" {
		t.Errorf("ref = %q, want 12345678", ref)
	}
	if rest != "OPENAI SUBSCRIPTION 378.85" {
		t.Errorf("rest = %q", rest)
	}

	ref, rest = takeReference("OXXO GAS 123")
	if ref != "" || rest != "OXXO GAS 123" {
		t.Errorf("short digit runs are not references: got (%q, %q)", ref, rest)
	}
}
