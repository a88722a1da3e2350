package normalize

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		periodYear int
		want       time.Time
	}{
		{"iso", "2025-07-15", 0, date(2025, time.July, 15)},
		{"numeric day first", "15/07/2025", 0, date(2025, time.July, 15)},
		{"numeric short year", "15/07/25", 0, date(2025, time.July, 15)},
		{"numeric dashes", "1-7-2025", 0, date(2025, time.July, 1)},
		{"month day with dot", "JUL. 01", 2025, date(2025, time.July, 1)},
		{"month day lowercase", "ene 15", 2024, date(2024, time.January, 15)},
		{"day month", "15 ENE", 2024, date(2024, time.January, 15)},
		{"day month year", "15-ENE-25", 0, date(2025, time.January, 15)},
		{"english month", "AUG. 03", 2025, date(2025, time.August, 3)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseDate(tc.raw, tc.periodYear)
			if err != nil {
				t.Fatalf("ParseDate(%q) error: %v", tc.raw, err)
			}
			if !got.Equal(tc.want) {
				t.Errorf("ParseDate(%q) = %s, want %s", tc.raw, got, tc.want)
			}
		})
	}
}

func TestParseDateErrors(t *testing.T) {
	for _, raw := range []string{"", "hello", "XXX 15", "32/07/2025", "15/13/2025"} {
		if _, err := ParseDate(raw, 2025); err == nil {
			t.Errorf("ParseDate(%q) = nil error, want failure", raw)
		}
	}
}

func TestParseDateYearlessUsesCurrentYearWithoutPeriod(t *testing.T) {
	got, err := ParseDate("JUL. 01", 0)
	if err != nil {
		t.Fatalf("ParseDate error: %v", err)
	}
	if got.Year() != time.Now().UTC().Year() {
		t.Errorf("year = %d, want current", got.Year())
	}
}

func TestResolvePeriod(t *testing.T) {
	start, end := ResolvePeriod("DEL 01/07/2025 AL 31/07/2025")
	if start == nil || !start.Equal(date(2025, time.July, 1)) {
		t.Errorf("start = %v, want 2025-07-01", start)
	}
	if end == nil || !end.Equal(date(2025, time.July, 31)) {
		t.Errorf("end = %v, want 2025-07-31", end)
	}

	start, end = ResolvePeriod("PERIODO: 01/06/25")
	if start == nil || !start.Equal(date(2025, time.June, 1)) {
		t.Errorf("start = %v, want 2025-06-01", start)
	}
	if end != nil {
		t.Errorf("end = %v, want nil for a single date", end)
	}

	start, end = ResolvePeriod("no dates here")
	if start != nil || end != nil {
		t.Errorf("start, end = %v, %v, want nil, nil", start, end)
	}
}
