package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var spanishMonths = map[string]time.Month{
	"ENE": time.January, "FEB": time.February, "MAR": time.March,
	"ABR": time.April, "MAY": time.May, "JUN": time.June,
	"JUL": time.July, "AGO": time.August, "SEP": time.September,
	"OCT": time.October, "NOV": time.November, "DIC": time.December,
	// English abbreviations appear on bilingual statements.
	"JAN": time.January, "APR": time.April, "AUG": time.August, "DEC": time.December,
}

var (
	isoDateRe     = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	numericDateRe = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})$`)
	monDayRe      = regexp.MustCompile(`(?i)^([A-ZÁ-Ú]{3})\.?\s*(\d{1,2})$`)
	dayMonRe      = regexp.MustCompile(`(?i)^(\d{1,2})[\s-]([A-ZÁ-Ú]{3})\.?(?:[\s-](\d{2,4}))?$`)
	periodRangeRe = regexp.MustCompile(`(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})`)
)

// ParseDate resolves a raw statement date to a calendar date. Yearless forms
// ("JUL. 01", "15 ENE") take the year from the statement period context.
func ParseDate(raw string, periodYear int) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	if m := isoDateRe.FindStringSubmatch(raw); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return buildDate(year, time.Month(month), day)
	}

	if m := numericDateRe.FindStringSubmatch(raw); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year := expandYear(m[3])
		return buildDate(year, time.Month(month), day)
	}

	if m := monDayRe.FindStringSubmatch(raw); m != nil {
		month, ok := spanishMonths[strings.ToUpper(m[1])]
		if !ok {
			return time.Time{}, fmt.Errorf("unknown month %q", m[1])
		}
		day, _ := strconv.Atoi(m[2])
		return buildDate(defaultYear(periodYear), month, day)
	}

	if m := dayMonRe.FindStringSubmatch(raw); m != nil {
		month, ok := spanishMonths[strings.ToUpper(m[2])]
		if !ok {
			return time.Time{}, fmt.Errorf("unknown month %q", m[2])
		}
		day, _ := strconv.Atoi(m[1])
		year := defaultYear(periodYear)
		if m[3] != "" {
			year = expandYear(m[3])
		}
		return buildDate(year, month, day)
	}

	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

// ResolvePeriod extracts the statement period bounds from the raw period
// string captured by the heuristic parser ("01/07/2025 AL 31/07/2025").
func ResolvePeriod(periodRaw string) (start, end *time.Time) {
	matches := periodRangeRe.FindAllStringSubmatch(periodRaw, 2)
	parseOne := func(m []string) *time.Time {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		t, err := buildDate(expandYear(m[3]), time.Month(month), day)
		if err != nil {
			return nil
		}
		return &t
	}
	if len(matches) >= 1 {
		start = parseOne(matches[0])
	}
	if len(matches) >= 2 {
		end = parseOne(matches[1])
	}
	return start, end
}

func buildDate(year int, month time.Month, day int) (time.Time, error) {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("invalid date components %d-%d-%d", year, month, day)
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), nil
}

func expandYear(s string) int {
	y, _ := strconv.Atoi(s)
	if y < 100 {
		y += 2000
	}
	return y
}

func defaultYear(periodYear int) int {
	if periodYear > 0 {
		return periodYear
	}
	return time.Now().UTC().Year()
}
