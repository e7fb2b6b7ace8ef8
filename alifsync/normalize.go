package alifsync

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Export cells arrive as formatted strings. One normalization helper per
// field family; every helper maps unparseable input to nil instead of
// erroring, so a single bad cell never aborts an ingest.

var numericCleaner = strings.NewReplacer(" ", "", " ", "", ",", "")

// NormalizeSku strips every non-digit character. All-non-digit or empty
// input becomes absent.
func NormalizeSku(v string) *string {
	s := strings.TrimSpace(v)
	if s == "" {
		return nil
	}
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return nil
	}
	out := b.String()
	return &out
}

func ParseCount(v string) *int {
	s := numericCleaner.Replace(strings.TrimSpace(v))
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// Some writers emit counts as "12.0".
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int(f)) {
			return nil
		}
		n = int(f)
	}
	return &n
}

func ParseAmount(v string) *decimal.Decimal {
	s := numericCleaner.Replace(strings.TrimSpace(v))
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

// dayFirstLayouts is ordered so day-before-month wins over ISO.
var dayFirstLayouts = []string{
	"02.01.2006 15:04:05",
	"02.01.2006",
	"02/01/2006 15:04:05",
	"02/01/2006",
	"02-01-2006",
	"02.01.06",
	"02/01/06",
	"02-01-06",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func ParseDate(v string) *time.Time {
	s := strings.TrimSpace(v)
	if s == "" {
		return nil
	}
	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	return nil
}

func CleanText(v string) *string {
	s := strings.TrimSpace(v)
	if s == "" {
		return nil
	}
	return &s
}
