package alifsync

import (
	"testing"
	"time"
)

func TestNormalizeSku(t *testing.T) {
	cases := []struct {
		in   string
		want *string
	}{
		{"  12-345 ", strPtr("12345")},
		{"0012345", strPtr("0012345")},
		{"SKU 789", strPtr("789")},
		{"ABC", nil},
		{"   ", nil},
		{"", nil},
	}
	for _, tc := range cases {
		got := NormalizeSku(tc.in)
		if (got == nil) != (tc.want == nil) {
			t.Fatalf("NormalizeSku(%q) = %v, want %v", tc.in, got, tc.want)
		}
		if got != nil && *got != *tc.want {
			t.Fatalf("NormalizeSku(%q) = %q, want %q", tc.in, *got, *tc.want)
		}
	}
}

func TestParseCount(t *testing.T) {
	cases := []struct {
		in   string
		want *int
	}{
		{"7", intPtr(7)},
		{"1 234", intPtr(1234)},
		{"1 234", intPtr(1234)},
		{"12.0", intPtr(12)},
		{"12.5", nil},
		{"seven", nil},
		{"", nil},
	}
	for _, tc := range cases {
		got := ParseCount(tc.in)
		if (got == nil) != (tc.want == nil) {
			t.Fatalf("ParseCount(%q) = %v, want %v", tc.in, got, tc.want)
		}
		if got != nil && *got != *tc.want {
			t.Fatalf("ParseCount(%q) = %d, want %d", tc.in, *got, *tc.want)
		}
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string // decimal string form, "" for nil
	}{
		{"1500", "1500"},
		{"1 500.50", "1500.5"},
		{"1 500.50", "1500.5"},
		{"1,500.50", "1500.5"},
		{"n/a", ""},
		{"", ""},
	}
	for _, tc := range cases {
		got := ParseAmount(tc.in)
		if tc.want == "" {
			if got != nil {
				t.Fatalf("ParseAmount(%q) = %s, want nil", tc.in, got)
			}
			continue
		}
		if got == nil {
			t.Fatalf("ParseAmount(%q) = nil, want %s", tc.in, tc.want)
		}
		if got.String() != tc.want {
			t.Fatalf("ParseAmount(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestParseDateIsDayFirst(t *testing.T) {
	cases := []struct {
		in   string
		want string // yyyy-mm-dd, "" for nil
	}{
		{"05.01.2024", "2024-01-05"},
		{"06.07.2024", "2024-07-06"}, // 6 July, not June 7
		{"05/01/2024", "2024-01-05"},
		{"05.01.2024 13:45:00", "2024-01-05"},
		{"2024-01-05", "2024-01-05"},
		{"2024-01-05 13:45:00", "2024-01-05"},
		{"yesterday", ""},
		{"", ""},
	}
	for _, tc := range cases {
		got := ParseDate(tc.in)
		if tc.want == "" {
			if got != nil {
				t.Fatalf("ParseDate(%q) = %v, want nil", tc.in, got)
			}
			continue
		}
		if got == nil {
			t.Fatalf("ParseDate(%q) = nil, want %s", tc.in, tc.want)
		}
		if got.Format("2006-01-02") != tc.want {
			t.Fatalf("ParseDate(%q) = %s, want %s", tc.in, got.Format("2006-01-02"), tc.want)
		}
		if got.Location() != time.UTC || got.Hour() != 0 || got.Minute() != 0 {
			t.Fatalf("ParseDate(%q) = %v, want UTC midnight", tc.in, got)
		}
	}
}

func TestCleanText(t *testing.T) {
	if got := CleanText("  Магазин  "); got == nil || *got != "Магазин" {
		t.Fatalf("CleanText trimmed = %v", got)
	}
	if got := CleanText("   "); got != nil {
		t.Fatalf("CleanText(blank) = %q, want nil", *got)
	}
}
