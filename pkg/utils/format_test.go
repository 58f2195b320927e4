package utils

import (
	"math"
	"testing"
	"time"
)

func TestFormatCount(t *testing.T) {
	tests := []struct {
		v     float64
		width int
		want  string
	}{
		{1234567, 0, "1,234,567"},
		{1234567, 9, "1,234,567"},
		{42, 8, "      42"},
		{0.2, 0, "< 0.5"},
		{0, 0, "0"},
		{math.NaN(), 0, "---"},
		{math.NaN(), 4, "    "},
	}
	for _, tt := range tests {
		if got := FormatCount(tt.v, tt.width); got != tt.want {
			t.Errorf("FormatCount(%v, %d) = %q, want %q", tt.v, tt.width, got, tt.want)
		}
	}
}

func TestGroupThousands(t *testing.T) {
	if got := GroupThousands(-1234); got != "-1,234" {
		t.Errorf("GroupThousands(-1234) = %q", got)
	}
	if got := GroupThousands(999); got != "999" {
		t.Errorf("GroupThousands(999) = %q", got)
	}
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	b := a.AddDate(0, 0, 38)
	if got := DaysBetween(a, b); got != 38 {
		t.Errorf("DaysBetween = %d, want 38", got)
	}
	if got := DaysBetween(b, a); got != -38 {
		t.Errorf("reverse DaysBetween = %d, want -38", got)
	}
}

func TestParseDayMonthYear(t *testing.T) {
	d, err := ParseDayMonthYear("17/12/2020")
	if err != nil {
		t.Fatalf("ParseDayMonthYear: %v", err)
	}
	if d.Year() != 2020 || d.Month() != time.December || d.Day() != 17 {
		t.Errorf("parsed %v", d)
	}
}
