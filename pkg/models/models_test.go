package models

import (
	"math"
	"testing"
	"time"
)

func day(offset int) time.Time {
	return time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func TestSeriesCumulative(t *testing.T) {
	s := Series{
		{Date: day(0), Count: 1},
		{Date: day(1), Count: 2},
		{Date: day(2), Count: 3},
	}
	cum := s.Cumulative()
	want := []int{1, 3, 6}
	for i := range want {
		if cum[i] != want[i] {
			t.Errorf("cumulative[%d] = %d, want %d", i, cum[i], want[i])
		}
	}
	if s.Total() != 6 {
		t.Errorf("Total() = %d, want 6", s.Total())
	}
}

func TestSeriesIsWellFormed(t *testing.T) {
	good := Series{{Date: day(0), Count: 1}, {Date: day(1), Count: 0}}
	if !good.IsWellFormed() {
		t.Error("consecutive daily series reported as malformed")
	}

	gap := Series{{Date: day(0), Count: 1}, {Date: day(2), Count: 1}}
	if gap.IsWellFormed() {
		t.Error("series with a date gap reported as well-formed")
	}

	negative := Series{{Date: day(0), Count: -1}}
	if negative.IsWellFormed() {
		t.Error("series with negative count reported as well-formed")
	}
}

func TestSeriesFingerprint(t *testing.T) {
	a := Series{{Date: day(0), Count: 5}, {Date: day(1), Count: 7}}
	b := Series{{Date: day(0), Count: 5}, {Date: day(1), Count: 7}}
	c := Series{{Date: day(0), Count: 5}, {Date: day(1), Count: 8}}

	if a.Fingerprint() != b.Fingerprint() {
		t.Error("identical series produced different fingerprints")
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("different series produced the same fingerprint")
	}
}

func TestSigmoidCumulativeShape(t *testing.T) {
	m := SigmoidModel{Start: day(0), Scale: 1000, Rate: 0.2, T0: 30, Dilation: 1}

	// Midpoint is half the asymptote.
	if got := m.CumulativeAt(30); math.Abs(got-500) > 1e-9 {
		t.Errorf("cumulative at midpoint = %f, want 500", got)
	}
	// Monotone increasing.
	prev := -1.0
	for d := 0.0; d <= 120; d++ {
		v := m.CumulativeAt(d)
		if v < prev {
			t.Fatalf("cumulative decreased at t=%f", d)
		}
		prev = v
	}
	// Symmetric bell when dilation is 1.
	if a, b := m.IncrementalAt(20), m.IncrementalAt(40); math.Abs(a-b) > 1e-9 {
		t.Errorf("bell not symmetric with dilation=1: %f vs %f", a, b)
	}
}

func TestSigmoidDilationStretchesDecay(t *testing.T) {
	sym := SigmoidModel{Start: day(0), Scale: 1000, Rate: 0.2, T0: 30, Dilation: 1}
	dil := SigmoidModel{Start: day(0), Scale: 1000, Rate: 0.2, T0: 30, Dilation: 2}

	// Before the midpoint the curves agree.
	if a, b := sym.CumulativeAt(10), dil.CumulativeAt(10); math.Abs(a-b) > 1e-9 {
		t.Errorf("dilation changed pre-peak curve: %f vs %f", a, b)
	}
	// After the midpoint the dilated curve lags.
	if a, b := sym.CumulativeAt(50), dil.CumulativeAt(50); b >= a {
		t.Errorf("dilated cumulative %f should lag symmetric %f post-peak", b, a)
	}
}

func TestSigmoidValid(t *testing.T) {
	m := SigmoidModel{Scale: 100, Rate: 0.1, T0: 10, Dilation: 1}
	if !m.Valid() {
		t.Error("valid model reported invalid")
	}
	m.Scale = 0
	if m.Valid() {
		t.Error("zero scale reported valid")
	}
	m.Scale = 100
	m.T0 = math.NaN()
	if m.Valid() {
		t.Error("NaN midpoint reported valid")
	}
}

func TestDay(t *testing.T) {
	ts := time.Date(2020, 3, 15, 13, 45, 12, 0, time.FixedZone("X", 3600))
	d := Day(ts)
	if d.Hour() != 0 || d.Location() != time.UTC {
		t.Errorf("Day() did not normalise to UTC midnight: %v", d)
	}
}
