package smooth

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/outbreaklab/epicurve/pkg/models"
)

// makeSeries builds a daily series from counts starting 2020-03-01.
func makeSeries(counts ...int) models.Series {
	start := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	s := make(models.Series, len(counts))
	for i, c := range counts {
		s[i] = models.DatedCount{Date: start.AddDate(0, 0, i), Count: c}
	}
	return s
}

func TestSmoothConstantSeriesUnchanged(t *testing.T) {
	raw := makeSeries(7, 7, 7, 7, 7, 7, 7, 7, 7, 7)
	sm, err := Smooth(raw, 9)
	if err != nil {
		t.Fatalf("Smooth: %v", err)
	}
	for i, p := range sm {
		if math.Abs(p.Value-7) > 1e-12 {
			t.Errorf("smoothed[%d] = %f, want 7 (constant input must pass through)", i, p.Value)
		}
	}
}

func TestSmoothPreservesDateRangeAndLength(t *testing.T) {
	raw := makeSeries(0, 1, 4, 9, 16, 25, 16, 9, 4, 1, 0)
	sm, err := Smooth(raw, 7)
	if err != nil {
		t.Fatalf("Smooth: %v", err)
	}
	if sm.Len() != raw.Len() {
		t.Fatalf("length changed: %d -> %d", raw.Len(), sm.Len())
	}
	if !sm.First().Equal(raw.First()) || !sm.Last().Equal(raw.Last()) {
		t.Errorf("date range changed: [%v, %v] -> [%v, %v]",
			raw.First(), raw.Last(), sm.First(), sm.Last())
	}
}

func TestSmoothInteriorIsCenteredMean(t *testing.T) {
	raw := makeSeries(1, 2, 3, 4, 5, 6, 7)
	sm, err := Smooth(raw, 3)
	if err != nil {
		t.Fatalf("Smooth: %v", err)
	}
	// Interior point: mean of [3,4,5] = 4.
	if math.Abs(sm[3].Value-4) > 1e-12 {
		t.Errorf("interior value = %f, want 4", sm[3].Value)
	}
	// Boundary uses shrinking window: mean of [1,2] = 1.5.
	if math.Abs(sm[0].Value-1.5) > 1e-12 {
		t.Errorf("boundary value = %f, want 1.5", sm[0].Value)
	}
}

func TestSmoothWindowOne(t *testing.T) {
	raw := makeSeries(3, 1, 4, 1, 5)
	sm, err := Smooth(raw, 1)
	if err != nil {
		t.Fatalf("Smooth: %v", err)
	}
	for i := range raw {
		if math.Abs(sm[i].Value-float64(raw[i].Count)) > 1e-12 {
			t.Errorf("window=1 must be identity, got %f at %d", sm[i].Value, i)
		}
	}
}

func TestSmoothRejectsEmptySeries(t *testing.T) {
	_, err := Smooth(models.Series{}, 9)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty series, got %v", err)
	}
}

func TestSmoothRejectsBadWindow(t *testing.T) {
	raw := makeSeries(1, 2, 3)
	for _, w := range []int{0, -3, 4} {
		if _, err := Smooth(raw, w); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("window=%d: expected ErrInvalidInput, got %v", w, err)
		}
	}
}

func TestRescaleToTotal(t *testing.T) {
	raw := makeSeries(0, 0, 10, 20, 40, 20, 10, 0, 0)
	sm, err := Smooth(raw, 5)
	if err != nil {
		t.Fatalf("Smooth: %v", err)
	}
	rescaled := RescaleToTotal(sm, raw.Total())
	if math.Abs(rescaled.Total()-float64(raw.Total())) > 1e-9 {
		t.Errorf("rescaled total = %f, want %d", rescaled.Total(), raw.Total())
	}
}

func TestRescaleToTotalZeroSeries(t *testing.T) {
	sm := models.SmoothedSeries{{Date: time.Now(), Value: 0}}
	out := RescaleToTotal(sm, 100)
	if out[0].Value != 0 {
		t.Errorf("zero series must pass through rescale, got %f", out[0].Value)
	}
}
