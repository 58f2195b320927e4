package detect

import (
	"testing"
	"time"

	"github.com/outbreaklab/epicurve/internal/analysis/smooth"
	"github.com/outbreaklab/epicurve/pkg/models"
	"github.com/outbreaklab/epicurve/pkg/utils"
)

func makeSeries(counts ...int) models.Series {
	start := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	s := make(models.Series, len(counts))
	for i, c := range counts {
		s[i] = models.DatedCount{Date: start.AddDate(0, 0, i), Count: c}
	}
	return s
}

// makeBell builds lead-in zeros, a bell of daily counts, and a zero tail.
func makeBell(lead int, bell []int, tail int) models.Series {
	counts := make([]int, 0, lead+len(bell)+tail)
	for i := 0; i < lead; i++ {
		counts = append(counts, 0)
	}
	counts = append(counts, bell...)
	for i := 0; i < tail; i++ {
		counts = append(counts, 0)
	}
	return makeSeries(counts...)
}

func mustSmooth(t *testing.T, raw models.Series, window int) models.SmoothedSeries {
	t.Helper()
	sm, err := smooth.Smooth(raw, window)
	if err != nil {
		t.Fatalf("Smooth: %v", err)
	}
	return sm
}

func TestThresholdFirstCrossing(t *testing.T) {
	raw := makeSeries(0, 0, 10, 20, 40, 70, 100, 90, 60, 30, 10)
	date, found := Threshold(raw, 50)
	if !found {
		t.Fatal("threshold not found")
	}
	// Cumulative: 0,0,10,30,70 — first >= 50 is day index 4.
	if want := raw[4].Date; !date.Equal(want) {
		t.Errorf("threshold date = %v, want %v", date, want)
	}
}

func TestThresholdNotReached(t *testing.T) {
	raw := makeSeries(1, 2, 3)
	if _, found := Threshold(raw, 50); found {
		t.Error("threshold reported found for a series that never reaches it")
	}
}

func TestThresholdMonotonic(t *testing.T) {
	raw := makeBell(3, []int{10, 20, 40, 70, 100, 90, 60, 30, 10, 5, 2, 1}, 5)
	var prev time.Time
	for _, th := range []int{1, 10, 50, 100, 200, 350} {
		date, found := Threshold(raw, th)
		if !found {
			t.Fatalf("threshold %d not found", th)
		}
		if date.Before(prev) {
			t.Errorf("threshold %d gave earlier date %v than lower threshold (%v)", th, date, prev)
		}
		prev = date
	}
}

func TestCaseMarkersBellScenario(t *testing.T) {
	bell := []int{10, 20, 40, 70, 100, 90, 60, 30, 10, 5, 2, 1}
	raw := makeBell(20, bell, 20)
	sm := mustSmooth(t, raw, 9)

	cfg := Config{GrowthFloor: 5, LagFloor: 4, Dilation: 1}
	m := CaseMarkers(raw, sm, 50, cfg)

	if !m.ThresholdFound {
		t.Fatal("threshold not found")
	}
	// Cumulative reaches 50 on the "40" day (10+20+40 = 70).
	wantStart := raw[22].Date
	if !m.ThresholdDate.Equal(wantStart) {
		t.Errorf("threshold date = %v, want %v", m.ThresholdDate, wantStart)
	}

	if m.PeakQuality != models.QualityResolved {
		t.Errorf("peak quality = %q, want resolved", m.PeakQuality)
	}
	// Raw peak (100) is at index 24; a window-9 average of a symmetric-ish
	// bell must not shift the peak by more than a few days.
	rawPeak := raw[24].Date
	shift := utils.DaysBetween(rawPeak, m.PeakDate)
	if shift < -3 || shift > 3 {
		t.Errorf("smoothed peak shifted %d days from raw peak", shift)
	}

	// Peak never precedes threshold.
	if m.PeakDate.Before(m.ThresholdDate) {
		t.Errorf("peak %v before threshold %v", m.PeakDate, m.ThresholdDate)
	}

	// Mirrored symmetric end: peak + (peak - start).
	if !m.HasEnd {
		t.Fatal("end date missing")
	}
	growth := utils.DaysBetween(m.ThresholdDate, m.PeakDate)
	wantEnd := m.PeakDate.AddDate(0, 0, growth)
	if !m.EndDate.Equal(wantEnd) {
		t.Errorf("end date = %v, want %v", m.EndDate, wantEnd)
	}
}

func TestCaseMarkersEndDateDilation(t *testing.T) {
	bell := []int{10, 20, 40, 70, 100, 90, 60, 30, 10, 5, 2, 1}
	raw := makeBell(20, bell, 20)
	sm := mustSmooth(t, raw, 9)

	sym := CaseMarkers(raw, sm, 50, Config{GrowthFloor: 5, Dilation: 1})
	dil := CaseMarkers(raw, sm, 50, Config{GrowthFloor: 5, Dilation: 2})

	growth := utils.DaysBetween(sym.ThresholdDate, sym.PeakDate)
	if got := utils.DaysBetween(sym.PeakDate, sym.EndDate); got != growth {
		t.Errorf("symmetric end offset = %d, want %d", got, growth)
	}
	if got := utils.DaysBetween(dil.PeakDate, dil.EndDate); got != 2*growth {
		t.Errorf("dilated end offset = %d, want %d", got, 2*growth)
	}
}

func TestCaseMarkersProvisionalPeakMovesForward(t *testing.T) {
	// Still-growing outbreak: the maximum is always the newest point.
	counts := []int{0, 0, 5, 10, 15, 25, 40, 60, 90, 130, 180, 240}
	raw := makeSeries(counts...)
	sm := mustSmooth(t, raw, 5)

	cfg := Config{GrowthFloor: 38, Dilation: 1}
	m := CaseMarkers(raw, sm, 50, cfg)
	if m.PeakQuality != models.QualityInsufficient {
		// Series shorter than the floor degenerates first.
		t.Fatalf("peak quality = %q, want insufficient for a %d-day series under a %d-day floor",
			m.PeakQuality, raw.Len(), cfg.GrowthFloor)
	}
	if !m.PeakDate.Equal(m.ThresholdDate) {
		t.Errorf("degenerate peak = %v, want threshold date %v", m.PeakDate, m.ThresholdDate)
	}

	// Long enough series, but the max is still the last point inside the
	// floor: provisional, reported at the last date.
	long := make([]int, 0, 42)
	for i := 0; i < 42; i++ {
		long = append(long, i*i)
	}
	raw = makeSeries(long...)
	sm = mustSmooth(t, raw, 5)
	m = CaseMarkers(raw, sm, 50, cfg)
	if m.PeakQuality != models.QualityProvisional {
		t.Fatalf("peak quality = %q, want provisional", m.PeakQuality)
	}
	if !m.PeakDate.Equal(raw.Last()) {
		t.Errorf("provisional peak = %v, want last date %v", m.PeakDate, raw.Last())
	}

	// "Peak moves forward": one more day of growth moves the estimate.
	longer := append(append([]int{}, long...), 42*42)
	raw2 := makeSeries(longer...)
	sm2 := mustSmooth(t, raw2, 5)
	m2 := CaseMarkers(raw2, sm2, 50, cfg)
	if !m2.PeakDate.After(m.PeakDate) {
		t.Errorf("provisional peak did not move forward: %v -> %v", m.PeakDate, m2.PeakDate)
	}
}

func TestCaseMarkersThresholdNeverReached(t *testing.T) {
	raw := makeSeries(1, 1, 1, 1, 1)
	sm := mustSmooth(t, raw, 3)
	m := CaseMarkers(raw, sm, 50, Config{GrowthFloor: 3, Dilation: 1})
	if m.ThresholdFound {
		t.Error("threshold reported found")
	}
	if m.PeakQuality != models.QualityInsufficient {
		t.Errorf("peak quality = %q, want insufficient", m.PeakQuality)
	}
}

func TestDeathMarkersLagBehindCases(t *testing.T) {
	caseBell := []int{10, 20, 40, 70, 100, 90, 60, 30, 10, 5, 2, 1}
	deathBell := []int{5, 10, 20, 35, 50, 45, 30, 15, 5, 2, 1, 1}
	cases := makeBell(20, caseBell, 20)
	// Deaths peak 6 days after cases.
	deaths := makeBell(26, deathBell, 14)

	smCases := mustSmooth(t, cases, 9)
	smDeaths := mustSmooth(t, deaths, 9)

	cfg := Config{GrowthFloor: 5, LagFloor: 4, Dilation: 1}
	cm := CaseMarkers(cases, smCases, 50, cfg)
	dm := DeathMarkers(deaths, smDeaths, 50, cm, cfg)

	if !dm.ThresholdFound {
		t.Fatal("day zero not found")
	}
	if dm.PeakQuality != models.QualityResolved {
		t.Errorf("death peak quality = %q, want resolved", dm.PeakQuality)
	}
	lag := utils.DaysBetween(cm.PeakDate, dm.PeakDate)
	if lag < 3 || lag > 9 {
		t.Errorf("lag = %d days, want roughly 6", lag)
	}
	if dm.HasEnd {
		t.Error("deaths track must not carry an end date")
	}
}

func TestDeathMarkersNoDayZero(t *testing.T) {
	cases := makeBell(10, []int{10, 20, 40, 70, 100, 60, 30, 10}, 10)
	deaths := makeSeries(make([]int, cases.Len())...)
	smCases := mustSmooth(t, cases, 5)
	smDeaths := mustSmooth(t, deaths, 5)

	cfg := Config{GrowthFloor: 5, LagFloor: 4, Dilation: 1}
	cm := CaseMarkers(cases, smCases, 50, cfg)
	dm := DeathMarkers(deaths, smDeaths, 50, cm, cfg)
	if dm.ThresholdFound {
		t.Error("day zero reported for all-zero deaths")
	}
	if dm.PeakQuality != models.QualityInsufficient {
		t.Errorf("quality = %q, want insufficient", dm.PeakQuality)
	}
}
