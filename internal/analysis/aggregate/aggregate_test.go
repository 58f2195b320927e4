package aggregate

import (
	"errors"
	"testing"
	"time"

	"github.com/outbreaklab/epicurve/internal/analysis/detect"
	"github.com/outbreaklab/epicurve/internal/analysis/smooth"
	"github.com/outbreaklab/epicurve/pkg/models"
)

func makeSeries(counts ...int) models.Series {
	start := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	s := make(models.Series, len(counts))
	for i, c := range counts {
		s[i] = models.DatedCount{Date: start.AddDate(0, 0, i), Count: c}
	}
	return s
}

func bellCounts(lead int, bell []int, tail int) []int {
	counts := make([]int, 0, lead+len(bell)+tail)
	for i := 0; i < lead; i++ {
		counts = append(counts, 0)
	}
	counts = append(counts, bell...)
	for i := 0; i < tail; i++ {
		counts = append(counts, 0)
	}
	return counts
}

func buildTracks(t *testing.T) (Track, Track) {
	t.Helper()
	caseBell := []int{100, 200, 400, 700, 1000, 900, 600, 300, 100, 50, 20, 10}
	deathBell := []int{10, 20, 40, 70, 100, 90, 60, 30, 10, 5, 2, 1}
	cases := makeSeries(bellCounts(15, caseBell, 15)...)
	deaths := makeSeries(bellCounts(21, deathBell, 9)...)

	smCases, err := smooth.Smooth(cases, 9)
	if err != nil {
		t.Fatal(err)
	}
	smDeaths, err := smooth.Smooth(deaths, 9)
	if err != nil {
		t.Fatal(err)
	}

	cfg := detect.Config{GrowthFloor: 3, LagFloor: 4, Dilation: 1}
	cm := detect.CaseMarkers(cases, smCases, 50, cfg)
	dm := detect.DeathMarkers(deaths, smDeaths, 50, cm, cfg)

	model := &models.SigmoidModel{
		Metric: models.MetricCases, Start: cases.First(),
		Scale: 4500, Rate: 0.5, T0: 19, Dilation: 1, FitQuality: 97, Converged: true,
	}
	return Track{Raw: cases, Smoothed: smCases, Markers: cm, Model: model},
		Track{Raw: deaths, Smoothed: smDeaths, Markers: dm}
}

func TestBuildDerivedMetrics(t *testing.T) {
	cases, deaths := buildTracks(t)
	p := Params{SpreadDays: 7, EndPercentile: 0.95, HorizonDays: 10}

	r := Build("UK", "United Kingdom", 66_000_000, cases, deaths, p)

	if r.GrowthDays != cases.Markers.GrowthDays() {
		t.Errorf("growth = %d, want %d", r.GrowthDays, cases.Markers.GrowthDays())
	}
	wantLag := int(deaths.Markers.PeakDate.Sub(cases.Markers.PeakDate).Hours() / 24)
	if r.LagDays != wantLag {
		t.Errorf("lag = %d, want %d", r.LagDays, wantLag)
	}
	if r.Position <= 0 {
		t.Errorf("position = %f, want > 0", r.Position)
	}
	if r.CasesPerMillion <= 0 {
		t.Error("cases per million not computed")
	}

	// Cases track has a model: projection + end estimate populated.
	if len(r.Cases.Projection) != p.HorizonDays+1 {
		t.Errorf("projection length = %d, want %d", len(r.Cases.Projection), p.HorizonDays+1)
	}
	if r.Cases.ProjectedTotal != 4500 {
		t.Errorf("projected total = %f, want model scale", r.Cases.ProjectedTotal)
	}
	if r.Cases.ProjectedEnd.IsZero() {
		t.Error("projected end missing for fitted track")
	}

	// Deaths track has no model: dependent fields stay unset.
	if r.Deaths.Model != nil || len(r.Deaths.Projection) != 0 || !r.Deaths.ProjectedEnd.IsZero() {
		t.Error("unfitted track must leave model-derived fields unset")
	}
}

func TestBuildNegativeLagReportedAsIs(t *testing.T) {
	cases, deaths := buildTracks(t)
	// Force deaths to peak before cases.
	deaths.Markers.PeakDate = cases.Markers.PeakDate.AddDate(0, 0, -3)

	r := Build("XX", "Testland", 0, cases, deaths, Params{SpreadDays: 7, EndPercentile: 0.95})
	if r.LagDays != -3 {
		t.Errorf("lag = %d, want -3 (not clamped)", r.LagDays)
	}
}

func TestBuildPropagatesFitError(t *testing.T) {
	cases, deaths := buildTracks(t)
	deaths.FitErr = errors.New("fit: degenerate input")

	r := Build("XX", "Testland", 0, cases, deaths, Params{SpreadDays: 7, EndPercentile: 0.95})
	if r.Deaths.FitError == "" {
		t.Error("fit error not propagated to report")
	}
	// The other track is unaffected.
	if r.Cases.Model == nil {
		t.Error("cases track lost its model")
	}
}

func TestSpreadSeriesUndefinedEarly(t *testing.T) {
	cases, deaths := buildTracks(t)
	r := Build("XX", "Testland", 0, cases, deaths, Params{SpreadDays: 7, EndPercentile: 0.95})

	if len(r.Spread) != cases.Smoothed.Len() {
		t.Fatalf("spread length = %d, want %d", len(r.Spread), cases.Smoothed.Len())
	}
	for i := 0; i < 7; i++ {
		if r.Spread[i].Ratio != nil {
			t.Errorf("spread[%d] defined inside the first 7 days", i)
		}
	}
	defined := 0
	for _, sp := range r.Spread {
		if sp.Ratio != nil {
			defined++
			if *sp.Ratio < 0 {
				t.Errorf("negative spread ratio %f", *sp.Ratio)
			}
		}
	}
	if defined == 0 {
		t.Error("no spread ratios defined for a full bell series")
	}
}
