// Package aggregate combines detector and fitter output into the final
// per-region report.
package aggregate

import (
	"time"

	"github.com/outbreaklab/epicurve/internal/analysis/project"
	"github.com/outbreaklab/epicurve/pkg/models"
	"github.com/outbreaklab/epicurve/pkg/utils"
)

// SpreadWarmup is the cumulative smoothed case count below which the
// infection-rate ratio is considered noise and reported as undefined.
const SpreadWarmup = 500

// Track bundles the upstream outputs for one metric.
type Track struct {
	Raw      models.Series
	Smoothed models.SmoothedSeries
	Markers  models.EventMarkers
	Model    *models.SigmoidModel
	FitErr   error
}

// Params tunes the derived metrics.
type Params struct {
	SpreadDays    int
	EndPercentile float64
	HorizonDays   int
}

// Build assembles the report from both tracks. It is a pure combination
// step: upstream failures are carried through per track (a failed fit
// leaves that track's model, projection, and end estimate unset), never
// swallowed or substituted.
func Build(geoID, region string, population int64, cases, deaths Track, p Params) *models.Report {
	r := &models.Report{
		GeoID:       geoID,
		Region:      region,
		GeneratedAt: time.Now().UTC(),
		Population:  population,
		Cases:       buildTrack(cases, p),
		Deaths:      buildTrack(deaths, p),
		Spread:      spreadSeries(cases.Smoothed, p.SpreadDays),
	}

	cm, dm := cases.Markers, deaths.Markers
	if cm.ThresholdFound && !cm.PeakDate.IsZero() {
		r.GrowthDays = cm.GrowthDays()
	}
	// Lag is signed: deaths peaking first yields a negative lag.
	if !cm.PeakDate.IsZero() && !dm.PeakDate.IsZero() && dm.ThresholdFound {
		r.LagDays = utils.DaysBetween(cm.PeakDate, dm.PeakDate)
	}

	r.Position = position(cm, cases.Raw.Last())

	if population > 0 {
		r.CasesPerMillion = float64(cases.Raw.Total()) * 1e6 / float64(population)
		r.DeathsPerMillion = float64(deaths.Raw.Total()) * 1e6 / float64(population)
	}
	return r
}

func buildTrack(t Track, p Params) models.TrackResult {
	out := models.TrackResult{
		Markers:  t.Markers,
		Raw:      t.Raw,
		Smoothed: t.Smoothed,
		Model:    t.Model,
	}
	if t.FitErr != nil {
		out.FitError = t.FitErr.Error()
	}
	if t.Model == nil {
		return out
	}

	out.Projection = project.Project(t.Model, t.Raw.Last(), p.HorizonDays)
	out.ProjectedTotal = t.Model.Scale

	if end, err := project.EndDate(t.Model, p.EndPercentile); err == nil {
		out.ProjectedEnd = end
	}
	return out
}

// spreadSeries computes the rolling infection-rate ratio: today's smoothed
// value over the value spreadDays earlier. The ratio is undefined (nil)
// for the first spreadDays days, while cumulative smoothed cases are below
// the warm-up, and when the lagged value is zero.
func spreadSeries(s models.SmoothedSeries, spreadDays int) []models.SpreadPoint {
	if spreadDays <= 0 || len(s) == 0 {
		return nil
	}
	out := make([]models.SpreadPoint, len(s))
	cum := 0.0
	for i, p := range s {
		cum += p.Value
		out[i] = models.SpreadPoint{Date: p.Date}
		if i < spreadDays || cum < SpreadWarmup {
			continue
		}
		prev := s[i-spreadDays].Value
		if prev == 0 {
			continue
		}
		ratio := p.Value / prev
		out[i].Ratio = &ratio
	}
	return out
}

// position reports how far through the outbreak the latest data sits:
// (latest-start)/(end-start). Zero when the start or end is unknown.
func position(cm models.EventMarkers, latest time.Time) float64 {
	if !cm.ThresholdFound || !cm.HasEnd || latest.IsZero() {
		return 0
	}
	span := utils.DaysBetween(cm.ThresholdDate, cm.EndDate)
	if span <= 0 {
		return 0
	}
	return float64(utils.DaysBetween(cm.ThresholdDate, latest)) / float64(span)
}
