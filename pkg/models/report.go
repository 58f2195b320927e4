package models

import "time"

// SpreadPoint is the rolling infection-rate ratio at one date: today's
// smoothed new cases over the value a configured number of days earlier.
// Ratio is nil while the ratio is undefined (warm-up period or zero
// denominator).
type SpreadPoint struct {
	Date  time.Time `json:"date"`
	Ratio *float64  `json:"ratio"`
}

// TrackResult bundles everything derived for one metric (cases or deaths).
type TrackResult struct {
	Markers  EventMarkers   `json:"markers"`
	Raw      Series         `json:"raw"`
	Smoothed SmoothedSeries `json:"smoothed"`

	// Model is nil when the fit failed for this track; the other track is
	// unaffected.
	Model      *SigmoidModel     `json:"model,omitempty"`
	FitError   string            `json:"fit_error,omitempty"`
	Projection []ProjectionPoint `json:"projection,omitempty"`

	// ProjectedEnd is the first date the model's cumulative curve reaches
	// the configured percentile of its asymptotic total.
	ProjectedEnd   time.Time `json:"projected_end,omitzero"`
	ProjectedTotal float64   `json:"projected_total"`
}

// Report is the full output of one pipeline run for one region. It is built
// fresh on every run and is not persisted by the core.
type Report struct {
	GeoID       string    `json:"geo_id"`
	Region      string    `json:"region"`
	GeneratedAt time.Time `json:"generated_at"`

	Cases  TrackResult `json:"cases"`
	Deaths TrackResult `json:"deaths"`

	// GrowthDays is case threshold to case peak; LagDays is case peak to
	// death peak, signed (negative when deaths peak first).
	GrowthDays int `json:"growth_days"`
	LagDays    int `json:"lag_days"`

	// Position is how far through the outbreak the latest data sits,
	// (latest-start)/(end-start); > 1 means past the projected end.
	Position float64 `json:"position"`

	Spread []SpreadPoint `json:"spread"`

	// Population-normalised outcome rates, zero when population is unknown.
	Population      int64   `json:"population,omitempty"`
	CasesPerMillion float64 `json:"cases_per_million,omitempty"`
	DeathsPerMillion float64 `json:"deaths_per_million,omitempty"`
}
