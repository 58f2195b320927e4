package models

import "time"

// MarkerQuality qualifies how settled a detected marker is.
type MarkerQuality string

const (
	// QualityResolved means the marker is backed by data on both sides.
	QualityResolved MarkerQuality = "resolved"
	// QualityProvisional means the marker sits on the latest available date
	// inside a minimum-duration floor and is expected to move forward as new
	// data arrives.
	QualityProvisional MarkerQuality = "provisional"
	// QualityInsufficient means the series was too short to detect a peak
	// and the threshold date is reported as a degenerate fallback.
	QualityInsufficient MarkerQuality = "insufficient data"
)

// EventMarkers holds the key inflection dates detected for one metric.
//
// For cases, ThresholdDate is the outbreak start (cumulative cases reached
// the configured threshold). For deaths it is "day zero". EndDate is the
// threshold date mirrored around the peak, dilated for asymmetric decay, and
// is only populated on the cases track.
type EventMarkers struct {
	Metric Metric `json:"metric"`

	ThresholdDate  time.Time `json:"threshold_date,omitzero"`
	ThresholdFound bool      `json:"threshold_found"`

	PeakDate    time.Time     `json:"peak_date,omitzero"`
	PeakValue   float64       `json:"peak_value"`
	PeakQuality MarkerQuality `json:"peak_quality"`

	EndDate time.Time `json:"end_date,omitzero"`
	HasEnd  bool      `json:"has_end"`
}

// GrowthDays returns the days from threshold to peak, or 0 if the threshold
// was never crossed.
func (m EventMarkers) GrowthDays() int {
	if !m.ThresholdFound || m.PeakDate.IsZero() {
		return 0
	}
	return int(m.PeakDate.Sub(m.ThresholdDate).Hours() / 24)
}
