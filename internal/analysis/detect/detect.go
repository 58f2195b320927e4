// Package detect locates threshold crossings and peaks in smoothed
// epidemic series, applying minimum-duration floors to suppress spurious
// early maxima while counts are still small and noisy.
package detect

import (
	"time"

	"github.com/outbreaklab/epicurve/pkg/models"
	"github.com/outbreaklab/epicurve/pkg/utils"
)

// Config holds the detection floors and the end-date dilation.
type Config struct {
	// GrowthFloor is the minimum expected days between the threshold date
	// and the case peak.
	GrowthFloor int
	// LagFloor is the minimum expected days between the case peak and the
	// death peak.
	LagFloor int
	// Dilation stretches the mirrored end date past the peak.
	Dilation float64
}

// Threshold returns the first date the cumulative raw count reaches
// threshold, and false if it is never reached. Raising the threshold never
// moves the returned date earlier.
func Threshold(raw models.Series, threshold int) (time.Time, bool) {
	total := 0
	for _, p := range raw {
		total += p.Count
		if total >= threshold {
			return p.Date, true
		}
	}
	return time.Time{}, false
}

// peakAfter finds the maximum smoothed value at or after `from`, up to and
// including `until` when until is non-zero. Ties resolve to the earliest
// date.
func peakAfter(s models.SmoothedSeries, from, until time.Time) (time.Time, float64, bool) {
	var (
		best     float64
		bestDate time.Time
		found    bool
	)
	for _, p := range s {
		if p.Date.Before(from) {
			continue
		}
		if !until.IsZero() && p.Date.After(until) {
			break
		}
		if !found || p.Value > best {
			best = p.Value
			bestDate = p.Date
			found = true
		}
	}
	return bestDate, best, found
}

// CaseMarkers detects the outbreak start, the case peak, and the mirrored
// end date for the cases track.
//
// The peak search starts at the threshold date so that the peak can never
// precede the start. A maximum that sits on the final available date while
// still inside the growth floor is reported as provisional: it is the
// current best estimate and is expected to move forward as data arrives.
// A series whose whole span past the threshold is shorter than the floor
// degenerates to peakDate = thresholdDate with an insufficient-data flag.
func CaseMarkers(raw models.Series, smoothed models.SmoothedSeries, threshold int, cfg Config) models.EventMarkers {
	m := models.EventMarkers{Metric: models.MetricCases}

	start, found := Threshold(raw, threshold)
	if !found {
		m.PeakQuality = models.QualityInsufficient
		return m
	}
	m.ThresholdDate = start
	m.ThresholdFound = true

	if raw.Len() < cfg.GrowthFloor {
		m.PeakDate = start
		m.PeakQuality = models.QualityInsufficient
		return m
	}

	peak, value, ok := peakAfter(smoothed, start, time.Time{})
	if !ok {
		m.PeakDate = start
		m.PeakQuality = models.QualityInsufficient
		return m
	}
	m.PeakDate = peak
	m.PeakValue = value
	m.PeakQuality = models.QualityResolved

	if peak.Equal(smoothed.Last()) && utils.DaysBetween(start, peak) < cfg.GrowthFloor {
		// The maximum is simply the newest data point: the outbreak is
		// still growing and the peak will move forward with new data.
		m.PeakQuality = models.QualityProvisional
	}

	m.EndDate = mirrorEnd(start, peak, cfg.Dilation)
	m.HasEnd = true
	return m
}

// DeathMarkers detects day zero and the death peak. The peak search starts
// at the earlier of day zero and (case peak - lag floor), and
// stops at the projected case end date to avoid drifting onto a second
// wave. A death maximum on the final date inside the lag floor from the
// case peak is provisional.
func DeathMarkers(raw models.Series, smoothed models.SmoothedSeries, threshold int, cases models.EventMarkers, cfg Config) models.EventMarkers {
	m := models.EventMarkers{Metric: models.MetricDeaths}

	day0, found := Threshold(raw, threshold)
	if !found {
		m.PeakQuality = models.QualityInsufficient
		return m
	}
	m.ThresholdDate = day0
	m.ThresholdFound = true

	from := day0
	if !cases.PeakDate.IsZero() {
		if f := cases.PeakDate.AddDate(0, 0, -cfg.LagFloor); f.After(from) {
			from = f
		}
	}
	var until time.Time
	if cases.HasEnd {
		until = cases.EndDate
	}

	peak, value, ok := peakAfter(smoothed, from, until)
	if !ok {
		// The capped window can be empty when the case growth phase was
		// short; retry from day zero without the second-wave cap.
		peak, value, ok = peakAfter(smoothed, day0, time.Time{})
	}
	if !ok {
		m.PeakDate = day0
		m.PeakQuality = models.QualityInsufficient
		return m
	}
	m.PeakDate = peak
	m.PeakValue = value
	m.PeakQuality = models.QualityResolved

	if !cases.PeakDate.IsZero() &&
		peak.Equal(smoothed.Last()) &&
		!peak.Before(cases.PeakDate) &&
		utils.DaysBetween(cases.PeakDate, peak) < cfg.LagFloor {
		m.PeakQuality = models.QualityProvisional
	}
	return m
}

// mirrorEnd reflects the threshold date around the peak, stretched by the
// dilation factor: end = peak + (peak - start) * dilation.
func mirrorEnd(start, peak time.Time, dilation float64) time.Time {
	if dilation <= 0 {
		dilation = 1
	}
	growth := utils.DaysBetween(start, peak)
	return peak.AddDate(0, 0, int(float64(growth)*dilation+0.5))
}
