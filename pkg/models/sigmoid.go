package models

import (
	"math"
	"time"
)

// SigmoidModel is a fitted logistic outbreak model.
//
// Time is measured in days since Start. The cumulative curve is
//
//	cumulative(t) = Scale / (1 + exp(-Rate*(t-T0)/dil))
//
// where dil is 1 before the midpoint and Dilation after it, so Dilation=1
// gives a symmetric bell and Dilation>1 stretches the post-peak decay. The
// incremental curve is the time derivative of the cumulative curve.
type SigmoidModel struct {
	Metric Metric `json:"metric"`

	// Start anchors the model's day axis: t=0 is the first date of the
	// series the model was fitted to.
	Start time.Time `json:"start"`

	Scale    float64 `json:"scale"`    // X: asymptotic final size, > 0
	Rate     float64 `json:"rate"`     // r: growth rate, > 0
	T0       float64 `json:"t0"`       // midpoint in days since Start
	Dilation float64 `json:"dilation"` // d: post-peak decay stretch, > 0

	// FitQuality is the coefficient of determination against the smoothed
	// incremental series, as a percentage in [0, 100].
	FitQuality float64 `json:"fit_quality"`

	// Converged is false when the optimizer hit its iteration cap before
	// reaching the tolerance; the parameters are the best found so far.
	Converged bool `json:"converged"`
}

// scaledTime maps t (days since Start) onto the dilated time axis.
func (m SigmoidModel) scaledTime(t float64) float64 {
	x := t - m.T0
	if x > 0 && m.Dilation != 0 {
		x /= m.Dilation
	}
	return m.Rate * x
}

// CumulativeAt evaluates the cumulative curve at t days since Start.
func (m SigmoidModel) CumulativeAt(t float64) float64 {
	return m.Scale / (1 + math.Exp(-m.scaledTime(t)))
}

// IncrementalAt evaluates the daily-new curve at t days since Start.
func (m SigmoidModel) IncrementalAt(t float64) float64 {
	e := math.Exp(-m.scaledTime(t))
	if math.IsInf(e, 1) {
		return 0
	}
	w := m.Rate
	if t > m.T0 && m.Dilation != 0 {
		w = m.Rate / m.Dilation
	}
	return m.Scale * w * e / ((1 + e) * (1 + e))
}

// Days converts a date to the model's day axis.
func (m SigmoidModel) Days(date time.Time) float64 {
	return date.Sub(m.Start).Hours() / 24
}

// DateAt converts a day offset back to a calendar date, rounding up so a
// fractional crossing lands on the first whole day at or past it.
func (m SigmoidModel) DateAt(t float64) time.Time {
	return m.Start.AddDate(0, 0, int(math.Ceil(t)))
}

// Valid reports whether the parameters satisfy the model invariants.
func (m SigmoidModel) Valid() bool {
	return m.Scale > 0 && m.Rate > 0 && m.Dilation > 0 &&
		!math.IsNaN(m.T0) && !math.IsInf(m.T0, 0)
}

// ProjectionPoint is one day of an extrapolated trajectory.
type ProjectionPoint struct {
	Date        time.Time `json:"date"`
	Cumulative  float64   `json:"cumulative"`
	Incremental float64   `json:"incremental"`
}
