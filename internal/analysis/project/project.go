// Package project extrapolates fitted outbreak models into the future.
package project

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/outbreaklab/epicurve/pkg/models"
)

// ErrUnreachable is returned when the requested percentile can never be
// reached, which happens only for a non-growing curve (rate <= 0).
var ErrUnreachable = errors.New("project: end percentile unreachable")

// Project evaluates the model day by day from `from` through horizonDays
// ahead. It is a pure function of the model and horizon: no state is
// carried between calls, and the result always has horizonDays+1 points.
func Project(m *models.SigmoidModel, from time.Time, horizonDays int) []models.ProjectionPoint {
	if horizonDays < 0 {
		horizonDays = 0
	}
	out := make([]models.ProjectionPoint, 0, horizonDays+1)
	for d := 0; d <= horizonDays; d++ {
		date := from.AddDate(0, 0, d)
		t := m.Days(date)
		out = append(out, models.ProjectionPoint{
			Date:        date,
			Cumulative:  m.CumulativeAt(t),
			Incremental: m.IncrementalAt(t),
		})
	}
	return out
}

// EndDate returns the first date at which cumulative(t)/scale reaches the
// given percentile, solved in closed form from the logistic curve.
func EndDate(m *models.SigmoidModel, percentile float64) (time.Time, error) {
	if m.Rate <= 0 {
		return time.Time{}, fmt.Errorf("%w: rate %f", ErrUnreachable, m.Rate)
	}
	if percentile <= 0 || percentile >= 1 {
		return time.Time{}, fmt.Errorf("%w: percentile %f outside (0, 1)", ErrUnreachable, percentile)
	}

	// cumulative(t)/scale = p  <=>  scaledTime = ln(p/(1-p)).
	u := math.Log(percentile / (1 - percentile))
	t := m.T0
	if u > 0 {
		// Past the midpoint the time axis is stretched by the dilation.
		t += m.Dilation * u / m.Rate
	} else {
		t += u / m.Rate
	}
	return m.DateAt(t), nil
}
