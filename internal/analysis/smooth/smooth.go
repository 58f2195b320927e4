// Package smooth converts raw daily count series into centered
// moving-average series.
package smooth

import (
	"errors"
	"fmt"

	"github.com/outbreaklab/epicurve/pkg/models"
)

// ErrInvalidInput is returned for an empty series or a bad window.
var ErrInvalidInput = errors.New("smooth: invalid input")

// Smooth returns the centered moving average of the raw series over a window
// of `window` days (window = 2k+1). The first and last k days use a shrinking
// asymmetric window instead of being dropped, so the output covers the same
// date range as the input; boundary values trade precision for coverage of
// the most recent days.
func Smooth(raw models.Series, window int) (models.SmoothedSeries, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty series", ErrInvalidInput)
	}
	if window < 1 || window%2 == 0 {
		return nil, fmt.Errorf("%w: window must be a positive odd integer, got %d", ErrInvalidInput, window)
	}

	n := len(raw)
	k := (window - 1) / 2
	out := make(models.SmoothedSeries, n)

	for i := 0; i < n; i++ {
		lo := i - k
		if lo < 0 {
			lo = 0
		}
		hi := i + k
		if hi > n-1 {
			hi = n - 1
		}
		sum := 0.0
		for j := lo; j <= hi; j++ {
			sum += float64(raw[j].Count)
		}
		out[i] = models.DatedValue{
			Date:  raw[i].Date,
			Value: sum / float64(hi-lo+1),
		}
	}
	return out, nil
}

// RescaleToTotal scales a smoothed series so its sum matches the raw
// cumulative total, compensating for mass lost or gained at the shrunken
// boundary windows. A zero smoothed total leaves the series unchanged.
func RescaleToTotal(s models.SmoothedSeries, rawTotal int) models.SmoothedSeries {
	sum := s.Total()
	if sum == 0 {
		return s
	}
	factor := float64(rawTotal) / sum
	out := make(models.SmoothedSeries, len(s))
	for i, p := range s {
		out[i] = models.DatedValue{Date: p.Date, Value: p.Value * factor}
	}
	return out
}
