// Package fit estimates logistic outbreak models from smoothed daily
// series by nonlinear least squares.
package fit

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/outbreaklab/epicurve/pkg/models"
)

// ErrFitFailed is returned for numerically degenerate input: too few
// non-zero points, or an optimizer that diverged to non-finite parameters.
var ErrFitFailed = errors.New("fit: degenerate input")

const (
	// MinNonZeroPoints is the minimum number of non-zero observations a
	// series must carry to be fittable.
	MinNonZeroPoints = 10

	// MaxIterations caps the optimizer. Exhausting the cap is not an
	// error: the best parameters found are returned with Converged=false.
	MaxIterations = 200

	// Tolerance is the relative SSE change below which the fit is
	// considered converged.
	Tolerance = 1e-6
)

// Options tunes a fit.
type Options struct {
	// Dilation is the initial decay-stretch guess; 1 when zero.
	Dilation float64
	// FitDilation treats dilation as a free parameter; otherwise it stays
	// pinned at the initial value.
	FitDilation bool
	// PeakDate seeds the midpoint; when zero the argmax of the series is
	// used.
	PeakDate time.Time
}

// Fit performs Levenberg-Marquardt least squares of the model's incremental
// curve against the smoothed daily values, over {scale, rate, midpoint} and
// optionally dilation. The initial guess is derived from the data: scale
// twice the observed total, midpoint at the observed peak, rate from the
// peak height.
func Fit(s models.SmoothedSeries, metric models.Metric, opts Options) (*models.SigmoidModel, error) {
	y := s.Values()

	nonZero := 0
	for _, v := range y {
		if v != 0 {
			nonZero++
		}
	}
	if nonZero < MinNonZeroPoints {
		return nil, fmt.Errorf("%w: %d non-zero points, need %d", ErrFitFailed, nonZero, MinNonZeroPoints)
	}

	d0 := opts.Dilation
	if d0 <= 0 {
		d0 = 1
	}

	total := 0.0
	peakIdx := 0
	for i, v := range y {
		total += v
		if v > y[peakIdx] {
			peakIdx = i
		}
	}
	t0 := float64(peakIdx)
	if !opts.PeakDate.IsZero() {
		t0 = opts.PeakDate.Sub(s.First()).Hours() / 24
	}

	// At the midpoint the bell height is scale*rate/4.
	x0 := 2 * total
	r0 := 4 * y[peakIdx] / x0
	r0 = math.Min(math.Max(r0, 0.01), 2)

	theta := []float64{x0, r0, t0}
	if opts.FitDilation {
		theta = append(theta, d0)
	}

	theta, sse, iterations, converged := levenberg(y, theta, d0, opts.FitDilation)

	for _, v := range theta {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: optimizer diverged after %d iterations", ErrFitFailed, iterations)
		}
	}

	m := &models.SigmoidModel{
		Metric:    metric,
		Start:     s.First(),
		Scale:     theta[0],
		Rate:      theta[1],
		T0:        theta[2],
		Dilation:  d0,
		Converged: converged,
	}
	if opts.FitDilation {
		m.Dilation = theta[3]
	}
	if !m.Valid() {
		return nil, fmt.Errorf("%w: invalid parameters scale=%f rate=%f dilation=%f", ErrFitFailed, m.Scale, m.Rate, m.Dilation)
	}
	m.FitQuality = rsquared(y, sse)
	return m, nil
}

// residuals evaluates model-minus-data at every day index.
func residuals(y []float64, theta []float64, dilation float64, fitDilation bool) ([]float64, float64) {
	m := paramsToModel(theta, dilation, fitDilation)
	res := make([]float64, len(y))
	sse := 0.0
	for i := range y {
		res[i] = m.IncrementalAt(float64(i)) - y[i]
		sse += res[i] * res[i]
	}
	return res, sse
}

func paramsToModel(theta []float64, dilation float64, fitDilation bool) models.SigmoidModel {
	m := models.SigmoidModel{Scale: theta[0], Rate: theta[1], T0: theta[2], Dilation: dilation}
	if fitDilation {
		m.Dilation = theta[3]
	}
	return m
}

// levenberg runs the damped least-squares loop: forward-difference Jacobian,
// normal equations solved via gonum, multiplicative damping adjustment.
func levenberg(y []float64, theta []float64, dilation float64, fitDilation bool) (best []float64, sse float64, iterations int, converged bool) {
	p := len(theta)
	n := len(y)
	lambda := 1e-3

	res, sse := residuals(y, theta, dilation, fitDilation)

	for iterations = 0; iterations < MaxIterations; iterations++ {
		// Forward-difference Jacobian.
		jac := mat.NewDense(n, p, nil)
		for j := 0; j < p; j++ {
			h := 1e-6 * math.Max(math.Abs(theta[j]), 1e-3)
			bumped := append([]float64(nil), theta...)
			bumped[j] += h
			bres, _ := residuals(y, bumped, dilation, fitDilation)
			for i := 0; i < n; i++ {
				jac.Set(i, j, (bres[i]-res[i])/h)
			}
		}

		// Normal equations with Levenberg damping on the diagonal.
		var jtj mat.Dense
		jtj.Mul(jac.T(), jac)
		for j := 0; j < p; j++ {
			jtj.Set(j, j, jtj.At(j, j)*(1+lambda)+1e-12)
		}
		rhs := mat.NewVecDense(p, nil)
		rv := mat.NewVecDense(n, res)
		rhs.MulVec(jac.T(), rv)

		var delta mat.VecDense
		if err := delta.SolveVec(&jtj, rhs); err != nil {
			lambda *= 10
			continue
		}

		trial := make([]float64, p)
		for j := 0; j < p; j++ {
			trial[j] = theta[j] - delta.AtVec(j)
		}
		// Keep the parameters inside the model's valid region.
		trial[0] = math.Max(trial[0], 1e-9) // scale
		trial[1] = math.Max(trial[1], 1e-9) // rate
		if fitDilation {
			trial[3] = math.Min(math.Max(trial[3], 0.05), 20)
		}

		tres, tsse := residuals(y, trial, dilation, fitDilation)
		if math.IsNaN(tsse) || math.IsInf(tsse, 0) {
			lambda *= 10
			continue
		}
		if tsse < sse {
			rel := (sse - tsse) / math.Max(sse, 1e-12)
			theta, res, sse = trial, tres, tsse
			lambda = math.Max(lambda/10, 1e-12)
			if rel < Tolerance || sse < 1e-12 {
				converged = true
				break
			}
		} else {
			lambda *= 10
			if lambda > 1e12 {
				// Damping saturated: no step improves the fit any more.
				converged = true
				break
			}
		}
	}
	return theta, sse, iterations, converged
}

// rsquared scores the fit as a coefficient of determination against the
// observed incremental series, as a percentage clamped to [0, 100].
func rsquared(y []float64, sse float64) float64 {
	mean := 0.0
	for _, v := range y {
		mean += v
	}
	mean /= float64(len(y))

	sst := 0.0
	for _, v := range y {
		sst += (v - mean) * (v - mean)
	}
	if sst == 0 {
		if sse == 0 {
			return 100
		}
		return 0
	}
	q := (1 - sse/sst) * 100
	return math.Min(math.Max(q, 0), 100)
}
