// Package pipeline runs the full analysis chain for a region: smoothing,
// event detection, curve fitting, extrapolation, and report aggregation.
//
// A run is a pure function of the full series to date: nothing is updated
// incrementally when new daily data arrives, the whole pipeline simply runs
// again. Regions are independent and may be analysed concurrently.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/outbreaklab/epicurve/internal/analysis/aggregate"
	"github.com/outbreaklab/epicurve/internal/analysis/detect"
	"github.com/outbreaklab/epicurve/internal/analysis/fit"
	"github.com/outbreaklab/epicurve/internal/analysis/smooth"
	"github.com/outbreaklab/epicurve/internal/config"
	"github.com/outbreaklab/epicurve/internal/infra"
	"github.com/outbreaklab/epicurve/pkg/models"
)

// Input is one region's raw data, as supplied by the data layer:
// daily-bucketed, gap-free, non-negative.
type Input struct {
	GeoID      string
	Region     string
	Population int64
	Cases      models.Series
	Deaths     models.Series
}

// Pipeline analyses regions with a shared fit cache. Fits are keyed by a
// fingerprint of the smoothed series, so re-running a region whose data
// has not changed reuses the previous fit; singleflight guarantees
// at-most-one fit computation per fingerprint even under concurrent runs.
type Pipeline struct {
	cfg    config.AnalysisConfig
	fits   *infra.Cache
	flight singleflight.Group
}

// New creates a pipeline with the given analysis configuration.
func New(cfg config.AnalysisConfig) *Pipeline {
	return &Pipeline{
		cfg:  cfg,
		fits: infra.NewCache(24 * time.Hour),
	}
}

// Run executes the full pipeline for one region. The two tracks fail
// independently: a degenerate deaths series does not prevent the cases
// analysis from completing, and vice versa.
func (p *Pipeline) Run(in Input) (*models.Report, error) {
	cases, err := p.analyseTrack(in.Cases, models.MetricCases, p.cfg.CaseThreshold, nil)
	if err != nil {
		return nil, fmt.Errorf("cases track: %w", err)
	}
	deaths, err := p.analyseTrack(in.Deaths, models.MetricDeaths, p.cfg.DeathThreshold, &cases.Markers)
	if err != nil {
		return nil, fmt.Errorf("deaths track: %w", err)
	}

	params := aggregate.Params{
		SpreadDays:    p.cfg.SpreadDays,
		EndPercentile: p.cfg.EndPercentile,
		HorizonDays:   p.cfg.HorizonDays,
	}
	return aggregate.Build(in.GeoID, in.Region, in.Population, *cases, *deaths, params), nil
}

// analyseTrack runs smoothing, detection, and fitting for one metric.
// Detection floors come from the configuration; the case markers steer the
// deaths peak search.
func (p *Pipeline) analyseTrack(raw models.Series, metric models.Metric, threshold int, caseMarkers *models.EventMarkers) (*aggregate.Track, error) {
	if !raw.IsWellFormed() {
		return nil, fmt.Errorf("%w: %s series has gaps or negative counts", smooth.ErrInvalidInput, metric)
	}

	smoothed, err := smooth.Smooth(raw, p.cfg.SmoothWindow)
	if err != nil {
		return nil, err
	}
	smoothed = smooth.RescaleToTotal(smoothed, raw.Total())

	dcfg := detect.Config{
		GrowthFloor: p.cfg.GrowthDays,
		LagFloor:    p.cfg.LagDays,
		Dilation:    p.cfg.Dilation,
	}
	var markers models.EventMarkers
	if metric == models.MetricCases {
		markers = detect.CaseMarkers(raw, smoothed, threshold, dcfg)
	} else {
		var cm models.EventMarkers
		if caseMarkers != nil {
			cm = *caseMarkers
		}
		markers = detect.DeathMarkers(raw, smoothed, threshold, cm, dcfg)
	}

	track := &aggregate.Track{Raw: raw, Smoothed: smoothed, Markers: markers}

	// A fit failure is a per-track degradation, not a pipeline error.
	model, fitErr := p.fitCached(smoothed, metric, markers)
	track.Model = model
	track.FitErr = fitErr
	return track, nil
}

// fitCached fits the smoothed series, reusing a previous result when the
// series is byte-identical to one fitted before.
func (p *Pipeline) fitCached(s models.SmoothedSeries, metric models.Metric, markers models.EventMarkers) (*models.SigmoidModel, error) {
	key := string(metric) + ":" + s.Fingerprint()
	if cached, ok := p.fits.Get(key); ok {
		res := cached.(fitResult)
		return res.model, res.err
	}

	v, _, _ := p.flight.Do(key, func() (any, error) {
		opts := fit.Options{
			Dilation:    p.cfg.Dilation,
			FitDilation: p.cfg.FitDilation,
		}
		if markers.PeakQuality == models.QualityResolved {
			opts.PeakDate = markers.PeakDate
		}
		model, err := fit.Fit(s, metric, opts)
		res := fitResult{model: model, err: err}
		p.fits.Set(key, res)
		return res, nil
	})
	res := v.(fitResult)
	return res.model, res.err
}

type fitResult struct {
	model *models.SigmoidModel
	err   error
}

// RunAll analyses many regions concurrently. Region failures are collected
// per region rather than aborting the batch; the returned error is the
// first context-level failure, if any.
func (p *Pipeline) RunAll(ctx context.Context, inputs []Input) (map[string]*models.Report, map[string]error, error) {
	var mu sync.Mutex
	reports := make(map[string]*models.Report, len(inputs))
	failures := make(map[string]error)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for _, in := range inputs {
		in := in
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			report, err := p.Run(in)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[in.GeoID] = err
				return nil
			}
			reports[in.GeoID] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return reports, failures, err
	}
	return reports, failures, nil
}
