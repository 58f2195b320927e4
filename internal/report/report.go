// Package report renders a region's analysis as plain-text sections and
// tables for terminal display.
package report

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/outbreaklab/epicurve/pkg/models"
	"github.com/outbreaklab/epicurve/pkg/utils"
)

// Options controls which tables are rendered and how far they extend.
type Options struct {
	RecentDays  int // rows in the recent-data table
	PredictDays int // rows in the prediction table
}

// DefaultOptions returns the rendering defaults.
func DefaultOptions() Options {
	return Options{RecentDays: 7, PredictDays: 14}
}

// Render produces the full text report: summary, recent days, prediction.
func Render(r *models.Report, opts Options) string {
	var sb strings.Builder
	sb.WriteString(Summary(r))
	sb.WriteString(Recent(r, opts.RecentDays))
	sb.WriteString(Prediction(r, opts.PredictDays))
	return sb.String()
}

// Summary renders the headline statistics: totals and per-million rates,
// the event timeline, the fitted parameters, and the projected outcome.
func Summary(r *models.Report) string {
	var sb strings.Builder

	latest := r.Cases.Raw.Last()
	sb.WriteString(fmt.Sprintf("%s data to end of %s:\n", r.Region, utils.FormatDate(latest)))
	sb.WriteString(fmt.Sprintf("  %s cases, %s deaths\n",
		utils.GroupThousands(int64(r.Cases.Raw.Total())),
		utils.GroupThousands(int64(r.Deaths.Raw.Total()))))
	if r.Population > 0 {
		sb.WriteString(fmt.Sprintf("  %s cases per million, %s deaths per million (population = %s)\n",
			utils.GroupThousands(int64(math.Round(r.CasesPerMillion))),
			utils.GroupThousands(int64(math.Round(r.DeathsPerMillion))),
			utils.GroupThousands(r.Population)))
	}
	sb.WriteString("\n")

	writeTimeline(&sb, r)
	writeParameters(&sb, r)
	writeOutcome(&sb, r)
	return sb.String()
}

func writeTimeline(sb *strings.Builder, r *models.Report) {
	cm, dm := r.Cases.Markers, r.Deaths.Markers

	sb.WriteString("Timeline:\n")
	switch {
	case !cm.ThresholdFound:
		sb.WriteString("  Now:         outbreak threshold not reached\n\n")
		return
	case r.Position > 1:
		sb.WriteString("  Now:         past end of first outbreak\n")
	case r.Position > 0:
		sb.WriteString(fmt.Sprintf("  Now:         %.0f%% through outbreak\n", r.Position*100))
	}

	sb.WriteString(fmt.Sprintf("  Start:       %s (case threshold reached)\n",
		utils.FormatDate(cm.ThresholdDate)))
	if !cm.PeakDate.IsZero() {
		sb.WriteString(fmt.Sprintf("  Peak Cases:  %s (%s cases%s)\n",
			utils.FormatDate(cm.PeakDate),
			utils.FormatCount(cm.PeakValue, 0),
			qualityTag(cm.PeakQuality)))
	}
	if cm.HasEnd {
		sb.WriteString(fmt.Sprintf("  End:         %s (%d days after peak cases)\n",
			utils.FormatDate(cm.EndDate),
			utils.DaysBetween(cm.PeakDate, cm.EndDate)))
	}
	if dm.ThresholdFound {
		sb.WriteString(fmt.Sprintf("  Day Zero:    %s (death threshold reached)\n",
			utils.FormatDate(dm.ThresholdDate)))
		if !dm.PeakDate.IsZero() {
			sb.WriteString(fmt.Sprintf("  Peak Deaths: %s (%s deaths%s)\n",
				utils.FormatDate(dm.PeakDate),
				utils.FormatCount(dm.PeakValue, 0),
				qualityTag(dm.PeakQuality)))
		}
	}
	sb.WriteString("\n")
}

func writeParameters(sb *strings.Builder, r *models.Report) {
	sb.WriteString("Parameters:\n")
	if r.GrowthDays > 0 {
		sb.WriteString(fmt.Sprintf("  Growth:      %d days (Start -> Peak Cases)\n", r.GrowthDays))
	}
	writeModelLine(sb, r.Cases, "cases")
	if r.LagDays != 0 {
		sb.WriteString(fmt.Sprintf("  Lag:         %d days (Peak Cases -> Peak Deaths)\n", r.LagDays))
	}
	writeModelLine(sb, r.Deaths, "deaths")

	if peak, latest, ok := spreadExtremes(r.Spread); ok {
		sb.WriteString(fmt.Sprintf("  Spread:      Peak infection rate %.1f (%s)\n",
			*peak.Ratio, utils.FormatDate(peak.Date)))
		sb.WriteString(fmt.Sprintf("               Latest infection rate %.1f (%s)\n",
			*latest.Ratio, utils.FormatDate(latest.Date)))
	}
	sb.WriteString("\n")
}

func writeModelLine(sb *strings.Builder, t models.TrackResult, label string) {
	if t.Model == nil {
		if t.FitError != "" {
			sb.WriteString(fmt.Sprintf("               no %s curve: %s\n", label, t.FitError))
		}
		return
	}
	m := t.Model
	sb.WriteString(fmt.Sprintf("               X = %s, r = %.2f, dilation = %.1f, quality = %s for %s\n",
		utils.GroupThousands(int64(m.Scale)), m.Rate, m.Dilation,
		utils.FormatPercent(m.FitQuality), label))
}

func writeOutcome(sb *strings.Builder, r *models.Report) {
	m := r.Cases.Model
	if m == nil {
		return
	}

	if r.Cases.ProjectedEnd.IsZero() {
		sb.WriteString(fmt.Sprintf("Outcome: %s total cases projected, end date not reachable\n",
			utils.GroupThousands(int64(r.Cases.ProjectedTotal))))
	} else {
		sb.WriteString(fmt.Sprintf("Outcome: %s total cases projected by end of %s\n",
			utils.GroupThousands(int64(r.Cases.ProjectedTotal)),
			utils.FormatDate(r.Cases.ProjectedEnd)))
	}
	reported := float64(r.Cases.Raw.Total())
	if r.Cases.ProjectedTotal > 0 {
		sb.WriteString(fmt.Sprintf("  %s of projected cases reported to date\n",
			utils.FormatPercent(100*reported/r.Cases.ProjectedTotal)))
	}
	if dm := r.Deaths.Model; dm != nil {
		sb.WriteString(fmt.Sprintf("  %s total deaths projected\n",
			utils.GroupThousands(int64(dm.Scale))))
	}
	if r.Population > 0 && r.Cases.ProjectedTotal > 0 {
		rate := r.Cases.ProjectedTotal * 1e6 / float64(r.Population)
		sb.WriteString(fmt.Sprintf("  %s projected cases per million\n",
			utils.GroupThousands(int64(math.Round(rate)))))
	}
	sb.WriteString("\n")
}

// Recent renders the last days of raw and smoothed data side by side.
func Recent(r *models.Report, days int) string {
	n := r.Cases.Raw.Len()
	if days <= 0 || n == 0 {
		return ""
	}
	if days > n {
		days = n
	}

	var sb strings.Builder
	sb.WriteString("              Raw ----------       Total --------     Smoothed ------      Total ---------\n")
	sb.WriteString("Date          Cases   Deaths       Cases   Deaths     Cases   Deaths       Cases   Deaths\n")

	rawCaseCum := runningTotal(r.Cases.Raw.Values())
	rawDeathCum := runningTotal(r.Deaths.Raw.Values())
	smCaseCum := runningTotal(r.Cases.Smoothed.Values())
	smDeathCum := runningTotal(r.Deaths.Smoothed.Values())

	for i := n - days; i < n; i++ {
		d := r.Cases.Raw[i]
		sb.WriteString(utils.FormatDate(d.Date))
		sb.WriteString(utils.FormatCount(float64(d.Count), 8))
		sb.WriteString(utils.FormatCount(trackValue(r.Deaths.Raw, i), 9))
		sb.WriteString(utils.FormatCount(rawCaseCum[i], 12))
		sb.WriteString(utils.FormatCount(indexOr(rawDeathCum, i), 9))
		sb.WriteString(utils.FormatCount(indexOr(r.Cases.Smoothed.Values(), i), 10))
		sb.WriteString(utils.FormatCount(indexOr(r.Deaths.Smoothed.Values(), i), 9))
		sb.WriteString(utils.FormatCount(indexOr(smCaseCum, i), 12))
		sb.WriteString(utils.FormatCount(indexOr(smDeathCum, i), 9))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	return sb.String()
}

// Prediction renders the projected daily and cumulative curves from the
// latest data date forward. The first row is marked as the latest raw data.
func Prediction(r *models.Report, days int) string {
	if days <= 0 || r.Cases.Model == nil || len(r.Cases.Projection) == 0 {
		return ""
	}

	deathsByDate := make(map[time.Time]models.ProjectionPoint, len(r.Deaths.Projection))
	for _, p := range r.Deaths.Projection {
		deathsByDate[p.Date] = p
	}

	var sb strings.Builder
	sb.WriteString("              Prediction ---      Total -------\n")
	sb.WriteString("Date          Cases   Deaths      Cases  Deaths\n")

	for i, p := range r.Cases.Projection {
		if i >= days {
			break
		}
		dc, dt := math.NaN(), math.NaN()
		if dp, ok := deathsByDate[p.Date]; ok {
			dc, dt = dp.Incremental, dp.Cumulative
		}
		marker := ""
		if p.Date.Equal(r.Cases.Raw.Last()) {
			marker = "  <-- latest raw data"
		}
		sb.WriteString(utils.FormatDate(p.Date))
		sb.WriteString(utils.FormatCount(p.Incremental, 8))
		sb.WriteString(utils.FormatCount(dc, 9))
		sb.WriteString(utils.FormatCount(p.Cumulative, 11))
		sb.WriteString(utils.FormatCount(dt, 8))
		sb.WriteString(marker)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	return sb.String()
}

func qualityTag(q models.MarkerQuality) string {
	if q == models.QualityProvisional {
		return ", provisional"
	}
	return ""
}

// spreadExtremes finds the peak and latest defined infection-rate points.
func spreadExtremes(spread []models.SpreadPoint) (peak, latest models.SpreadPoint, ok bool) {
	for _, sp := range spread {
		if sp.Ratio == nil {
			continue
		}
		if !ok || *sp.Ratio > *peak.Ratio {
			peak = sp
		}
		latest = sp
		ok = true
	}
	return peak, latest, ok
}

func trackValue(s models.Series, i int) float64 {
	if i < 0 || i >= len(s) {
		return math.NaN()
	}
	return float64(s[i].Count)
}

func indexOr(vals []float64, i int) float64 {
	if i < 0 || i >= len(vals) {
		return math.NaN()
	}
	return vals[i]
}

func runningTotal(vals []float64) []float64 {
	out := make([]float64, len(vals))
	total := 0.0
	for i, v := range vals {
		total += v
		out[i] = total
	}
	return out
}
