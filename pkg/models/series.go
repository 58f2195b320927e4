// Package models defines the core data structures used throughout EpiCurve.
package models

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"
)

// Metric identifies which epidemiological track a value belongs to.
type Metric string

const (
	MetricCases  Metric = "cases"
	MetricDeaths Metric = "deaths"
)

// DatedCount is a single day's reported count. Immutable once recorded.
type DatedCount struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

// Series is an ordered daily count sequence: strictly increasing dates, one
// entry per calendar day, missing days recorded as zero by the data layer.
// Pipeline stages never mutate a Series; each stage builds a new one.
type Series []DatedCount

// Len returns the number of days in the series.
func (s Series) Len() int { return len(s) }

// First returns the earliest date in the series.
func (s Series) First() time.Time {
	if len(s) == 0 {
		return time.Time{}
	}
	return s[0].Date
}

// Last returns the most recent date in the series.
func (s Series) Last() time.Time {
	if len(s) == 0 {
		return time.Time{}
	}
	return s[len(s)-1].Date
}

// Total returns the cumulative count over the whole series.
func (s Series) Total() int {
	total := 0
	for _, p := range s {
		total += p.Count
	}
	return total
}

// Values returns the daily counts as a float slice for numeric code.
func (s Series) Values() []float64 {
	vals := make([]float64, len(s))
	for i, p := range s {
		vals[i] = float64(p.Count)
	}
	return vals
}

// Cumulative returns the running total at each date.
func (s Series) Cumulative() []int {
	out := make([]int, len(s))
	total := 0
	for i, p := range s {
		total += p.Count
		out[i] = total
	}
	return out
}

// IsWellFormed reports whether the series has consecutive daily dates and
// non-negative counts. The data layer is responsible for producing
// well-formed series; analysis stages use this as an input check.
func (s Series) IsWellFormed() bool {
	for i, p := range s {
		if p.Count < 0 {
			return false
		}
		if i > 0 && !p.Date.Equal(s[i-1].Date.AddDate(0, 0, 1)) {
			return false
		}
	}
	return true
}

// Fingerprint returns a stable hex digest of the series contents, used to
// key cached fit results.
func (s Series) Fingerprint() string {
	h := sha256.New()
	var buf [8]byte
	for _, p := range s {
		binary.BigEndian.PutUint64(buf[:], uint64(p.Date.Unix()))
		h.Write(buf[:])
		binary.BigEndian.PutUint64(buf[:], uint64(p.Count))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// DatedValue is a single day's smoothed value.
type DatedValue struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// SmoothedSeries is the moving-average counterpart of a Series. It always
// covers the same date range as the raw series it was derived from.
type SmoothedSeries []DatedValue

// Len returns the number of days in the series.
func (s SmoothedSeries) Len() int { return len(s) }

// First returns the earliest date in the series.
func (s SmoothedSeries) First() time.Time {
	if len(s) == 0 {
		return time.Time{}
	}
	return s[0].Date
}

// Last returns the most recent date in the series.
func (s SmoothedSeries) Last() time.Time {
	if len(s) == 0 {
		return time.Time{}
	}
	return s[len(s)-1].Date
}

// Total returns the sum of smoothed daily values.
func (s SmoothedSeries) Total() float64 {
	total := 0.0
	for _, p := range s {
		total += p.Value
	}
	return total
}

// Values returns the smoothed daily values.
func (s SmoothedSeries) Values() []float64 {
	vals := make([]float64, len(s))
	for i, p := range s {
		vals[i] = p.Value
	}
	return vals
}

// Fingerprint returns a stable hex digest of the series contents.
func (s SmoothedSeries) Fingerprint() string {
	h := sha256.New()
	var buf [8]byte
	for _, p := range s {
		binary.BigEndian.PutUint64(buf[:], uint64(p.Date.Unix()))
		h.Write(buf[:])
		binary.BigEndian.PutUint64(buf[:], uint64(int64(p.Value*1e6)))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Day normalises a timestamp to midnight UTC, the resolution all series use.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
