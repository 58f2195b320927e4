package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/outbreaklab/epicurve/internal/infra"
	"github.com/outbreaklab/epicurve/pkg/models"
	"github.com/outbreaklab/epicurve/pkg/utils"
)

// DefaultFeedURL is the ECDC worldwide case distribution feed.
const DefaultFeedURL = "https://opendata.ecdc.europa.eu/covid19/casedistribution/json/"

// flexInt decodes a JSON value that may arrive as a number, a numeric
// string, or null. The ECDC feed is not consistent about this across
// snapshots.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	// Some snapshots carry counts as floats ("123.0").
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse count %q: %w", s, err)
	}
	*f = flexInt(v)
	return nil
}

// feedRecord is one raw row of the ECDC json feed. Daily-era snapshots
// carry cases/deaths, weekly-era snapshots carry cases_weekly/deaths_weekly.
type feedRecord struct {
	DateRep      string   `json:"dateRep"`
	Cases        flexInt  `json:"cases"`
	Deaths       flexInt  `json:"deaths"`
	CasesWeekly  *flexInt `json:"cases_weekly"`
	DeathsWeekly *flexInt `json:"deaths_weekly"`
	Country      string   `json:"countriesAndTerritories"`
	GeoID        string   `json:"geoId"`
	Population   flexInt  `json:"popData2019"`
}

type feedEnvelope struct {
	Records []feedRecord `json:"records"`
}

// RegionInfo is a summary entry in the region registry.
type RegionInfo struct {
	GeoID      string `json:"geoId"`
	Name       string `json:"name"`
	Population int64  `json:"population"`
	Days       int    `json:"days"`
}

// RegionData is one region's daily-bucketed, gap-free series pair.
type RegionData struct {
	GeoID      string
	Name       string
	Population int64
	Density    float64
	Cases      models.Series
	Deaths     models.Series
}

// Dataset is a parsed feed snapshot keyed by geoId.
type Dataset struct {
	FetchedAt time.Time
	regions   map[string]*RegionData
}

// Region returns the data for one geoId.
func (d *Dataset) Region(geoID string) (*RegionData, error) {
	r, ok := d.regions[strings.ToUpper(geoID)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRegionNotFound, geoID)
	}
	return r, nil
}

// Regions lists all regions in the snapshot, sorted by geoId.
func (d *Dataset) Regions() []RegionInfo {
	out := make([]RegionInfo, 0, len(d.regions))
	for _, r := range d.regions {
		out = append(out, RegionInfo{
			GeoID:      r.GeoID,
			Name:       r.Name,
			Population: r.Population,
			Days:       r.Cases.Len(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GeoID < out[j].GeoID })
	return out
}

// Find returns regions whose name or geoId contains the query,
// case-insensitively.
func (d *Dataset) Find(query string) []RegionInfo {
	q := strings.ToLower(query)
	var out []RegionInfo
	for _, info := range d.Regions() {
		if strings.Contains(strings.ToLower(info.Name), q) ||
			strings.Contains(strings.ToLower(info.GeoID), q) {
			out = append(out, info)
		}
	}
	return out
}

// Client fetches and parses the ECDC feed.
type Client struct {
	feedURL string
	cache   *infra.Cache
	limiter *infra.RateLimiter
}

// NewClient creates a feed client. An empty feedURL selects the default
// ECDC endpoint.
func NewClient(feedURL string, cacheTTL time.Duration) *Client {
	if feedURL == "" {
		feedURL = DefaultFeedURL
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	return &Client{
		feedURL: feedURL,
		cache:   infra.NewCache(cacheTTL),
		limiter: infra.NewRateLimiter(2, time.Second),
	}
}

// Fetch downloads and parses the feed, serving repeated calls within the
// cache TTL from memory.
func (c *Client) Fetch(ctx context.Context) (*Dataset, error) {
	if cached, ok := c.cache.Get("feed"); ok {
		return cached.(*Dataset), nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, _, err := doGet(ctx, c.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer body.Close()

	ds, err := ParseFeed(body)
	if err != nil {
		return nil, err
	}
	c.cache.Set("feed", ds)
	return ds, nil
}

// LoadFile parses a feed snapshot from a local file.
func (c *Client) LoadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feed file: %w", err)
	}
	defer f.Close()
	return ParseFeed(f)
}

// ParseFeed decodes a feed snapshot and builds per-region daily series.
// Weekly-era records are redistributed across the preceding six days so that
// weekly totals are preserved; duplicate dates keep the last record; gaps
// between the first and last date are filled with zero days; negative
// corrections are clamped to zero.
func ParseFeed(r io.Reader) (*Dataset, error) {
	var env feedEnvelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	if len(env.Records) == 0 {
		return nil, ErrNoRecords
	}

	type daily struct{ cases, deaths int }
	type bucket struct {
		name       string
		population int64
		days       map[time.Time]daily
	}
	buckets := make(map[string]*bucket)

	for _, rec := range env.Records {
		if rec.GeoID == "" {
			continue
		}
		date, err := utils.ParseDayMonthYear(rec.DateRep)
		if err != nil {
			continue
		}

		b, ok := buckets[rec.GeoID]
		if !ok {
			b = &bucket{
				name: strings.ReplaceAll(rec.Country, "_", " "),
				days: make(map[time.Time]daily),
			}
			buckets[rec.GeoID] = b
		}
		if rec.Population > 0 {
			b.population = int64(rec.Population)
		}

		if rec.CasesWeekly != nil || rec.DeathsWeekly != nil {
			// Weekly era: spread an even share over the six preceding
			// days and put the remainder on the report day itself.
			var wc, wd int
			if rec.CasesWeekly != nil {
				wc = int(*rec.CasesWeekly)
			}
			if rec.DeathsWeekly != nil {
				wd = int(*rec.DeathsWeekly)
			}
			pc, pd := wc/7, wd/7
			for j := 1; j <= 6; j++ {
				b.days[date.AddDate(0, 0, -j)] = daily{cases: pc, deaths: pd}
			}
			b.days[date] = daily{cases: wc - 6*pc, deaths: wd - 6*pd}
		} else {
			b.days[date] = daily{cases: int(rec.Cases), deaths: int(rec.Deaths)}
		}
	}

	ds := &Dataset{
		FetchedAt: time.Now().UTC(),
		regions:   make(map[string]*RegionData, len(buckets)),
	}
	for geoID, b := range buckets {
		if len(b.days) == 0 {
			continue
		}
		dates := make([]time.Time, 0, len(b.days))
		for d := range b.days {
			dates = append(dates, d)
		}
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

		first, last := dates[0], dates[len(dates)-1]
		n := utils.DaysBetween(first, last) + 1
		rd := &RegionData{
			GeoID:      geoID,
			Name:       b.name,
			Population: b.population,
			Cases:      make(models.Series, 0, n),
			Deaths:     make(models.Series, 0, n),
		}
		for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
			v := b.days[d] // zero value fills gaps
			rd.Cases = append(rd.Cases, models.DatedCount{Date: d, Count: max(v.cases, 0)})
			rd.Deaths = append(rd.Deaths, models.DatedCount{Date: d, Count: max(v.deaths, 0)})
		}
		ds.regions[geoID] = rd
	}
	if len(ds.regions) == 0 {
		return nil, ErrNoRecords
	}
	return ds, nil
}
