package datasource

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PopulationInfo is one row of a scraped population table.
type PopulationInfo struct {
	Name       string
	Population int64
	Density    float64 // people per km2, 0 when unknown
}

// FetchPopulations downloads and parses an HTML population table.
func FetchPopulations(ctx context.Context, url string) (map[string]PopulationInfo, error) {
	body, _, err := doGet(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch population table: %w", err)
	}
	defer body.Close()
	return ParsePopulationTable(body)
}

// ParsePopulationTable scrapes region population and density from an HTML
// table whose rows carry name, population, and optionally density columns.
// Rows that do not parse are skipped. Keys are lower-cased region names.
func ParsePopulationTable(r io.Reader) (map[string]PopulationInfo, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse population table: %w", err)
	}

	table := make(map[string]PopulationInfo)
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		name := strings.TrimSpace(cells.Eq(0).Text())
		if name == "" {
			return
		}
		pop, err := parseCount(cells.Eq(1).Text())
		if err != nil || pop <= 0 {
			return
		}
		info := PopulationInfo{Name: name, Population: pop}
		if cells.Length() >= 3 {
			if d, err := parseDecimal(cells.Eq(2).Text()); err == nil {
				info.Density = d
			}
		}
		table[strings.ToLower(name)] = info
	})

	if len(table) == 0 {
		return nil, fmt.Errorf("population table: no parsable rows")
	}
	return table, nil
}

// ApplyPopulations overlays scraped population and density onto the
// dataset's regions, matched by region name. Feed populations are kept when
// the table has no matching row.
func (d *Dataset) ApplyPopulations(table map[string]PopulationInfo) {
	for _, r := range d.regions {
		info, ok := table[strings.ToLower(r.Name)]
		if !ok {
			continue
		}
		if info.Population > 0 {
			r.Population = info.Population
		}
		r.Density = info.Density
	}
}

func parseCount(s string) (int64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	return strconv.ParseInt(s, 10, 64)
}

func parseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	return strconv.ParseFloat(s, 64)
}
