package datasource

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/outbreaklab/epicurve/internal/infra"
	"github.com/outbreaklab/epicurve/pkg/models"
)

// DefaultNewsFeedURL is the WHO Disease Outbreak News RSS feed.
const DefaultNewsFeedURL = "https://www.who.int/feeds/entity/csr/don/en/rss.xml"

// News fetches outbreak news headlines from an RSS feed.
type News struct {
	feedURL string
	source  string
	cache   *infra.Cache
	limiter *infra.RateLimiter
	parser  *gofeed.Parser
}

// NewNews creates a news client. An empty feedURL selects the WHO
// Disease Outbreak News feed.
func NewNews(feedURL string) *News {
	if feedURL == "" {
		feedURL = DefaultNewsFeedURL
	}
	return &News{
		feedURL: feedURL,
		source:  "WHO Disease Outbreak News",
		cache:   infra.NewCache(10 * time.Minute),
		limiter: infra.NewRateLimiter(2, time.Second),
		parser:  gofeed.NewParser(),
	}
}

// Latest returns the most recent items, newest first.
func (n *News) Latest(ctx context.Context, limit int) ([]models.NewsItem, error) {
	items, err := n.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// ForRegion returns items mentioning the region name, newest first.
func (n *News) ForRegion(ctx context.Context, region string, limit int) ([]models.NewsItem, error) {
	items, err := n.fetch(ctx)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(region)
	var filtered []models.NewsItem
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Title+" "+it.Summary), q) {
			filtered = append(filtered, it)
		}
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered, nil
}

func (n *News) fetch(ctx context.Context) ([]models.NewsItem, error) {
	if cached, ok := n.cache.Get("news"); ok {
		return cached.([]models.NewsItem), nil
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	feed, err := n.parser.ParseURLWithContext(n.feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse news feed: %w", err)
	}

	items := make([]models.NewsItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		it := models.NewsItem{
			Title:   item.Title,
			URL:     item.Link,
			Source:  n.source,
			Summary: cleanHTML(item.Description),
		}
		if item.PublishedParsed != nil {
			it.PublishedAt = *item.PublishedParsed
		}
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})

	n.cache.Set("news", items)
	return items, nil
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}
