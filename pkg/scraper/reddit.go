package scraper

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"

	"github.com/elonfeng/gapradar/pkg/market"
)

// redditSupplyBaseline keeps reddit entities scoreable: reddit is not a
// marketplace, so supply is a fixed low raw value rather than a measurement.
const redditSupplyBaseline = 1.0

// Reddit collects demand signals from reddit search feeds. People asking for
// or discussing a product category is a market-interest indicator; there is
// no meaningful supply side here.
//
// Demand: post count for the category search. Engagement: distinct authors.
type Reddit struct {
	parser  *gofeed.Parser
	baseURL string
	log     *logrus.Entry
}

// NewReddit creates the reddit collector. baseURL defaults to reddit.com.
func NewReddit(baseURL string, log *logrus.Entry) *Reddit {
	if baseURL == "" {
		baseURL = "https://www.reddit.com"
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Reddit{
		parser:  gofeed.NewParser(),
		baseURL: baseURL,
		log:     log.WithField("scraper", "reddit"),
	}
}

func (r *Reddit) Platform() market.Platform { return market.PlatformReddit }

func (r *Reddit) ExtractMetrics(ctx context.Context, category string, week time.Time) ([]market.Metric, []map[string]any, error) {
	feedURL := fmt.Sprintf("%s/search.rss?q=%s&sort=hot", r.baseURL, url.QueryEscape(category))

	feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch reddit feed for %q: %w", category, err)
	}
	if len(feed.Items) == 0 {
		r.log.WithField("category", category).Warn("no reddit posts returned")
		return nil, nil, nil
	}

	authors := make(map[string]bool)
	var raw []map[string]any
	for _, item := range feed.Items {
		author := ""
		if item.Author != nil {
			author = item.Author.Name
		}
		if author != "" {
			authors[author] = true
		}
		raw = append(raw, map[string]any{
			"title":     item.Title,
			"url":       item.Link,
			"author":    author,
			"published": item.Published,
		})
	}

	r.log.WithFields(logrus.Fields{
		"category": category,
		"posts":    len(feed.Items),
		"authors":  len(authors),
	}).Info("derived reddit metrics")

	metrics := []market.Metric{
		newMetric(market.PlatformReddit, category, market.KindDemand, float64(len(feed.Items)), week),
		newMetric(market.PlatformReddit, category, market.KindSupply, redditSupplyBaseline, week),
		newMetric(market.PlatformReddit, category, market.KindEngagement, float64(len(authors)), week),
	}
	return metrics, raw, nil
}
