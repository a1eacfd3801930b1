package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/elonfeng/gapradar/pkg/market"
)

// Whop collects marketplace signals from whop explore pages.
//
// Demand: total member count across listed communities. Supply: number of
// listed communities/products.
type Whop struct {
	client  *http.Client
	baseURL string
	log     *logrus.Entry
}

// NewWhop creates the whop collector. baseURL defaults to whop.com.
func NewWhop(baseURL string, log *logrus.Entry) *Whop {
	if baseURL == "" {
		baseURL = "https://whop.com"
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Whop{
		client:  newHTTPClient(),
		baseURL: baseURL,
		log:     log.WithField("scraper", "whop"),
	}
}

func (w *Whop) Platform() market.Platform { return market.PlatformWhop }

var memberCountRe = regexp.MustCompile(`([\d,.]+)([kK])?\s*members`)

func (w *Whop) ExtractMetrics(ctx context.Context, category string, week time.Time) ([]market.Metric, []map[string]any, error) {
	exploreURL := fmt.Sprintf("%s/explore?q=%s", w.baseURL, url.QueryEscape(category))
	body, err := fetch(ctx, w.client, exploreURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch whop explore for %q: %w", category, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("parse whop page for %q: %w", category, err)
	}

	sel := doc.Find("article")
	if sel.Length() == 0 {
		sel = doc.Find(`a[href*="/discover/"], [data-listing-id]`)
	}
	if sel.Length() == 0 {
		w.log.WithField("category", category).Warn("no whop listings found")
		return nil, nil, nil
	}

	totalMembers := 0.0
	var raw []map[string]any
	sel.Each(func(_ int, s *goquery.Selection) {
		title := strings.TrimSpace(s.Find("h3, h2").First().Text())
		members := 0.0
		if m := memberCountRe.FindStringSubmatch(s.Text()); m != nil {
			members, _ = strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
			if m[2] != "" {
				members *= 1000
			}
		}
		totalMembers += members
		raw = append(raw, map[string]any{"title": title, "members": members})
	})

	w.log.WithFields(logrus.Fields{
		"category": category,
		"listings": sel.Length(),
		"members":  totalMembers,
	}).Info("derived whop metrics")

	metrics := []market.Metric{
		newMetric(market.PlatformWhop, category, market.KindDemand, totalMembers, week),
		newMetric(market.PlatformWhop, category, market.KindSupply, float64(sel.Length()), week),
	}
	return metrics, raw, nil
}
