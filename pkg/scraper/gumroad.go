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

// Gumroad collects marketplace signals from gumroad discover pages.
//
// Demand: total rating count across product cards. Supply: product card
// count. Quality: average star rating. Price: average listed price.
type Gumroad struct {
	client  *http.Client
	baseURL string
	log     *logrus.Entry
}

// NewGumroad creates the gumroad collector. baseURL defaults to gumroad.com.
func NewGumroad(baseURL string, log *logrus.Entry) *Gumroad {
	if baseURL == "" {
		baseURL = "https://gumroad.com"
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Gumroad{
		client:  newHTTPClient(),
		baseURL: baseURL,
		log:     log.WithField("scraper", "gumroad"),
	}
}

func (g *Gumroad) Platform() market.Platform { return market.PlatformGumroad }

func (g *Gumroad) ExtractMetrics(ctx context.Context, category string, week time.Time) ([]market.Metric, []map[string]any, error) {
	discoverURL := fmt.Sprintf("%s/discover?query=%s", g.baseURL, url.QueryEscape(category))
	body, err := fetch(ctx, g.client, discoverURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch gumroad discover for %q: %w", category, err)
	}

	cards, err := parseProductCards(body)
	if err != nil {
		return nil, nil, fmt.Errorf("parse gumroad page for %q: %w", category, err)
	}
	if len(cards) == 0 {
		g.log.WithField("category", category).Warn("no gumroad products found")
		return nil, nil, nil
	}

	totalRatings := 0.0
	ratingSum, ratingCount := 0.0, 0
	priceSum, priceCount := 0.0, 0
	var raw []map[string]any

	for _, c := range cards {
		totalRatings += c.ratingCount
		if c.rating > 0 {
			ratingSum += c.rating
			ratingCount++
		}
		if c.price > 0 {
			priceSum += c.price
			priceCount++
		}
		raw = append(raw, map[string]any{
			"title":        c.title,
			"rating":       c.rating,
			"rating_count": c.ratingCount,
			"price":        c.price,
		})
	}

	avgRating := 0.0
	if ratingCount > 0 {
		avgRating = ratingSum / float64(ratingCount)
	}
	avgPrice := 0.0
	if priceCount > 0 {
		avgPrice = priceSum / float64(priceCount)
	}

	g.log.WithFields(logrus.Fields{
		"category": category,
		"products": len(cards),
		"ratings":  totalRatings,
	}).Info("derived gumroad metrics")

	metrics := []market.Metric{
		newMetric(market.PlatformGumroad, category, market.KindDemand, totalRatings, week),
		newMetric(market.PlatformGumroad, category, market.KindSupply, float64(len(cards)), week),
		newMetric(market.PlatformGumroad, category, market.KindQuality, avgRating, week),
		newMetric(market.PlatformGumroad, category, market.KindPrice, avgPrice, week),
	}
	return metrics, raw, nil
}

type productCard struct {
	title       string
	rating      float64
	ratingCount float64
	price       float64
}

var (
	ratingCountRe = regexp.MustCompile(`\(([\d,]+)\)`)
	priceRe       = regexp.MustCompile(`\$([\d,]+(?:\.\d+)?)`)
)

// parseProductCards extracts product cards from a discover/explore page.
// Selectors are intentionally loose: any article or product-linked card
// counts toward supply even when rating/price details fail to parse.
func parseProductCards(body []byte) ([]productCard, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	sel := doc.Find("article")
	if sel.Length() == 0 {
		sel = doc.Find(`[data-product-id], a[href*="/l/"]`)
	}

	var cards []productCard
	sel.Each(func(_ int, s *goquery.Selection) {
		card := productCard{title: strings.TrimSpace(s.Find("h3, h2").First().Text())}
		text := s.Text()

		if m := ratingCountRe.FindStringSubmatch(text); m != nil {
			card.ratingCount, _ = strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		}
		if v, ok := s.Find(`[aria-label*="rating"], [class*="rating"]`).First().Attr("aria-label"); ok {
			if fields := strings.Fields(v); len(fields) > 0 {
				if f, err := strconv.ParseFloat(fields[0], 64); err == nil {
					card.rating = f
				}
			}
		}
		if m := priceRe.FindStringSubmatch(text); m != nil {
			card.price, _ = strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		}

		cards = append(cards, card)
	})
	return cards, nil
}
