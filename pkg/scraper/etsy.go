package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/elonfeng/gapradar/pkg/market"
)

// Etsy collects marketplace signals from an Etsy product search API.
//
// Demand: total review count across results. Supply: number of listings.
// Quality: average rating. Price: average sale price.
type Etsy struct {
	client  *http.Client
	apiKey  string
	apiHost string
	log     *logrus.Entry
}

// NewEtsy creates the Etsy collector. apiHost defaults to the RapidAPI
// product-search host.
func NewEtsy(apiKey, apiHost string, log *logrus.Entry) *Etsy {
	if apiHost == "" {
		apiHost = "etsy-api2.p.rapidapi.com"
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Etsy{
		client:  newHTTPClient(),
		apiKey:  apiKey,
		apiHost: apiHost,
		log:     log.WithField("scraper", "etsy"),
	}
}

func (e *Etsy) Platform() market.Platform { return market.PlatformEtsy }

func (e *Etsy) ExtractMetrics(ctx context.Context, category string, week time.Time) ([]market.Metric, []map[string]any, error) {
	items, err := e.search(ctx, category)
	if err != nil {
		return nil, nil, err
	}
	if len(items) == 0 {
		e.log.WithField("category", category).Warn("no etsy listings returned")
		return nil, nil, nil
	}

	metrics := e.deriveMetrics(items, category, week)
	return metrics, items, nil
}

func (e *Etsy) search(ctx context.Context, category string) ([]map[string]any, error) {
	params := url.Values{}
	params.Set("query", category)
	params.Set("page", "1")
	params.Set("currency", "USD")
	params.Set("language", "en-US")
	params.Set("country", "US")
	params.Set("orderBy", "mostRelevant")

	reqURL := fmt.Sprintf("https://%s/product/search?%s", e.apiHost, params.Encode())
	body, err := fetch(ctx, e.client, reqURL, map[string]string{
		"x-rapidapi-key":  e.apiKey,
		"x-rapidapi-host": e.apiHost,
	})
	if err != nil {
		return nil, fmt.Errorf("search etsy %q: %w", category, err)
	}

	var result struct {
		Response []map[string]any `json:"response"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode etsy response: %w", err)
	}
	return result.Response, nil
}

var reviewCountRe = regexp.MustCompile(`(\d+(?:\.\d+)?)[kK]?\s*reviews`)

func (e *Etsy) deriveMetrics(items []map[string]any, category string, week time.Time) []market.Metric {
	totalReviews := 0.0
	ratingSum, ratingCount := 0.0, 0
	priceSum := 0.0

	for _, item := range items {
		if s, ok := item["reviews"].(string); ok {
			if m := reviewCountRe.FindStringSubmatch(s); m != nil {
				n, _ := strconv.ParseFloat(m[1], 64)
				if strings.Contains(strings.ToLower(s), "k") {
					n *= 1000
				}
				totalReviews += n
			}
		}

		if r := parseFloatField(item["rating"]); r > 0 {
			ratingSum += r
			ratingCount++
		}

		if priceObj, ok := item["price"].(map[string]any); ok {
			priceSum += parseFloatField(priceObj["salePrice"])
		} else {
			priceSum += parseFloatField(item["price"])
		}
	}

	avgRating := 0.0
	if ratingCount > 0 {
		avgRating = ratingSum / float64(ratingCount)
	}
	avgPrice := priceSum / float64(len(items))

	e.log.WithFields(logrus.Fields{
		"category": category,
		"listings": len(items),
		"reviews":  totalReviews,
	}).Info("derived etsy metrics")

	return []market.Metric{
		newMetric(market.PlatformEtsy, category, market.KindDemand, totalReviews, week),
		newMetric(market.PlatformEtsy, category, market.KindSupply, float64(len(items)), week),
		newMetric(market.PlatformEtsy, category, market.KindQuality, avgRating, week),
		newMetric(market.PlatformEtsy, category, market.KindPrice, avgPrice, week),
	}
}

func parseFloatField(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, _ := strconv.ParseFloat(strings.TrimPrefix(strings.TrimSpace(x), "$"), 64)
		return f
	}
	return 0
}
