// Package scraper collects raw weekly marketplace signals. Each platform has
// its own collector producing demand/supply (and where available quality and
// price) observations for a category; normalization happens later in the
// pipeline, so every metric leaves here with NormalizedValue = 0.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/elonfeng/gapradar/pkg/market"
)

// Scraper is the interface every platform collector must implement.
type Scraper interface {
	Platform() market.Platform

	// ExtractMetrics collects raw metrics for a category and week, returning
	// the metrics alongside the raw platform payload for diagnostics.
	ExtractMetrics(ctx context.Context, category string, week time.Time) ([]market.Metric, []map[string]any, error)
}

// MetricStore is the slice of the store scrapers need.
type MetricStore interface {
	InsertMetrics(ctx context.Context, metrics []market.Metric) error
}

// ScrapeAndStore runs one collector and persists its metrics. Returns the
// metric count and the raw payload.
func ScrapeAndStore(ctx context.Context, s Scraper, st MetricStore, category string, week time.Time) (int, []map[string]any, error) {
	week = market.WeekStart(week)

	metrics, raw, err := s.ExtractMetrics(ctx, category, week)
	if err != nil {
		return 0, nil, fmt.Errorf("extract %s metrics: %w", s.Platform(), err)
	}

	if err := st.InsertMetrics(ctx, metrics); err != nil {
		return 0, nil, fmt.Errorf("store %s metrics: %w", s.Platform(), err)
	}
	return len(metrics), raw, nil
}

const (
	requestTimeout = 30 * time.Second
	maxRetries     = 3
)

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}

// fetch GETs a URL with retries on transient failures and returns the body.
func fetch(ctx context.Context, client *http.Client, url string, headers map[string]string) ([]byte, error) {
	var body []byte

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("status %d", resp.StatusCode))
		}

		body, err = io.ReadAll(resp.Body)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	return body, nil
}

func newMetric(platform market.Platform, category string, kind market.MetricKind, raw float64, week time.Time) market.Metric {
	return market.Metric{
		Platform:  platform,
		Category:  category,
		Kind:      kind,
		RawValue:  raw,
		WeekStart: week,
		CreatedAt: time.Now().UTC(),
	}
}
