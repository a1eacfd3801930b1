package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/gapradar/pkg/market"
)

func testWeek() time.Time {
	return time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
}

func kindValues(metrics []market.Metric) map[market.MetricKind]float64 {
	out := make(map[market.MetricKind]float64)
	for _, m := range metrics {
		out[m.Kind] = m.RawValue
	}
	return out
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, err := fetch(context.Background(), srv.Client(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetch_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := fetch(context.Background(), srv.Client(), srv.URL, nil)
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_SendsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-rapidapi-key"))
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	_, err := fetch(context.Background(), srv.Client(), srv.URL, map[string]string{"x-rapidapi-key": "secret"})
	require.NoError(t, err)
}

func TestEtsyDeriveMetrics(t *testing.T) {
	e := NewEtsy("key", "", nil)
	items := []map[string]any{
		{
			"reviews": "1.2k reviews",
			"rating":  4.8,
			"price":   map[string]any{"salePrice": "24.99"},
		},
		{
			"reviews": "350 reviews",
			"rating":  "4.2",
			"price":   15.01,
		},
	}

	metrics := e.deriveMetrics(items, "digital planners", testWeek())
	require.Len(t, metrics, 4)

	values := kindValues(metrics)
	assert.InDelta(t, 1550.0, values[market.KindDemand], 1e-9)
	assert.Equal(t, 2.0, values[market.KindSupply])
	assert.InDelta(t, 4.5, values[market.KindQuality], 1e-9)
	assert.InDelta(t, 20.0, values[market.KindPrice], 1e-9)

	for _, m := range metrics {
		assert.Equal(t, market.PlatformEtsy, m.Platform)
		assert.Equal(t, "digital planners", m.Category)
		assert.Equal(t, testWeek(), m.WeekStart)
		assert.Zero(t, m.NormalizedValue)
	}
}

func TestParseProductCards(t *testing.T) {
	html := `<html><body>
		<article>
			<h3>Notion Template Pack</h3>
			<span aria-label="4.9 rating">4.9</span>
			<span>(1,234)</span>
			<span>$29</span>
		</article>
		<article>
			<h3>Budget Spreadsheet</h3>
			<span>(56)</span>
			<span>$9.50</span>
		</article>
		<article>
			<h3>No Details Yet</h3>
		</article>
	</body></html>`

	cards, err := parseProductCards([]byte(html))
	require.NoError(t, err)
	require.Len(t, cards, 3)

	assert.Equal(t, "Notion Template Pack", cards[0].title)
	assert.Equal(t, 4.9, cards[0].rating)
	assert.Equal(t, 1234.0, cards[0].ratingCount)
	assert.Equal(t, 29.0, cards[0].price)

	assert.Equal(t, 56.0, cards[1].ratingCount)
	assert.Equal(t, 9.5, cards[1].price)

	// A bare card still counts toward supply.
	assert.Zero(t, cards[2].ratingCount)
	assert.Zero(t, cards[2].price)
}

func TestGumroadExtractMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/discover", r.URL.Path)
		assert.Equal(t, "icon sets", r.URL.Query().Get("query"))
		w.Write([]byte(`<html><body>
			<article><h3>Pixel Icons</h3><span>(100)</span><span>$12</span></article>
			<article><h3>Line Icons</h3><span>(300)</span><span>$18</span></article>
		</body></html>`))
	}))
	defer srv.Close()

	g := NewGumroad(srv.URL, logrus.NewEntry(logrus.StandardLogger()))
	metrics, raw, err := g.ExtractMetrics(context.Background(), "icon sets", testWeek())
	require.NoError(t, err)
	require.Len(t, raw, 2)

	values := kindValues(metrics)
	assert.Equal(t, 400.0, values[market.KindDemand])
	assert.Equal(t, 2.0, values[market.KindSupply])
	assert.InDelta(t, 15.0, values[market.KindPrice], 1e-9)
}

func TestWhopExtractMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/explore", r.URL.Path)
		w.Write([]byte(`<html><body>
			<article><h3>Trading Signals</h3><p>12.5k members</p></article>
			<article><h3>Reselling Hub</h3><p>1,200 members</p></article>
			<article><h3>New Community</h3></article>
		</body></html>`))
	}))
	defer srv.Close()

	wh := NewWhop(srv.URL, nil)
	metrics, raw, err := wh.ExtractMetrics(context.Background(), "trading", testWeek())
	require.NoError(t, err)
	require.Len(t, raw, 3)

	values := kindValues(metrics)
	assert.InDelta(t, 13700.0, values[market.KindDemand], 1e-9)
	assert.Equal(t, 3.0, values[market.KindSupply])
}

func TestRedditExtractMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search.rss", r.URL.Path)
		w.Header().Set("Content-Type", "application/atom+xml")
		w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
			<feed xmlns="http://www.w3.org/2005/Atom">
				<title>search results</title>
				<entry><title>Looking for a habit tracker</title><link href="https://example.com/1"/><author><name>u/alpha</name></author></entry>
				<entry><title>Best habit tracker app?</title><link href="https://example.com/2"/><author><name>u/beta</name></author></entry>
				<entry><title>Habit tracker recommendations</title><link href="https://example.com/3"/><author><name>u/alpha</name></author></entry>
			</feed>`))
	}))
	defer srv.Close()

	rd := NewReddit(srv.URL, nil)
	metrics, raw, err := rd.ExtractMetrics(context.Background(), "habit tracker", testWeek())
	require.NoError(t, err)
	require.Len(t, raw, 3)

	values := kindValues(metrics)
	assert.Equal(t, 3.0, values[market.KindDemand])
	assert.Equal(t, redditSupplyBaseline, values[market.KindSupply])
	assert.Equal(t, 2.0, values[market.KindEngagement])
}

type fakeStore struct {
	inserted []market.Metric
}

func (f *fakeStore) InsertMetrics(ctx context.Context, metrics []market.Metric) error {
	f.inserted = append(f.inserted, metrics...)
	return nil
}

type staticScraper struct {
	metrics []market.Metric
}

func (s *staticScraper) Platform() market.Platform { return market.PlatformEtsy }

func (s *staticScraper) ExtractMetrics(ctx context.Context, category string, week time.Time) ([]market.Metric, []map[string]any, error) {
	return s.metrics, nil, nil
}

func TestScrapeAndStore(t *testing.T) {
	week := testWeek()
	sc := &staticScraper{metrics: []market.Metric{
		newMetric(market.PlatformEtsy, "journals", market.KindDemand, 42, week),
	}}
	st := &fakeStore{}

	count, _, err := ScrapeAndStore(context.Background(), sc, st, "journals", week.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, st.inserted, 1)
	assert.Equal(t, 42.0, st.inserted[0].RawValue)
}
