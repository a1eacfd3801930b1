// Package metrics exposes prometheus counters for scrape and pipeline runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scrapeRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gapradar_scrape_runs_total",
		Help: "Scrape tasks executed, by platform.",
	}, []string{"platform"})

	scrapeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gapradar_scrape_failures_total",
		Help: "Scrape tasks that ended in failure, by platform.",
	}, []string{"platform"})

	pipelineRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gapradar_pipeline_runs_total",
		Help: "Weekly pipeline runs executed.",
	})

	pipelineFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gapradar_pipeline_failures_total",
		Help: "Weekly pipeline runs that ended in failure.",
	})

	gapScoresComputed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gapradar_gap_scores_computed_total",
		Help: "Gap score rows written across all pipeline runs.",
	})
)

func RecordScrapeRun(platform string)     { scrapeRuns.WithLabelValues(platform).Inc() }
func RecordScrapeFailure(platform string) { scrapeFailures.WithLabelValues(platform).Inc() }
func RecordPipelineRun()                  { pipelineRuns.Inc() }
func RecordPipelineFailure()              { pipelineFailures.Inc() }
func RecordGapScores(n int)               { gapScoresComputed.Add(float64(n)) }

// Handler serves the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
