// Package server provides the HTTP API: pipeline and scrape triggers that
// return task IDs, task status polling, and the read-only report surface.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/elonfeng/gapradar/internal/store"
	"github.com/elonfeng/gapradar/internal/tasks"
	"github.com/elonfeng/gapradar/pkg/market"
	"github.com/elonfeng/gapradar/pkg/metrics"
	"github.com/elonfeng/gapradar/pkg/pipeline"
	"github.com/elonfeng/gapradar/pkg/report"
	"github.com/elonfeng/gapradar/pkg/scraper"
)

// Server provides the HTTP API.
type Server struct {
	store    store.Store
	pipe     *pipeline.Pipeline
	runner   *tasks.Runner
	scrapers map[market.Platform]scraper.Scraper
	order    []market.Platform
	topN     int
	port     int
	log      *logrus.Entry
}

// New creates a new HTTP server.
func New(st store.Store, pipe *pipeline.Pipeline, runner *tasks.Runner, scrapers []scraper.Scraper, topN, port int, log *logrus.Entry) *Server {
	if port == 0 {
		port = 8080
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	byPlatform := make(map[market.Platform]scraper.Scraper, len(scrapers))
	order := make([]market.Platform, 0, len(scrapers))
	for _, s := range scrapers {
		byPlatform[s.Platform()] = s
		order = append(order, s.Platform())
	}

	return &Server{
		store:    st,
		pipe:     pipe,
		runner:   runner,
		scrapers: byPlatform,
		order:    order,
		topN:     topN,
		port:     port,
		log:      log.WithField("component", "server"),
	}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/compute", s.handleCompute)
	mux.HandleFunc("/api/v1/scrape/", s.handleScrape)
	mux.HandleFunc("/api/v1/tasks/", s.handleTaskStatus)
	mux.HandleFunc("/api/v1/opportunities", s.handleOpportunities)
	mux.HandleFunc("/api/v1/summary", s.handleSummary)
	mux.HandleFunc("/api/v1/platforms", s.handlePlatforms)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.log.WithField("addr", addr).Info("gapradar server listening")
	return http.ListenAndServe(addr, s.routes())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type computeRequest struct {
	WeekStart string `json:"week_start"`
}

func (s *Server) handleCompute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req computeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	week, err := market.ParseWeek(req.WeekStart)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	task, err := s.runner.Submit(tasks.KindComputePipeline, func(ctx context.Context, setPhase func(string)) (any, error) {
		metrics.RecordPipelineRun()
		result, err := s.pipe.RunWeek(ctx, week, setPhase)
		if err != nil {
			metrics.RecordPipelineFailure()
			return nil, err
		}
		metrics.RecordGapScores(result.ComputedGapScores)
		return result, nil
	})
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":     task.Status,
		"task_id":    task.ID,
		"week_start": market.FormatWeek(week),
	})
}

type scrapeRequest struct {
	Category  string `json:"category"`
	WeekStart string `json:"week_start"`
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	platform := market.Platform(strings.TrimPrefix(r.URL.Path, "/api/v1/scrape/"))
	sc, ok := s.scrapers[platform]
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown platform %q", platform)})
		return
	}

	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Category == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "category and week_start are required"})
		return
	}
	week, err := market.ParseWeek(req.WeekStart)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	task, err := s.runner.Submit(tasks.KindScrapePlatform, func(ctx context.Context, setPhase func(string)) (any, error) {
		setPhase(tasks.PhaseScraping)
		metrics.RecordScrapeRun(string(platform))

		count, raw, err := scraper.ScrapeAndStore(ctx, sc, s.store, req.Category, week)
		if err != nil {
			metrics.RecordScrapeFailure(string(platform))
			return nil, err
		}
		return map[string]any{
			"platform":          platform,
			"category":          req.Category,
			"week_start":        market.FormatWeek(week),
			"metrics_collected": count,
			"raw_items":         len(raw),
		}, nil
	})
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":     task.Status,
		"task_id":    task.ID,
		"platform":   platform,
		"category":   req.Category,
		"week_start": market.FormatWeek(week),
	})
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/tasks/")
	task, ok := s.runner.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	week, err := weekParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	scores, err := s.store.ListScores(r.Context(), store.ScoreListOpts{Week: week, Limit: limit})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"week_start":    market.FormatWeek(week),
		"opportunities": scores,
		"count":         len(scores),
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	week, err := weekParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	summary, err := report.Build(r.Context(), s.store, week, s.topN)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handlePlatforms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	week, err := weekParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	counts, err := s.store.CountMetricsByPlatform(r.Context(), week)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	type platformInfo struct {
		Name    string `json:"name"`
		Enabled bool   `json:"enabled"`
		Metrics int    `json:"metrics"`
	}

	var infos []platformInfo
	for _, platform := range s.order {
		infos = append(infos, platformInfo{
			Name:    string(platform),
			Enabled: true,
			Metrics: counts[platform],
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"week_start": market.FormatWeek(week),
		"platforms":  infos,
		"count":      len(infos),
	})
}

// weekParam reads the week query parameter, defaulting to the current week.
func weekParam(r *http.Request) (time.Time, error) {
	if v := r.URL.Query().Get("week"); v != "" {
		return market.ParseWeek(v)
	}
	return market.CurrentWeek(), nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
