package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/sirupsen/logrus"

	"github.com/elonfeng/gapradar/internal/config"
	"github.com/elonfeng/gapradar/internal/logger"
	"github.com/elonfeng/gapradar/internal/store"
	"github.com/elonfeng/gapradar/internal/tasks"
	"github.com/elonfeng/gapradar/pkg/market"
	"github.com/elonfeng/gapradar/pkg/pipeline"
	"github.com/elonfeng/gapradar/pkg/report"
	"github.com/elonfeng/gapradar/pkg/scraper"
	"github.com/elonfeng/gapradar/pkg/server"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func buildScrapers(cfg *config.Config, log *logrus.Entry) []scraper.Scraper {
	var scrapers []scraper.Scraper

	if cfg.Scrapers.Etsy.Enabled {
		scrapers = append(scrapers, scraper.NewEtsy(cfg.Scrapers.Etsy.APIKey, cfg.Scrapers.Etsy.APIHost, log))
	}
	if cfg.Scrapers.Gumroad.Enabled {
		scrapers = append(scrapers, scraper.NewGumroad(cfg.Scrapers.Gumroad.BaseURL, log))
	}
	if cfg.Scrapers.Whop.Enabled {
		scrapers = append(scrapers, scraper.NewWhop(cfg.Scrapers.Whop.BaseURL, log))
	}
	if cfg.Scrapers.Reddit.Enabled {
		scrapers = append(scrapers, scraper.NewReddit(cfg.Scrapers.Reddit.BaseURL, log))
	}

	return scrapers
}

func buildPipeline(cfg *config.Config, db store.Store, log *logrus.Entry) *pipeline.Pipeline {
	return pipeline.New(db, cfg.Pipeline.ParsePlatforms(), cfg.Pipeline.ParseKinds(), log)
}

func runScrape(filterPlatforms []string, category, weekFlag string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.LogLevel)

	week := market.CurrentWeek()
	if weekFlag != "" {
		if week, err = market.ParseWeek(weekFlag); err != nil {
			return err
		}
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	allScrapers := buildScrapers(cfg, log)

	// Filter to requested platforms only.
	scrapers := allScrapers
	if len(filterPlatforms) > 0 {
		wanted := make(map[string]bool)
		for _, p := range filterPlatforms {
			wanted[strings.ToLower(strings.TrimSpace(p))] = true
		}
		scrapers = nil
		for _, s := range allScrapers {
			if wanted[string(s.Platform())] {
				scrapers = append(scrapers, s)
			}
		}
		if len(scrapers) == 0 {
			return fmt.Errorf("no matching platforms for: %s", strings.Join(filterPlatforms, ", "))
		}
	}

	ctx := context.Background()
	total := 0

	for _, s := range scrapers {
		count, _, err := scraper.ScrapeAndStore(ctx, s, db, category, week)
		if err != nil {
			log.WithField("platform", s.Platform()).WithError(err).Error("scrape failed")
			continue
		}
		log.WithFields(logrus.Fields{
			"platform": s.Platform(),
			"metrics":  count,
		}).Info("scrape complete")
		total += count
	}

	log.WithFields(logrus.Fields{
		"category": category,
		"week":     market.FormatWeek(week),
		"metrics":  total,
	}).Info("scraping finished")
	return nil
}

func runCompute(weekFlag string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.LogLevel)

	week := market.CurrentWeek()
	if weekFlag != "" {
		if week, err = market.ParseWeek(weekFlag); err != nil {
			return err
		}
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	pipe := buildPipeline(cfg, db, log)
	result, err := pipe.RunWeek(context.Background(), week, nil)
	if err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}

	fmt.Printf("week %s: normalized %d metrics, computed %d gap scores\n",
		result.WeekStart, result.NormalizedMetrics, result.ComputedGapScores)
	return nil
}

func runReport(weekFlag string, jsonOutput bool, xlsxPath string, publish bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	week := market.CurrentWeek()
	if weekFlag != "" {
		if week, err = market.ParseWeek(weekFlag); err != nil {
			return err
		}
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	summary, err := report.Build(ctx, db, week, cfg.Report.TopN)
	if err != nil {
		return fmt.Errorf("build summary: %w", err)
	}

	if xlsxPath != "" {
		if err := report.WriteXLSX(summary, xlsxPath); err != nil {
			return err
		}
		fmt.Printf("summary written to %s\n", xlsxPath)
	}

	if publish {
		if !cfg.Report.Notion.Enabled || cfg.Report.Notion.APIKey == "" {
			return fmt.Errorf("notion publishing is not configured (set NOTION_API_KEY and NOTION_PARENT_PAGE_ID)")
		}
		pub := report.NewNotionPublisher(cfg.Report.Notion.APIKey, cfg.Report.Notion.ParentPageID)
		url, err := pub.Publish(ctx, summary)
		if err != nil {
			return fmt.Errorf("publish summary: %w", err)
		}
		fmt.Printf("report published: %s\n", url)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	if len(summary.TopOpportunities) == 0 {
		fmt.Println("no gap scores found (try: gapradar scrape, then gapradar compute)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "week %s\n\n", summary.WeekStart)
	fmt.Fprintln(w, "GAP\tVERDICT\tPLATFORM\tCATEGORY\tINSIGHT")
	for _, opp := range summary.TopOpportunities {
		fmt.Fprintf(w, "%.3f\t%s\t%s\t%s\t%s\n",
			opp.GapScore, opp.Verdict, opp.Platform, opp.Category, opp.Insight)
	}
	if len(summary.SaturatedCategories) > 0 {
		fmt.Fprintln(w, "\nmost saturated:")
		for _, opp := range summary.SaturatedCategories {
			fmt.Fprintf(w, "%.3f\t%s\t%s\t%s\t%s\n",
				opp.GapScore, opp.Verdict, opp.Platform, opp.Category, opp.Insight)
		}
	}
	return w.Flush()
}

func runServe(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.LogLevel)

	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	pipe := buildPipeline(cfg, db, log)
	scrapers := buildScrapers(cfg, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runner := tasks.NewRunner(cfg.Tasks.Workers, cfg.Tasks.QueueSize, log)
	runner.Start(ctx)

	srv := server.New(db, pipe, runner, scrapers, cfg.Report.TopN, port, log)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		return nil
	case err := <-errCh:
		return err
	}
}
