package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/elonfeng/gapradar/pkg/market"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Tasks    TasksConfig    `yaml:"tasks"`
	Scrapers ScrapersConfig `yaml:"scrapers"`
	Report   ReportConfig   `yaml:"report"`
	LogLevel string         `yaml:"log_level"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// PipelineConfig sets the closed enumeration driving the normalization
// sweep. New platforms are added here, not in pipeline code.
type PipelineConfig struct {
	Platforms      []string `yaml:"platforms"`
	NormalizeKinds []string `yaml:"normalize_kinds"`
}

// ParsePlatforms returns the configured platforms as typed values.
func (p PipelineConfig) ParsePlatforms() []market.Platform {
	out := make([]market.Platform, 0, len(p.Platforms))
	for _, s := range p.Platforms {
		out = append(out, market.Platform(s))
	}
	return out
}

// ParseKinds returns the configured metric kinds as typed values.
func (p PipelineConfig) ParseKinds() []market.MetricKind {
	out := make([]market.MetricKind, 0, len(p.NormalizeKinds))
	for _, s := range p.NormalizeKinds {
		out = append(out, market.MetricKind(s))
	}
	return out
}

// TasksConfig sizes the background task runner.
type TasksConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// ScrapersConfig holds configuration for all platform scrapers.
type ScrapersConfig struct {
	Etsy    EtsyConfig    `yaml:"etsy"`
	Gumroad GumroadConfig `yaml:"gumroad"`
	Whop    WhopConfig    `yaml:"whop"`
	Reddit  RedditConfig  `yaml:"reddit"`
}

// EtsyConfig for the Etsy product-search API scraper.
type EtsyConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	APIHost string `yaml:"api_host"`
}

// GumroadConfig for the Gumroad discover scraper.
type GumroadConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
}

// WhopConfig for the Whop explore scraper.
type WhopConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
}

// RedditConfig for the reddit search-feed scraper.
type RedditConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
}

// ReportConfig configures the weekly summary and its publishers.
type ReportConfig struct {
	TopN   int          `yaml:"top_n"`
	Notion NotionConfig `yaml:"notion"`
}

// NotionConfig for publishing weekly reports to a Notion page.
type NotionConfig struct {
	Enabled      bool   `yaml:"enabled"`
	APIKey       string `yaml:"api_key"`
	ParentPageID string `yaml:"parent_page_id"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./gapradar.db"},
		Server:   ServerConfig{Port: 8080},
		Pipeline: PipelineConfig{
			Platforms:      []string{"etsy", "gumroad", "whop", "reddit"},
			NormalizeKinds: []string{"demand", "supply"},
		},
		Tasks: TasksConfig{Workers: 4, QueueSize: 64},
		Scrapers: ScrapersConfig{
			Etsy:    EtsyConfig{Enabled: true, APIHost: "etsy-api2.p.rapidapi.com"},
			Gumroad: GumroadConfig{Enabled: true},
			Whop:    WhopConfig{Enabled: true},
			Reddit:  RedditConfig{Enabled: true},
		},
		Report:   ReportConfig{TopN: 5},
		LogLevel: "info",
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
// A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GAPRADAR_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("GAPRADAR_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("RAPIDAPI_KEY"); v != "" {
		cfg.Scrapers.Etsy.APIKey = v
	}
	if v := os.Getenv("NOTION_API_KEY"); v != "" {
		cfg.Report.Notion.APIKey = v
		cfg.Report.Notion.Enabled = true
	}
	if v := os.Getenv("NOTION_PARENT_PAGE_ID"); v != "" {
		cfg.Report.Notion.ParentPageID = v
	}
}
