package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/gapradar/pkg/market"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "./gapradar.db", cfg.Database.Path)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"etsy", "gumroad", "whop", "reddit"}, cfg.Pipeline.Platforms)
	assert.Equal(t, []string{"demand", "supply"}, cfg.Pipeline.NormalizeKinds)
	assert.Equal(t, 4, cfg.Tasks.Workers)
	assert.Equal(t, 5, cfg.Report.TopN)
	assert.True(t, cfg.Scrapers.Etsy.Enabled)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: /tmp/other.db
server:
  port: 9090
pipeline:
  platforms: [etsy, reddit]
scrapers:
  gumroad:
    enabled: false
log_level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.db", cfg.Database.Path)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"etsy", "reddit"}, cfg.Pipeline.Platforms)
	assert.False(t, cfg.Scrapers.Gumroad.Enabled)
	assert.Equal(t, "debug", cfg.LogLevel)

	// Untouched sections keep their defaults.
	assert.Equal(t, 4, cfg.Tasks.Workers)
	assert.True(t, cfg.Scrapers.Reddit.Enabled)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GAPRADAR_DB_PATH", "/data/env.db")
	t.Setenv("GAPRADAR_LOG_LEVEL", "warn")
	t.Setenv("RAPIDAPI_KEY", "rk-123")
	t.Setenv("NOTION_API_KEY", "secret-token")
	t.Setenv("NOTION_PARENT_PAGE_ID", "page-456")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/data/env.db", cfg.Database.Path)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "rk-123", cfg.Scrapers.Etsy.APIKey)
	assert.True(t, cfg.Report.Notion.Enabled)
	assert.Equal(t, "secret-token", cfg.Report.Notion.APIKey)
	assert.Equal(t, "page-456", cfg.Report.Notion.ParentPageID)
}

func TestPipelineConfig_Parse(t *testing.T) {
	p := PipelineConfig{
		Platforms:      []string{"etsy", "whop"},
		NormalizeKinds: []string{"demand"},
	}
	assert.Equal(t, []market.Platform{market.PlatformEtsy, market.PlatformWhop}, p.ParsePlatforms())
	assert.Equal(t, []market.MetricKind{market.KindDemand}, p.ParseKinds())
}
