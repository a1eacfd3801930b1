package store

const schema = `
CREATE TABLE IF NOT EXISTS marketplace_metrics (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    platform         TEXT NOT NULL,
    category         TEXT NOT NULL,
    metric_kind      TEXT NOT NULL,
    raw_value        REAL NOT NULL DEFAULT 0,
    normalized_value REAL NOT NULL DEFAULT 0,
    week_start       DATETIME NOT NULL,
    created_at       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_metrics_platform ON marketplace_metrics(platform);
CREATE INDEX IF NOT EXISTS idx_metrics_category ON marketplace_metrics(category);
CREATE INDEX IF NOT EXISTS idx_metrics_kind ON marketplace_metrics(metric_kind);
CREATE INDEX IF NOT EXISTS idx_metrics_week ON marketplace_metrics(week_start);

CREATE TABLE IF NOT EXISTS gap_scores (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    category   TEXT NOT NULL,
    platform   TEXT NOT NULL,
    gap_score  REAL NOT NULL DEFAULT 0,
    verdict    TEXT NOT NULL,
    week_start DATETIME NOT NULL,
    created_at DATETIME NOT NULL,
    UNIQUE(category, platform, week_start)
);

CREATE INDEX IF NOT EXISTS idx_scores_week ON gap_scores(week_start);
CREATE INDEX IF NOT EXISTS idx_scores_verdict ON gap_scores(verdict);
CREATE INDEX IF NOT EXISTS idx_scores_score ON gap_scores(gap_score);
`
