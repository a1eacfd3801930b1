package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/elonfeng/gapradar/pkg/market"
)

// EntityKey identifies one scoreable category+platform pair within a week.
type EntityKey struct {
	Category string          `db:"category"`
	Platform market.Platform `db:"platform"`
}

// ScoreListOpts controls gap score listing.
type ScoreListOpts struct {
	Week      time.Time
	Limit     int
	Ascending bool
}

// Store is the persistence interface consumed by the pipeline and the API.
type Store interface {
	InsertMetrics(ctx context.Context, metrics []market.Metric) error
	ListCohort(ctx context.Context, platform market.Platform, kind market.MetricKind, week time.Time) ([]market.Metric, error)
	RewriteNormalized(ctx context.Context, metrics []market.Metric) error
	AverageNormalized(ctx context.Context, category string, platform market.Platform, week time.Time, kind market.MetricKind) (float64, error)
	DistinctEntities(ctx context.Context, week time.Time) ([]EntityKey, error)
	CountMetricsByPlatform(ctx context.Context, week time.Time) (map[market.Platform]int, error)

	ReplaceScores(ctx context.Context, week time.Time, scores []market.GapScore) (int, error)
	ListScores(ctx context.Context, opts ScoreListOpts) ([]market.GapScore, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertMetrics(ctx context.Context, metrics []market.Metric) error {
	for i := range metrics {
		m := &metrics[i]
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now().UTC()
		}
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO marketplace_metrics (platform, category, metric_kind, raw_value, normalized_value, week_start, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, m.Platform, m.Category, m.Kind, m.RawValue, m.NormalizedValue, m.WeekStart, m.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert metric %s/%s/%s: %w", m.Platform, m.Category, m.Kind, err)
		}
		m.ID, _ = res.LastInsertId()
	}
	return nil
}

func (s *SQLiteStore) ListCohort(ctx context.Context, platform market.Platform, kind market.MetricKind, week time.Time) ([]market.Metric, error) {
	var metrics []market.Metric
	err := s.db.SelectContext(ctx, &metrics, `
		SELECT * FROM marketplace_metrics
		WHERE platform = ? AND metric_kind = ? AND week_start = ?
		ORDER BY id
	`, platform, kind, week)
	if err != nil {
		return nil, fmt.Errorf("list cohort %s/%s: %w", platform, kind, err)
	}
	return metrics, nil
}

// RewriteNormalized persists normalized values for each metric in one
// transaction, so a cohort is never left half-rescaled.
func (s *SQLiteStore) RewriteNormalized(ctx context.Context, metrics []market.Metric) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rewrite: %w", err)
	}

	for i := range metrics {
		if _, err := tx.ExecContext(ctx,
			"UPDATE marketplace_metrics SET normalized_value = ? WHERE id = ?",
			metrics[i].NormalizedValue, metrics[i].ID); err != nil {
			tx.Rollback()
			return fmt.Errorf("rewrite metric %d: %w", metrics[i].ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rewrite: %w", err)
	}
	return nil
}

// AverageNormalized returns the mean normalized value for the four-part key,
// or 0 when no matching observations exist.
func (s *SQLiteStore) AverageNormalized(ctx context.Context, category string, platform market.Platform, week time.Time, kind market.MetricKind) (float64, error) {
	var avg float64
	err := s.db.GetContext(ctx, &avg, `
		SELECT COALESCE(AVG(normalized_value), 0)
		FROM marketplace_metrics
		WHERE category = ? AND platform = ? AND week_start = ? AND metric_kind = ?
	`, category, platform, week, kind)
	if err != nil {
		return 0, fmt.Errorf("average %s/%s/%s: %w", platform, category, kind, err)
	}
	return avg, nil
}

func (s *SQLiteStore) DistinctEntities(ctx context.Context, week time.Time) ([]EntityKey, error) {
	var keys []EntityKey
	err := s.db.SelectContext(ctx, &keys, `
		SELECT DISTINCT category, platform FROM marketplace_metrics
		WHERE week_start = ?
		ORDER BY category, platform
	`, week)
	if err != nil {
		return nil, fmt.Errorf("distinct entities: %w", err)
	}
	return keys, nil
}

func (s *SQLiteStore) CountMetricsByPlatform(ctx context.Context, week time.Time) (map[market.Platform]int, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT platform, COUNT(*) as cnt FROM marketplace_metrics
		WHERE week_start = ?
		GROUP BY platform
	`, week)
	if err != nil {
		return nil, fmt.Errorf("count metrics by platform: %w", err)
	}
	defer rows.Close()

	counts := make(map[market.Platform]int)
	for rows.Next() {
		var platform string
		var cnt int
		if err := rows.Scan(&platform, &cnt); err != nil {
			return nil, err
		}
		counts[market.Platform(platform)] = cnt
	}
	return counts, rows.Err()
}

// ReplaceScores deletes every gap score for the week and inserts the fresh
// set inside a single transaction. Returns the number of rows inserted.
func (s *SQLiteStore) ReplaceScores(ctx context.Context, week time.Time, scores []market.GapScore) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin replace: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM gap_scores WHERE week_start = ?", week); err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("delete scores for week %s: %w", market.FormatWeek(week), err)
	}

	now := time.Now().UTC()
	for i := range scores {
		sc := &scores[i]
		if sc.CreatedAt.IsZero() {
			sc.CreatedAt = now
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO gap_scores (category, platform, gap_score, verdict, week_start, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, sc.Category, sc.Platform, sc.GapScore, sc.Verdict, sc.WeekStart, sc.CreatedAt)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("insert score %s/%s: %w", sc.Category, sc.Platform, err)
		}
		sc.ID, _ = res.LastInsertId()
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit replace: %w", err)
	}
	return len(scores), nil
}

func (s *SQLiteStore) ListScores(ctx context.Context, opts ScoreListOpts) ([]market.GapScore, error) {
	order := "DESC"
	if opts.Ascending {
		order = "ASC"
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	// id is the stable tiebreak for equal scores.
	query := fmt.Sprintf(`
		SELECT * FROM gap_scores
		WHERE week_start = ?
		ORDER BY gap_score %s, id ASC
		LIMIT ?
	`, order)

	var scores []market.GapScore
	if err := s.db.SelectContext(ctx, &scores, query, opts.Week, limit); err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	return scores, nil
}
