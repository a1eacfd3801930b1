// Package market defines the shared data model: platforms, metric kinds,
// weekly observations, and the gap scores derived from them.
package market

import (
	"fmt"
	"time"
)

// Platform identifies which marketplace a metric came from.
type Platform string

const (
	PlatformEtsy    Platform = "etsy"
	PlatformGumroad Platform = "gumroad"
	PlatformWhop    Platform = "whop"
	PlatformReddit  Platform = "reddit"
)

// AllPlatforms returns all known platforms.
func AllPlatforms() []Platform {
	return []Platform{
		PlatformEtsy,
		PlatformGumroad,
		PlatformWhop,
		PlatformReddit,
	}
}

// MetricKind classifies an observation.
type MetricKind string

const (
	KindDemand     MetricKind = "demand"
	KindSupply     MetricKind = "supply"
	KindQuality    MetricKind = "quality"
	KindPrice      MetricKind = "price"
	KindVolume     MetricKind = "volume"
	KindEngagement MetricKind = "engagement"
)

// NormalizedKinds returns the kinds swept by weekly normalization. Quality and
// price observations are stored and reported but never feed the gap score.
func NormalizedKinds() []MetricKind {
	return []MetricKind{KindDemand, KindSupply}
}

// Metric is a single raw observation for a category+platform+week.
// NormalizedValue starts at 0 and is rewritten exactly once per pipeline run.
type Metric struct {
	ID              int64      `json:"id" db:"id"`
	Platform        Platform   `json:"platform" db:"platform"`
	Category        string     `json:"category" db:"category"`
	Kind            MetricKind `json:"metric_kind" db:"metric_kind"`
	RawValue        float64    `json:"raw_value" db:"raw_value"`
	NormalizedValue float64    `json:"normalized_value" db:"normalized_value"`
	WeekStart       time.Time  `json:"week_start" db:"week_start"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// Verdict partitions gap scores into actionable tiers.
type Verdict string

const (
	VerdictHighOpportunity Verdict = "high_opportunity"
	VerdictCompetitive     Verdict = "competitive"
	VerdictSaturated       Verdict = "saturated"
)

// GapScore is the derived weekly result for one category+platform pair.
// Rows for a week are fully replaced on every pipeline run.
type GapScore struct {
	ID        int64     `json:"id" db:"id"`
	Category  string    `json:"category" db:"category"`
	Platform  Platform  `json:"platform" db:"platform"`
	GapScore  float64   `json:"gap_score" db:"gap_score"`
	Verdict   Verdict   `json:"verdict" db:"verdict"`
	WeekStart time.Time `json:"week_start" db:"week_start"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// WeekStart returns the Monday 00:00 UTC anchoring the week containing t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	days := int(t.Weekday()) - int(time.Monday)
	if days < 0 {
		days += 7
	}
	t = t.AddDate(0, 0, -days)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CurrentWeek returns the Monday anchoring the current week.
func CurrentWeek() time.Time {
	return WeekStart(time.Now())
}

// ParseWeek parses a YYYY-MM-DD date and snaps it to its Monday anchor.
func ParseWeek(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse week %q: %w", s, err)
	}
	return WeekStart(t), nil
}

// FormatWeek renders a week anchor as YYYY-MM-DD.
func FormatWeek(week time.Time) string {
	return week.UTC().Format("2006-01-02")
}
