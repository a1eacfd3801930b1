// Package report builds the read-only weekly summary and publishes it.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/elonfeng/gapradar/internal/store"
	"github.com/elonfeng/gapradar/pkg/market"
)

// DefaultTopN is how many rows each summary section carries.
const DefaultTopN = 5

// Opportunity is one gap score row enriched with its metric averages.
type Opportunity struct {
	Category   string  `json:"category"`
	Platform   string  `json:"platform"`
	GapScore   float64 `json:"gap_score"`
	Verdict    string  `json:"verdict"`
	AvgDemand  float64 `json:"avg_demand"`
	AvgSupply  float64 `json:"avg_supply"`
	AvgQuality float64 `json:"avg_quality"`
	AvgPrice   float64 `json:"avg_price"`
	Insight    string  `json:"insight"`
}

// Summary is the weekly report payload: best opportunities, most saturated
// markets, and a notes field reserved for future movement analysis.
type Summary struct {
	WeekStart           string        `json:"week_start"`
	TopOpportunities    []Opportunity `json:"top_opportunities"`
	SaturatedCategories []Opportunity `json:"saturated_categories"`
	MarketMovementNotes string        `json:"market_movement_notes"`
}

// Build assembles the summary for a week: top-N by gap score descending and
// bottom-N ascending, each enriched with demand/supply/quality/price averages.
func Build(ctx context.Context, st store.Store, week time.Time, n int) (*Summary, error) {
	week = market.WeekStart(week)
	if n <= 0 {
		n = DefaultTopN
	}

	top, err := st.ListScores(ctx, store.ScoreListOpts{Week: week, Limit: n})
	if err != nil {
		return nil, fmt.Errorf("list top scores: %w", err)
	}
	bottom, err := st.ListScores(ctx, store.ScoreListOpts{Week: week, Limit: n, Ascending: true})
	if err != nil {
		return nil, fmt.Errorf("list saturated scores: %w", err)
	}

	summary := &Summary{WeekStart: market.FormatWeek(week)}
	if summary.TopOpportunities, err = enrich(ctx, st, top, week); err != nil {
		return nil, err
	}
	if summary.SaturatedCategories, err = enrich(ctx, st, bottom, week); err != nil {
		return nil, err
	}
	return summary, nil
}

func enrich(ctx context.Context, st store.Store, scores []market.GapScore, week time.Time) ([]Opportunity, error) {
	var out []Opportunity
	for _, sc := range scores {
		opp := Opportunity{
			Category: sc.Category,
			Platform: string(sc.Platform),
			GapScore: sc.GapScore,
			Verdict:  string(sc.Verdict),
		}

		kinds := []struct {
			kind market.MetricKind
			dst  *float64
		}{
			{market.KindDemand, &opp.AvgDemand},
			{market.KindSupply, &opp.AvgSupply},
			{market.KindQuality, &opp.AvgQuality},
			{market.KindPrice, &opp.AvgPrice},
		}
		for _, k := range kinds {
			avg, err := st.AverageNormalized(ctx, sc.Category, sc.Platform, week, k.kind)
			if err != nil {
				return nil, fmt.Errorf("enrich %s/%s: %w", sc.Platform, sc.Category, err)
			}
			*k.dst = avg
		}

		opp.Insight = fmt.Sprintf("Gap: %.2f | D:%.2f S:%.2f Q:%.2f P:%.2f",
			opp.GapScore, opp.AvgDemand, opp.AvgSupply, opp.AvgQuality, opp.AvgPrice)
		out = append(out, opp)
	}
	return out, nil
}
