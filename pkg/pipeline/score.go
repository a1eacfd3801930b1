package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/elonfeng/gapradar/pkg/market"
)

// Verdict thresholds partitioning [0,1]. Boundary values belong to the
// higher-opportunity tier.
const (
	HighOpportunityThreshold = 0.6
	CompetitiveThreshold     = 0.3
)

// ComputeGap combines demand and supply aggregates into a single score.
// Raw demand-supply lies in [-1,1]; the affine remap centers demand == supply
// at exactly 0.5, so 1.0 is maximal opportunity and 0.0 maximal saturation.
func ComputeGap(demand, supply float64) float64 {
	return clamp01(((demand - supply) + 1) / 2)
}

// AssignVerdict maps a gap score to its tier.
func AssignVerdict(score float64) market.Verdict {
	switch {
	case score >= HighOpportunityThreshold:
		return market.VerdictHighOpportunity
	case score >= CompetitiveThreshold:
		return market.VerdictCompetitive
	default:
		return market.VerdictSaturated
	}
}

// Aggregate returns the mean normalized value for the four-part key, with
// 0.0 standing in for "no signal".
func (p *Pipeline) Aggregate(ctx context.Context, category string, platform market.Platform, week time.Time, kind market.MetricKind) (float64, error) {
	return p.store.AverageNormalized(ctx, category, platform, week, kind)
}

// ComputeForEntity builds the gap score for one category+platform pair.
// Returns nil when the entity has no demand or supply signal at all; such
// entities are excluded from results rather than reported as neutral.
func (p *Pipeline) ComputeForEntity(ctx context.Context, category string, platform market.Platform, week time.Time) (*market.GapScore, error) {
	demand, err := p.Aggregate(ctx, category, platform, week, market.KindDemand)
	if err != nil {
		return nil, fmt.Errorf("aggregate demand %s/%s: %w", platform, category, err)
	}
	supply, err := p.Aggregate(ctx, category, platform, week, market.KindSupply)
	if err != nil {
		return nil, fmt.Errorf("aggregate supply %s/%s: %w", platform, category, err)
	}

	if demand == 0.0 && supply == 0.0 {
		return nil, nil
	}

	gap := ComputeGap(demand, supply)
	return &market.GapScore{
		Category:  category,
		Platform:  platform,
		GapScore:  gap,
		Verdict:   AssignVerdict(gap),
		WeekStart: week,
	}, nil
}
