package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/elonfeng/gapradar/pkg/market"
)

// Normalize rescales value into [0,1] by min-max position within its cohort.
// A degenerate cohort (max == min) yields the neutral midpoint 0.5. The
// result is clamped to guard float error and any min/max mis-tracking.
func Normalize(value, min, max float64) float64 {
	if max == min {
		return 0.5
	}
	return clamp01((value - min) / (max - min))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// NormalizeCohort rescans the full cohort sharing (platform, kind, week),
// rewrites every member's normalized value, and returns the member count.
// Repeated calls on an unchanged cohort are exact no-ops in output.
func (p *Pipeline) NormalizeCohort(ctx context.Context, platform market.Platform, kind market.MetricKind, week time.Time) (int, error) {
	metrics, err := p.store.ListCohort(ctx, platform, kind, week)
	if err != nil {
		return 0, fmt.Errorf("load cohort %s/%s: %w", platform, kind, err)
	}
	if len(metrics) == 0 {
		return 0, nil
	}

	min, max := metrics[0].RawValue, metrics[0].RawValue
	for _, m := range metrics[1:] {
		if m.RawValue < min {
			min = m.RawValue
		}
		if m.RawValue > max {
			max = m.RawValue
		}
	}

	for i := range metrics {
		metrics[i].NormalizedValue = Normalize(metrics[i].RawValue, min, max)
	}

	if err := p.store.RewriteNormalized(ctx, metrics); err != nil {
		return 0, fmt.Errorf("persist cohort %s/%s: %w", platform, kind, err)
	}
	return len(metrics), nil
}

// NormalizeWeek normalizes every configured platform x kind cohort for the
// week and returns the total observation count. Empty cohorts contribute 0.
func (p *Pipeline) NormalizeWeek(ctx context.Context, week time.Time) (int, error) {
	total := 0
	for _, platform := range p.platforms {
		for _, kind := range p.kinds {
			count, err := p.NormalizeCohort(ctx, platform, kind, week)
			if err != nil {
				return total, err
			}
			total += count
		}
	}

	p.log.WithFields(logrus.Fields{
		"week":    market.FormatWeek(week),
		"metrics": total,
	}).Info("normalized weekly metrics")
	return total, nil
}
