package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/elonfeng/gapradar/pkg/market"
	"github.com/elonfeng/gapradar/pkg/pipeline"
)

func TestComputeGap(t *testing.T) {
	cases := []struct {
		name           string
		demand, supply float64
		want           float64
	}{
		{"balanced market", 0.5, 0.5, 0.5},
		{"max opportunity", 1.0, 0.0, 1.0},
		{"max saturation", 0.0, 1.0, 0.0},
		{"high demand low supply", 0.8, 0.15, 0.825},
		{"zero everything", 0.0, 0.0, 0.5},
		{"slight oversupply", 0.4, 0.6, 0.4},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, pipeline.ComputeGap(tc.demand, tc.supply), 1e-9)
		})
	}
}

func TestAssignVerdict_Boundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  market.Verdict
	}{
		{1.0, market.VerdictHighOpportunity},
		{0.6, market.VerdictHighOpportunity},
		{0.5999, market.VerdictCompetitive},
		{0.5, market.VerdictCompetitive},
		{0.3, market.VerdictCompetitive},
		{0.2999, market.VerdictSaturated},
		{0.0, market.VerdictSaturated},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, pipeline.AssignVerdict(tc.score), "score %v", tc.score)
	}
}

func TestNormalize(t *testing.T) {
	assert.InDelta(t, 0.0, pipeline.Normalize(10, 10, 110), 1e-9)
	assert.InDelta(t, 1.0, pipeline.Normalize(110, 10, 110), 1e-9)
	assert.InDelta(t, 0.5, pipeline.Normalize(60, 10, 110), 1e-9)

	// Degenerate cohort collapses to the neutral midpoint.
	assert.Equal(t, 0.5, pipeline.Normalize(42, 42, 42))

	// Out-of-cohort values clamp instead of escaping [0,1].
	assert.Equal(t, 0.0, pipeline.Normalize(-5, 0, 10))
	assert.Equal(t, 1.0, pipeline.Normalize(25, 0, 10))
}
