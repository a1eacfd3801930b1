package market_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/gapradar/pkg/market"
)

func TestWeekStart_SnapsToMonday(t *testing.T) {
	// 2026-08-24 is a Monday.
	monday := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		in   time.Time
	}{
		{"monday itself", monday},
		{"monday with time of day", time.Date(2026, 8, 24, 15, 30, 45, 0, time.UTC)},
		{"wednesday", time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)},
		{"saturday", time.Date(2026, 8, 29, 23, 59, 59, 0, time.UTC)},
		{"sunday", time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, monday, market.WeekStart(tc.in))
		})
	}
}

func TestWeekStart_Idempotent(t *testing.T) {
	w := market.WeekStart(time.Date(2026, 8, 27, 4, 0, 0, 0, time.UTC))
	assert.Equal(t, w, market.WeekStart(w))
}

func TestParseWeek(t *testing.T) {
	w, err := market.ParseWeek("2026-08-27")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC), w)

	_, err = market.ParseWeek("not-a-date")
	assert.Error(t, err)
}

func TestFormatWeek(t *testing.T) {
	w, err := market.ParseWeek("2026-08-24")
	require.NoError(t, err)
	assert.Equal(t, "2026-08-24", market.FormatWeek(w))
}

func TestNormalizedKinds(t *testing.T) {
	kinds := market.NormalizedKinds()
	assert.Equal(t, []market.MetricKind{market.KindDemand, market.KindSupply}, kinds)
}
