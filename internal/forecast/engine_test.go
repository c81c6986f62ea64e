package forecast

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradedesk/tradedesk/internal/shared"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func eventsAt(days ...int) []PurchaseEvent {
	out := make([]PurchaseEvent, 0, len(days))
	for _, d := range days {
		out = append(out, PurchaseEvent{Date: base.AddDate(0, 0, d), Quantity: decimal.NewFromInt(12), Unit: "pcs"})
	}
	return out
}

func TestComputeRegularOrders(t *testing.T) {
	f, err := Compute("SP-100", "Steel pipe", eventsAt(0, 30, 60, 90), base.AddDate(0, 0, 100), DefaultThresholds)
	require.NoError(t, err)

	assert.Equal(t, 30.0, f.AverageLeadTimeDays)
	assert.Equal(t, base.AddDate(0, 0, 120), f.PredictedNextOrder)
	assert.Equal(t, base.AddDate(0, 0, 90), f.LastPurchase)
	assert.Equal(t, 1.0, f.ConsistencyScore)
	assert.Equal(t, 4, f.EventCount)
	assert.Equal(t, 4, f.EventsLast12Months)
	assert.True(t, f.MonthlyConsumption.Equal(decimal.NewFromInt(4)))
	assert.Equal(t, RecommendStock, f.Recommendation)
	assert.Equal(t, "pcs", f.Unit)
}

func TestComputeSortsEvents(t *testing.T) {
	f, err := Compute("X", "x", eventsAt(90, 0, 60, 30), base.AddDate(0, 0, 100), DefaultThresholds)
	require.NoError(t, err)
	assert.Equal(t, 30.0, f.AverageLeadTimeDays)
	assert.Equal(t, base.AddDate(0, 0, 120), f.PredictedNextOrder)
}

func TestComputeInsufficientData(t *testing.T) {
	for _, events := range [][]PurchaseEvent{nil, eventsAt(5)} {
		_, err := Compute("SP-1", "pipe", events, base, DefaultThresholds)
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrInsufficientData)

		var insufficient *InsufficientDataError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, len(events), insufficient.Events)
	}
}

func TestComputeOldOrdersAreNotStocked(t *testing.T) {
	f, err := Compute("X", "x", eventsAt(0, 30, 60, 90), base.AddDate(2, 0, 0), DefaultThresholds)
	require.NoError(t, err)
	assert.Equal(t, 0, f.EventsLast12Months)
	assert.True(t, f.MonthlyConsumption.IsZero())
	assert.Equal(t, RecommendDoNotStock, f.Recommendation)
	assert.Contains(t, f.Reason, "only 0 order(s)")
}

func TestComputeIrregularOrders(t *testing.T) {
	// gaps 2, 2, 200: mean 68, population stddev ~93.3
	f, err := Compute("X", "x", eventsAt(0, 2, 4, 204), base.AddDate(0, 0, 210), DefaultThresholds)
	require.NoError(t, err)
	assert.Equal(t, 0.0, f.ConsistencyScore)
	assert.Equal(t, RecommendDoNotStock, f.Recommendation)
	assert.Contains(t, f.Reason, "irregular")
}

func TestComputeSameDayOrders(t *testing.T) {
	f, err := Compute("X", "x", eventsAt(3, 3), base.AddDate(0, 0, 4), DefaultThresholds)
	require.NoError(t, err)
	assert.Equal(t, 0.0, f.AverageLeadTimeDays)
	assert.Equal(t, 0.0, f.ConsistencyScore)
	assert.Equal(t, base.AddDate(0, 0, 3), f.PredictedNextOrder)
}

func TestComputeThresholdsAreConfigurable(t *testing.T) {
	th := Thresholds{MinOrders: 5, MinConsistency: 0.5}
	f, err := Compute("X", "x", eventsAt(0, 30, 60, 90), base.AddDate(0, 0, 100), th)
	require.NoError(t, err)
	assert.Equal(t, RecommendDoNotStock, f.Recommendation)
	assert.Contains(t, f.Reason, "minimum is 5")
}

func TestComputeComparesUnroundedConsistency(t *testing.T) {
	// gaps of 188 and 62 days: 1 - 63/125 = 0.496, displayed as 0.50
	f, err := Compute("GV-040", "Gate valve", eventsAt(0, 188, 250), base.AddDate(0, 0, 260), DefaultThresholds)
	require.NoError(t, err)

	assert.Equal(t, 0.5, f.ConsistencyScore)
	assert.Equal(t, 3, f.EventsLast12Months)
	assert.Equal(t, RecommendDoNotStock, f.Recommendation)
	assert.Contains(t, f.Reason, "irregular ordering")
}
