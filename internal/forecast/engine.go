package forecast

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const (
	day            = 24 * time.Hour
	trailingWindow = 365 * day
)

var twelve = decimal.NewFromInt(12)

// Compute forecasts one material from its purchase events.
func Compute(code, name string, events []PurchaseEvent, now time.Time, th Thresholds) (MaterialForecast, error) {
	if len(events) < 2 {
		return MaterialForecast{}, &InsufficientDataError{Code: code, Events: len(events)}
	}
	if th.MinOrders <= 0 {
		th.MinOrders = DefaultThresholds.MinOrders
	}

	sorted := append([]PurchaseEvent(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	gaps := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		gaps = append(gaps, sorted[i].Date.Sub(sorted[i-1].Date).Hours()/24)
	}
	mean, stddev := meanStddev(gaps)

	windowStart := now.Add(-trailingWindow)
	recent := 0
	consumed := decimal.Zero
	for _, ev := range sorted {
		if ev.Date.After(windowStart) && !ev.Date.After(now) {
			recent++
			consumed = consumed.Add(ev.Quantity)
		}
	}

	last := sorted[len(sorted)-1]
	score := consistency(mean, stddev)
	f := MaterialForecast{
		Code:                code,
		Name:                name,
		Unit:                last.Unit,
		EventCount:          len(sorted),
		EventsLast12Months:  recent,
		AverageLeadTimeDays: round2(mean),
		MonthlyConsumption:  consumed.Div(twelve).Round(2),
		LastPurchase:        last.Date,
		PredictedNextOrder:  last.Date.Add(time.Duration(mean * float64(day))),
		ConsistencyScore:    round2(score),
	}
	f.Recommendation, f.Reason = recommend(f.EventsLast12Months, score, th)
	return f, nil
}

// consistency is one minus the coefficient of variation of the gaps, clamped to [0,1].
func consistency(mean, stddev float64) float64 {
	if mean <= 0 {
		return 0
	}
	return math.Max(0, math.Min(1, 1-stddev/mean))
}

func meanStddev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

func recommend(recent int, score float64, th Thresholds) (Recommendation, string) {
	switch {
	case recent < th.MinOrders:
		return RecommendDoNotStock, fmt.Sprintf("only %d order(s) in the last 12 months, minimum is %d", recent, th.MinOrders)
	case score < th.MinConsistency:
		return RecommendDoNotStock, fmt.Sprintf("irregular ordering: consistency %.3f is below %.2f", score, th.MinConsistency)
	default:
		return RecommendStock, fmt.Sprintf("%d orders in the last 12 months with consistency %.2f", recent, score)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
