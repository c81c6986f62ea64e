// Package forecast predicts material reorders from purchase order history.
package forecast

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradedesk/tradedesk/internal/shared"
)

// PurchaseEvent is one purchase of a material.
type PurchaseEvent struct {
	Date     time.Time       `json:"date"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit"`
	PONumber string          `json:"poNumber"`
}

// Recommendation is the stocking verdict.
type Recommendation string

const (
	RecommendStock      Recommendation = "Stock"
	RecommendDoNotStock Recommendation = "Do Not Stock"
)

// Thresholds decide when a material is worth stocking.
type Thresholds struct {
	MinOrders      int     `json:"minOrders"`
	MinConsistency float64 `json:"minConsistency"`
}

// DefaultThresholds are used when configuration leaves them unset.
var DefaultThresholds = Thresholds{MinOrders: 3, MinConsistency: 0.5}

// MaterialForecast is derived per material and never stored.
type MaterialForecast struct {
	Code                string          `json:"code"`
	Name                string          `json:"name"`
	Unit                string          `json:"unit"`
	EventCount          int             `json:"eventCount"`
	EventsLast12Months  int             `json:"eventsLast12Months"`
	AverageLeadTimeDays float64         `json:"averageLeadTimeDays"`
	MonthlyConsumption  decimal.Decimal `json:"monthlyConsumption"`
	LastPurchase        time.Time       `json:"lastPurchase"`
	PredictedNextOrder  time.Time       `json:"predictedNextOrder"`
	ConsistencyScore    float64         `json:"consistencyScore"`
	Recommendation      Recommendation  `json:"recommendation"`
	Reason              string          `json:"reason"`
}

// InsufficientDataError is returned for materials with fewer than two purchases.
type InsufficientDataError struct {
	Code   string
	Events int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: material %s has %d purchase(s), need at least 2", e.Code, e.Events)
}

// Is matches shared.ErrInsufficientData.
func (e *InsufficientDataError) Is(target error) bool { return target == shared.ErrInsufficientData }
