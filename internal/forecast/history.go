package forecast

import (
	"sort"
	"strings"

	"github.com/tradedesk/tradedesk/internal/documents"
)

// History is the purchase record of one material.
type History struct {
	Code   string
	Name   string
	Events []PurchaseEvent
}

// BuildHistories groups purchase order lines by material code, or by lowercase name when a
// line carries no code. Results are ordered by code.
func BuildHistories(orders []documents.PurchaseOrder) []History {
	byKey := make(map[string]*History)
	for _, po := range orders {
		date := po.IssueDate
		if date.IsZero() {
			date = po.CreatedAt
		}
		for _, item := range po.Items {
			if !item.Quantity.IsPositive() {
				continue
			}
			key := materialKey(item)
			if key == "" {
				continue
			}
			h, ok := byKey[key]
			if !ok {
				h = &History{Code: key, Name: strings.TrimSpace(item.Name)}
				byKey[key] = h
			}
			h.Events = append(h.Events, PurchaseEvent{
				Date:     date,
				Quantity: item.Quantity,
				Unit:     item.Unit,
				PONumber: po.Number,
			})
		}
	}

	out := make([]History, 0, len(byKey))
	for _, h := range byKey {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func materialKey(item documents.LineItem) string {
	if code := strings.ToUpper(strings.TrimSpace(item.Code)); code != "" {
		return code
	}
	return strings.ToLower(strings.Join(strings.Fields(item.Name), " "))
}
