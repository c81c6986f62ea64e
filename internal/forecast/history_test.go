package forecast

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradedesk/tradedesk/internal/documents"
)

func po(number string, issued time.Time, items ...documents.LineItem) documents.PurchaseOrder {
	return documents.PurchaseOrder{Number: number, IssueDate: issued, Items: items}
}

func line(code, name string, qty int64) documents.LineItem {
	return documents.LineItem{Code: code, Name: name, Unit: "pcs", Quantity: decimal.NewFromInt(qty)}
}

func TestBuildHistoriesGroupsByCode(t *testing.T) {
	orders := []documents.PurchaseOrder{
		po("PO-1", base, line("sp-100", "Steel pipe", 5), line("", "Gate  Valve", 2)),
		po("PO-2", base.AddDate(0, 1, 0), line("SP-100", "steel pipe 2in", 7), line("", "gate valve", 1)),
		po("PO-3", base.AddDate(0, 2, 0), line("FL-1", "Flange", 0)),
	}

	histories := BuildHistories(orders)
	require.Len(t, histories, 2)

	assert.Equal(t, "SP-100", histories[0].Code)
	assert.Equal(t, "Steel pipe", histories[0].Name)
	require.Len(t, histories[0].Events, 2)
	assert.Equal(t, "PO-2", histories[0].Events[1].PONumber)

	assert.Equal(t, "gate valve", histories[1].Code)
	assert.Len(t, histories[1].Events, 2)
}

func TestBuildHistoriesFallsBackToCreatedAt(t *testing.T) {
	order := po("PO-9", time.Time{}, line("X", "x", 1))
	order.CreatedAt = base
	histories := BuildHistories([]documents.PurchaseOrder{order})
	require.Len(t, histories, 1)
	assert.Equal(t, base, histories[0].Events[0].Date)
}
