package documents

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPurchaseOrderStatus(t *testing.T) {
	now := time.Date(2024, 5, 10, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		expiry time.Time
		want   Status
	}{
		{"ten days ahead is active", now.AddDate(0, 0, 10), POStatusActive},
		{"three days ahead is expiring soon", now.AddDate(0, 0, 3), POStatusExpiringSoon},
		{"expiry day itself is still expiring soon", now, POStatusExpiringSoon},
		{"one day past is expired", now.AddDate(0, 0, -1), POStatusExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			po := PurchaseOrder{ExpiryDate: tt.expiry}
			assert.Equal(t, tt.want, po.Status(now))
		})
	}
}

func TestPurchaseOrderStatusFollowsClock(t *testing.T) {
	expiry := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	po := PurchaseOrder{ExpiryDate: expiry}

	assert.Equal(t, POStatusActive, po.Status(expiry.AddDate(0, 0, -20)))
	assert.Equal(t, POStatusExpiringSoon, po.Status(expiry.AddDate(0, 0, -2)))
	assert.Equal(t, POStatusExpiringSoon, po.Status(expiry.Add(23*time.Hour)))
	assert.Equal(t, POStatusExpired, po.Status(expiry.Add(24*time.Hour)))
}

func TestQuotationEffectiveStatus(t *testing.T) {
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	t.Run("open quotation past validity reads expired", func(t *testing.T) {
		for _, stored := range []Status{QuotationStatusDraft, QuotationStatusSent} {
			q := Quotation{Status: stored, ValidityDate: now.AddDate(0, 0, -2)}
			assert.True(t, q.IsExpired(now))
			assert.Equal(t, QuotationStatusExpired, q.EffectiveStatus(now))
		}
	})

	t.Run("closed quotation keeps stored status", func(t *testing.T) {
		q := Quotation{Status: QuotationStatusAccepted, ValidityDate: now.AddDate(0, 0, -2)}
		assert.Equal(t, QuotationStatusAccepted, q.EffectiveStatus(now))
	})

	t.Run("expiring soon only while valid", func(t *testing.T) {
		q := Quotation{Status: QuotationStatusSent, ValidityDate: now.AddDate(0, 0, 5)}
		assert.True(t, q.IsExpiringSoon(now))
		assert.False(t, q.IsExpired(now))

		q.ValidityDate = now.AddDate(0, 0, 30)
		assert.False(t, q.IsExpiringSoon(now))
	})
}

func TestDeliveryDocumentApplyTotals(t *testing.T) {
	doc := DeliveryDocument{
		VATRate: decimal.NewFromInt(5),
		Items: []LineItem{
			{Name: "Gasket", Quantity: decimal.NewFromInt(4), UnitPrice: decimal.RequireFromString("12.50"), Total: decimal.NewFromInt(99)},
			{Name: "Valve", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("150")},
		},
	}

	got := doc.ApplyTotals()

	assert.True(t, got.Items[0].Total.Equal(decimal.NewFromInt(50)))
	assert.True(t, got.Subtotal.Equal(decimal.NewFromInt(200)))
	assert.True(t, got.VATAmount.Equal(decimal.NewFromInt(10)))
	assert.True(t, got.Total.Equal(decimal.NewFromInt(210)))
	assert.True(t, doc.Items[0].Total.Equal(decimal.NewFromInt(99)), "input must not be mutated")
}

func TestPurchaseOrderExpiresAfterItsLastDay(t *testing.T) {
	po := PurchaseOrder{ExpiryDate: time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)}

	assert.Equal(t, POStatusExpiringSoon, po.Status(time.Date(2024, 5, 31, 23, 59, 59, 0, time.UTC)))
	assert.Equal(t, POStatusExpired, po.Status(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, POStatusActive, po.Status(time.Date(2024, 5, 23, 23, 59, 59, 0, time.UTC)))
}
