package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradedesk/tradedesk/internal/documents"
	"github.com/tradedesk/tradedesk/internal/shared"
)

func TestQuotationMustBeSentBeforeAccepted(t *testing.T) {
	_, err := Transition(documents.KindQuotation, documents.QuotationStatusDraft, ActionAccept)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrIllegalTransition)

	var illegal *IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, documents.QuotationStatusDraft, illegal.From)

	sent, err := Transition(documents.KindQuotation, documents.QuotationStatusDraft, ActionSend)
	require.NoError(t, err)
	accepted, err := Transition(documents.KindQuotation, sent, ActionAccept)
	require.NoError(t, err)
	assert.Equal(t, documents.QuotationStatusAccepted, accepted)
}

func TestTransitionEdges(t *testing.T) {
	tests := []struct {
		kind   documents.Kind
		from   documents.Status
		action Action
		want   documents.Status
	}{
		{documents.KindInquiry, documents.InquiryStatusPending, ActionReview, documents.InquiryStatusReviewed},
		{documents.KindInquiry, documents.InquiryStatusReviewed, ActionQuote, documents.InquiryStatusQuoted},
		{documents.KindInquiry, documents.InquiryStatusQuoted, ActionConvert, documents.InquiryStatusConverted},
		{documents.KindQuotation, documents.QuotationStatusSent, ActionReject, documents.QuotationStatusRejected},
		{documents.KindSupplierOrder, documents.SupplierOrderStatusPending, ActionConfirm, documents.SupplierOrderStatusConfirmed},
		{documents.KindSupplierOrder, documents.SupplierOrderStatusConfirmed, ActionShip, documents.SupplierOrderStatusInTransit},
		{documents.KindSupplierOrder, documents.SupplierOrderStatusInTransit, ActionDeliver, documents.SupplierOrderStatusDelivered},
		{documents.KindSupplierOrder, documents.SupplierOrderStatusConfirmed, ActionCancel, documents.SupplierOrderStatusCancelled},
		{documents.KindDeliveryDocument, documents.DeliveryStatusDraft, ActionGenerate, documents.DeliveryStatusGenerated},
		{documents.KindDeliveryDocument, documents.DeliveryStatusGenerated, ActionSend, documents.DeliveryStatusSent},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind)+"/"+string(tt.from)+"/"+string(tt.action), func(t *testing.T) {
			got, err := Transition(tt.kind, tt.from, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTerminalStatesRejectEverything(t *testing.T) {
	terminal := []struct {
		kind documents.Kind
		from documents.Status
	}{
		{documents.KindInquiry, documents.InquiryStatusConverted},
		{documents.KindQuotation, documents.QuotationStatusAccepted},
		{documents.KindQuotation, documents.QuotationStatusRejected},
		{documents.KindQuotation, documents.QuotationStatusExpired},
		{documents.KindSupplierOrder, documents.SupplierOrderStatusDelivered},
		{documents.KindSupplierOrder, documents.SupplierOrderStatusCancelled},
		{documents.KindDeliveryDocument, documents.DeliveryStatusSent},
		{documents.KindPurchaseOrder, documents.POStatusActive},
	}
	for _, tt := range terminal {
		assert.Empty(t, Allowed(tt.kind, tt.from), "%s %s", tt.kind, tt.from)
		for _, action := range actionOrder {
			_, err := Transition(tt.kind, tt.from, action)
			assert.ErrorIs(t, err, shared.ErrIllegalTransition)
		}
	}
}

func TestSupplierOrderCannotCancelOnceShipped(t *testing.T) {
	_, err := Transition(documents.KindSupplierOrder, documents.SupplierOrderStatusInTransit, ActionCancel)
	assert.ErrorIs(t, err, shared.ErrIllegalTransition)
}

func TestAllowedListsActionsInOrder(t *testing.T) {
	assert.Equal(t, []Action{ActionReview, ActionQuote, ActionConvert}, Allowed(documents.KindInquiry, documents.InquiryStatusPending))
	assert.Equal(t, []Action{ActionShip, ActionDeliver, ActionCancel}, Allowed(documents.KindSupplierOrder, documents.SupplierOrderStatusConfirmed))
	assert.Equal(t, []Action{ActionDeliver}, Allowed(documents.KindSupplierOrder, documents.SupplierOrderStatusInTransit))
}
