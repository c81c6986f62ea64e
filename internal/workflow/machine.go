// Package workflow moves business documents through their lifecycles and keeps the
// links between them consistent.
package workflow

import (
	"fmt"

	"github.com/tradedesk/tradedesk/internal/documents"
	"github.com/tradedesk/tradedesk/internal/shared"
)

// Action is a user-initiated workflow step.
type Action string

const (
	ActionReview   Action = "review"
	ActionQuote    Action = "quote"
	ActionConvert  Action = "convert"
	ActionSend     Action = "send"
	ActionAccept   Action = "accept"
	ActionReject   Action = "reject"
	ActionConfirm  Action = "confirm"
	ActionShip     Action = "ship"
	ActionDeliver  Action = "deliver"
	ActionCancel   Action = "cancel"
	ActionGenerate Action = "generate"

	// ActionOrder places a supplier order against a purchase order.
	ActionOrder Action = "order"
)

type edge struct {
	from   documents.Status
	action Action
}

// Purchase orders have no entry: their status is derived from the expiry date only.
var transitions = map[documents.Kind]map[edge]documents.Status{
	documents.KindInquiry: {
		{documents.InquiryStatusPending, ActionReview}:   documents.InquiryStatusReviewed,
		{documents.InquiryStatusPending, ActionQuote}:    documents.InquiryStatusQuoted,
		{documents.InquiryStatusReviewed, ActionQuote}:   documents.InquiryStatusQuoted,
		{documents.InquiryStatusPending, ActionConvert}:  documents.InquiryStatusConverted,
		{documents.InquiryStatusReviewed, ActionConvert}: documents.InquiryStatusConverted,
		{documents.InquiryStatusQuoted, ActionConvert}:   documents.InquiryStatusConverted,
	},
	documents.KindQuotation: {
		{documents.QuotationStatusDraft, ActionSend}:  documents.QuotationStatusSent,
		{documents.QuotationStatusSent, ActionAccept}: documents.QuotationStatusAccepted,
		{documents.QuotationStatusSent, ActionReject}: documents.QuotationStatusRejected,
	},
	documents.KindSupplierOrder: {
		{documents.SupplierOrderStatusPending, ActionConfirm}:   documents.SupplierOrderStatusConfirmed,
		{documents.SupplierOrderStatusConfirmed, ActionShip}:    documents.SupplierOrderStatusInTransit,
		{documents.SupplierOrderStatusConfirmed, ActionDeliver}: documents.SupplierOrderStatusDelivered,
		{documents.SupplierOrderStatusInTransit, ActionDeliver}: documents.SupplierOrderStatusDelivered,
		{documents.SupplierOrderStatusPending, ActionCancel}:    documents.SupplierOrderStatusCancelled,
		{documents.SupplierOrderStatusConfirmed, ActionCancel}:  documents.SupplierOrderStatusCancelled,
	},
	documents.KindDeliveryDocument: {
		{documents.DeliveryStatusDraft, ActionGenerate}: documents.DeliveryStatusGenerated,
		{documents.DeliveryStatusGenerated, ActionSend}: documents.DeliveryStatusSent,
	},
}

// IllegalTransitionError describes a rejected workflow step.
type IllegalTransitionError struct {
	Kind   documents.Kind
	From   documents.Status
	Action Action
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition: %s cannot %s from %s", e.Kind, e.Action, e.From)
}

// Is lets callers match the shared sentinel.
func (e *IllegalTransitionError) Is(target error) bool { return target == shared.ErrIllegalTransition }

// Transition returns the status reached by applying action in status from.
// from must be the effective status, with time-derived states already applied.
func Transition(kind documents.Kind, from documents.Status, action Action) (documents.Status, error) {
	to, ok := transitions[kind][edge{from, action}]
	if !ok {
		return "", &IllegalTransitionError{Kind: kind, From: from, Action: action}
	}
	return to, nil
}

// Allowed lists the actions available from status for kind.
func Allowed(kind documents.Kind, from documents.Status) []Action {
	out := make([]Action, 0, 4)
	for _, a := range actionOrder {
		if _, ok := transitions[kind][edge{from, a}]; ok {
			out = append(out, a)
		}
	}
	return out
}

var actionOrder = []Action{
	ActionReview, ActionQuote, ActionConvert, ActionSend, ActionAccept, ActionReject,
	ActionConfirm, ActionShip, ActionDeliver, ActionCancel, ActionGenerate,
}
