package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tradedesk/tradedesk/internal/documents"
	"github.com/tradedesk/tradedesk/internal/shared"
	"github.com/tradedesk/tradedesk/internal/store"
)

// View is a document as read at one instant, with time-derived fields applied.
type View struct {
	Kind            documents.Kind   `json:"kind"`
	ID              string           `json:"id"`
	Number          string           `json:"number"`
	Status          documents.Status `json:"status"`
	ExpiringSoon    bool             `json:"expiringSoon,omitempty"`
	DaysUntilExpiry *int             `json:"daysUntilExpiry,omitempty"`
	Actions         []Action         `json:"actions"`
	Document        documents.Record `json:"document"`
}

func (s *Service) view(doc documents.Record, now time.Time) View {
	status := effectiveStatus(doc, now)
	v := View{
		Kind:     doc.RecordKind(),
		ID:       doc.RecordID(),
		Number:   doc.RecordNumber(),
		Status:   status,
		Actions:  Allowed(doc.RecordKind(), status),
		Document: doc,
	}
	switch d := doc.(type) {
	case documents.PurchaseOrder:
		days := d.DaysUntilExpiry(now)
		v.DaysUntilExpiry = &days
		v.ExpiringSoon = status == documents.POStatusExpiringSoon
	case documents.Quotation:
		open := status == documents.QuotationStatusDraft || status == documents.QuotationStatusSent
		v.ExpiringSoon = open && d.IsExpiringSoon(now)
	}
	return v
}

// effectiveStatus is the status a reader sees at now.
func effectiveStatus(doc documents.Record, now time.Time) documents.Status {
	switch d := doc.(type) {
	case documents.PurchaseOrder:
		return d.Status(now)
	case documents.CustomerInquiry:
		return d.Status
	case documents.Quotation:
		return d.EffectiveStatus(now)
	case documents.SupplierOrder:
		return d.Status
	case documents.DeliveryDocument:
		return d.Status
	default:
		return ""
	}
}

func decode(rec store.Record) (documents.Record, error) {
	switch rec.Kind {
	case documents.KindPurchaseOrder:
		return store.Decode[documents.PurchaseOrder](rec)
	case documents.KindInquiry:
		return store.Decode[documents.CustomerInquiry](rec)
	case documents.KindQuotation:
		return store.Decode[documents.Quotation](rec)
	case documents.KindSupplierOrder:
		return store.Decode[documents.SupplierOrder](rec)
	case documents.KindDeliveryDocument:
		return store.Decode[documents.DeliveryDocument](rec)
	default:
		return nil, fmt.Errorf("workflow: unknown kind %q", rec.Kind)
	}
}

func getTyped[T documents.Record](ctx context.Context, tx store.Tx, kind documents.Kind, id string) (T, error) {
	rec, err := tx.Get(ctx, kind, id)
	if err != nil {
		var zero T
		return zero, err
	}
	return store.Decode[T](rec)
}

// ListQuery narrows List. Status matches the effective status; Party matches the customer or
// supplier name case-insensitively.
type ListQuery struct {
	Kind         documents.Kind
	Status       documents.Status
	NumberPrefix string
	Party        string
	Limit        int
	Offset       int
}

// List returns documents of one kind, newest first.
func (s *Service) List(ctx context.Context, q ListQuery) ([]View, error) {
	if !q.Kind.Valid() {
		verr := &shared.ValidationError{Subject: "list"}
		verr.Add("kind", "unknown document kind")
		return nil, verr
	}
	filter := store.Filter{Kind: q.Kind, NumberPrefix: q.NumberPrefix}
	postFilter := q.Status != "" || q.Party != ""
	if !postFilter {
		filter.Limit, filter.Offset = q.Limit, q.Offset
	}
	recs, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, shared.Persistence("list", err)
	}

	now := s.now()
	party := strings.ToLower(strings.TrimSpace(q.Party))
	out := make([]View, 0, len(recs))
	for _, rec := range recs {
		doc, err := decode(rec)
		if err != nil {
			return nil, err
		}
		v := s.view(doc, now)
		if q.Status != "" && v.Status != q.Status {
			continue
		}
		if party != "" && !strings.Contains(strings.ToLower(partyName(doc)), party) {
			continue
		}
		out = append(out, v)
	}
	if postFilter {
		out = paginate(out, q.Limit, q.Offset)
	}
	return out, nil
}

// PurchaseOrders returns every stored purchase order.
func (s *Service) PurchaseOrders(ctx context.Context) ([]documents.PurchaseOrder, error) {
	recs, err := s.store.List(ctx, store.Filter{Kind: documents.KindPurchaseOrder})
	if err != nil {
		return nil, shared.Persistence("list", err)
	}
	out := make([]documents.PurchaseOrder, 0, len(recs))
	for _, rec := range recs {
		po, err := store.Decode[documents.PurchaseOrder](rec)
		if err != nil {
			return nil, err
		}
		out = append(out, po)
	}
	return out, nil
}

func partyName(doc documents.Record) string {
	switch d := doc.(type) {
	case documents.PurchaseOrder:
		return d.Customer.Name
	case documents.CustomerInquiry:
		return d.Customer.Name
	case documents.Quotation:
		return d.Customer.Name
	case documents.SupplierOrder:
		return d.Supplier.Name
	case documents.DeliveryDocument:
		return d.Customer.Name
	default:
		return ""
	}
}

func paginate(views []View, limit, offset int) []View {
	if offset > 0 {
		if offset >= len(views) {
			return []View{}
		}
		views = views[offset:]
	}
	if limit > 0 && limit < len(views) {
		views = views[:limit]
	}
	return views
}
