package workflow

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradedesk/tradedesk/internal/documents"
	"github.com/tradedesk/tradedesk/internal/shared"
	"github.com/tradedesk/tradedesk/internal/store"
)

// QuotationInput describes the quotation produced from an inquiry. Empty Items copies the
// inquiry lines.
type QuotationInput struct {
	Number       string
	IssueDate    time.Time
	ValidityDate time.Time
	Currency     string
	Items        []documents.LineItem
}

// PurchaseOrderInput describes a purchase order produced by a conversion. Empty Items copies
// the source lines.
type PurchaseOrderInput struct {
	Number     string
	IssueDate  time.Time
	ExpiryDate time.Time
	Currency   string
	Items      []documents.LineItem
}

// SupplierOrderInput describes an upstream order placed against a customer PO.
type SupplierOrderInput struct {
	Number               string
	OrderDate            time.Time
	ExpectedDeliveryDate *time.Time
	Supplier             documents.Party
	Currency             string
	Items                []documents.LineItem
}

// DeliveryInput describes the document issued when a supplier order is received.
type DeliveryInput struct {
	Number  string
	Date    time.Time
	Type    documents.DeliveryType
	VATRate *decimal.Decimal
	Items   []documents.LineItem
}

// ConvertInquiryToQuotation creates a draft quotation and links the inquiry to it.
func (s *Service) ConvertInquiryToQuotation(ctx context.Context, inquiryID string, input QuotationInput) (View, error) {
	now := s.now().UTC()
	var created documents.Quotation
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		inquiry, err := getTyped[documents.CustomerInquiry](ctx, tx, documents.KindInquiry, inquiryID)
		if err != nil {
			return err
		}
		to, err := Transition(documents.KindInquiry, inquiry.Status, ActionQuote)
		if err != nil {
			return err
		}

		issue := defaultTime(input.IssueDate, now)
		q := documents.Quotation{
			ID:           s.newID(),
			Number:       defaultString(input.Number, generateNumber("QT", now)),
			IssueDate:    issue,
			ValidityDate: defaultTime(input.ValidityDate, issue.Add(s.defaults.QuotationValidity)),
			Customer:     inquiry.Customer,
			Items:        priceItems(input.Items, inquiry.Items),
			Currency:     defaultString(input.Currency, s.defaults.Currency),
			Status:       documents.QuotationStatusDraft,
			InquiryID:    inquiry.ID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := validateDates("quotation", "validityDate", q.IssueDate, q.ValidityDate); err != nil {
			return err
		}
		q.Total = documents.SumItems(q.Items)
		if err := createDoc(ctx, tx, q, now); err != nil {
			return err
		}
		if _, err := tx.Update(ctx, documents.KindInquiry, inquiry.ID, store.Patch{
			"quotationId": q.ID,
			"status":      to,
			"updatedAt":   now,
		}); err != nil {
			return err
		}
		created = q
		return nil
	})
	if err != nil {
		return View{}, shared.Persistence("convert inquiry to quotation", err)
	}
	s.recordAudit(ctx, "CONVERT", created, map[string]any{"inquiryId": inquiryID})
	return s.view(created, now), nil
}

// ConvertInquiryToPurchaseOrder creates a purchase order directly from an inquiry.
func (s *Service) ConvertInquiryToPurchaseOrder(ctx context.Context, inquiryID string, input PurchaseOrderInput) (View, error) {
	now := s.now().UTC()
	var created documents.PurchaseOrder
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		inquiry, err := getTyped[documents.CustomerInquiry](ctx, tx, documents.KindInquiry, inquiryID)
		if err != nil {
			return err
		}
		to, err := Transition(documents.KindInquiry, inquiry.Status, ActionConvert)
		if err != nil {
			return err
		}
		po, err := s.newPurchaseOrder(input, inquiry.Customer, inquiry.Items, s.defaults.Currency, now)
		if err != nil {
			return err
		}
		po.InquiryID = inquiry.ID
		if err := createDoc(ctx, tx, po, now); err != nil {
			return err
		}
		if _, err := tx.Update(ctx, documents.KindInquiry, inquiry.ID, store.Patch{
			"poId":      po.ID,
			"status":    to,
			"updatedAt": now,
		}); err != nil {
			return err
		}
		created = po
		return nil
	})
	if err != nil {
		return View{}, shared.Persistence("convert inquiry to purchase order", err)
	}
	s.bumpForecast(ctx)
	s.recordAudit(ctx, "CONVERT", created, map[string]any{"inquiryId": inquiryID})
	return s.view(created, now), nil
}

// AcceptQuotation accepts a sent quotation and creates its purchase order. When the quotation
// came from an inquiry, the inquiry is linked to the new PO and marked converted.
func (s *Service) AcceptQuotation(ctx context.Context, quotationID string, input PurchaseOrderInput) (View, error) {
	now := s.now().UTC()
	var created documents.PurchaseOrder
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		q, err := getTyped[documents.Quotation](ctx, tx, documents.KindQuotation, quotationID)
		if err != nil {
			return err
		}
		to, err := Transition(documents.KindQuotation, q.EffectiveStatus(now), ActionAccept)
		if err != nil {
			return err
		}
		po, err := s.newPurchaseOrder(input, q.Customer, q.Items, q.Currency, now)
		if err != nil {
			return err
		}
		po.QuotationID = q.ID
		po.InquiryID = q.InquiryID
		if err := createDoc(ctx, tx, po, now); err != nil {
			return err
		}
		if _, err := tx.Update(ctx, documents.KindQuotation, q.ID, store.Patch{
			"poId":      po.ID,
			"status":    to,
			"updatedAt": now,
		}); err != nil {
			return err
		}
		if q.InquiryID != "" {
			inquiry, err := getTyped[documents.CustomerInquiry](ctx, tx, documents.KindInquiry, q.InquiryID)
			if err != nil {
				return err
			}
			inquiryTo, err := Transition(documents.KindInquiry, inquiry.Status, ActionConvert)
			if err != nil {
				return err
			}
			if _, err := tx.Update(ctx, documents.KindInquiry, inquiry.ID, store.Patch{
				"poId":      po.ID,
				"status":    inquiryTo,
				"updatedAt": now,
			}); err != nil {
				return err
			}
		}
		created = po
		return nil
	})
	if err != nil {
		return View{}, shared.Persistence("accept quotation", err)
	}
	s.bumpForecast(ctx)
	s.recordAudit(ctx, "ACCEPT", created, map[string]any{"quotationId": quotationID})
	return s.view(created, now), nil
}

// CreateSupplierOrder places a pending supplier order against a purchase order that has not expired.
func (s *Service) CreateSupplierOrder(ctx context.Context, poID string, input SupplierOrderInput) (View, error) {
	now := s.now().UTC()
	var created documents.SupplierOrder
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		po, err := getTyped[documents.PurchaseOrder](ctx, tx, documents.KindPurchaseOrder, poID)
		if err != nil {
			return err
		}
		if status := po.Status(now); status == documents.POStatusExpired {
			return &IllegalTransitionError{Kind: documents.KindPurchaseOrder, From: status, Action: ActionOrder}
		}
		verr := &shared.ValidationError{Subject: "supplier order"}
		if input.Supplier.Name == "" {
			verr.Add("supplier.name", "required")
		}
		if err := verr.Err(); err != nil {
			return err
		}
		items := input.Items
		if len(items) == 0 {
			items = po.Items
		}
		so := documents.SupplierOrder{
			ID:                   s.newID(),
			Number:               defaultString(input.Number, generateNumber("SO", now)),
			OrderDate:            defaultTime(input.OrderDate, now),
			ExpectedDeliveryDate: input.ExpectedDeliveryDate,
			Supplier:             input.Supplier,
			Items:                documents.RecomputeItems(items),
			Currency:             defaultString(input.Currency, po.Currency),
			Status:               documents.SupplierOrderStatusPending,
			POID:                 po.ID,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		so.Total = documents.SumItems(so.Items)
		if err := createDoc(ctx, tx, so, now); err != nil {
			return err
		}
		ids := append(append([]string(nil), po.SupplierOrderIDs...), so.ID)
		if _, err := tx.Update(ctx, documents.KindPurchaseOrder, po.ID, store.Patch{
			"supplierOrderIds": ids,
			"updatedAt":        now,
		}); err != nil {
			return err
		}
		created = so
		return nil
	})
	if err != nil {
		return View{}, shared.Persistence("create supplier order", err)
	}
	s.recordAudit(ctx, "CREATE", created, map[string]any{"poId": poID})
	return s.view(created, now), nil
}

// ReceiveDelivery marks a supplier order delivered and issues its draft delivery document.
func (s *Service) ReceiveDelivery(ctx context.Context, supplierOrderID string, input DeliveryInput) (View, error) {
	now := s.now().UTC()
	var created documents.DeliveryDocument
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		so, err := getTyped[documents.SupplierOrder](ctx, tx, documents.KindSupplierOrder, supplierOrderID)
		if err != nil {
			return err
		}
		to, err := Transition(documents.KindSupplierOrder, so.Status, ActionDeliver)
		if err != nil {
			return err
		}
		if so.DeliveryDocumentID != "" {
			return &IllegalTransitionError{Kind: documents.KindSupplierOrder, From: so.Status, Action: ActionDeliver}
		}
		if input.Type != "" && !input.Type.Valid() {
			verr := &shared.ValidationError{Subject: "delivery document"}
			verr.Add("type", "must be commercial_invoice, delivery_order or both")
			return verr
		}

		var customer documents.Party
		if so.POID != "" {
			po, err := getTyped[documents.PurchaseOrder](ctx, tx, documents.KindPurchaseOrder, so.POID)
			if err != nil {
				return err
			}
			customer = po.Customer
		}
		items := input.Items
		if len(items) == 0 {
			items = so.Items
		}
		vat := s.defaults.VATRate
		if input.VATRate != nil {
			vat = *input.VATRate
		}
		doc := documents.DeliveryDocument{
			ID:              s.newID(),
			Number:          defaultString(input.Number, generateNumber("DD", now)),
			Date:            defaultTime(input.Date, now),
			Type:            input.Type,
			Customer:        customer,
			Items:           items,
			Currency:        so.Currency,
			VATRate:         vat,
			Status:          documents.DeliveryStatusDraft,
			POID:            so.POID,
			SupplierOrderID: so.ID,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if doc.Type == "" {
			doc.Type = documents.DeliveryTypeCommercialInvoice
		}
		doc = doc.ApplyTotals()
		if err := createDoc(ctx, tx, doc, now); err != nil {
			return err
		}
		if _, err := tx.Update(ctx, documents.KindSupplierOrder, so.ID, store.Patch{
			"deliveryDocumentId": doc.ID,
			"status":             to,
			"updatedAt":          now,
		}); err != nil {
			return err
		}
		created = doc
		return nil
	})
	if err != nil {
		return View{}, shared.Persistence("receive delivery", err)
	}
	s.recordAudit(ctx, "CREATE", created, map[string]any{"supplierOrderId": supplierOrderID})
	return s.view(created, now), nil
}

func (s *Service) newPurchaseOrder(input PurchaseOrderInput, customer documents.Party, sourceItems []documents.LineItem, currency string, now time.Time) (documents.PurchaseOrder, error) {
	issue := defaultTime(input.IssueDate, now)
	verr := &shared.ValidationError{Subject: "purchase order"}
	if input.ExpiryDate.IsZero() {
		verr.Add("expiryDate", "required")
	} else if input.ExpiryDate.Before(issue) {
		verr.Add("expiryDate", "before issueDate")
	}
	if err := verr.Err(); err != nil {
		return documents.PurchaseOrder{}, err
	}
	items := input.Items
	if len(items) == 0 {
		items = sourceItems
	}
	po := documents.PurchaseOrder{
		ID:         s.newID(),
		Number:     defaultString(input.Number, generateNumber("PO", now)),
		IssueDate:  issue,
		ExpiryDate: input.ExpiryDate,
		Customer:   customer,
		Items:      stripItemStatus(documents.RecomputeItems(items)),
		Currency:   defaultString(input.Currency, defaultString(currency, s.defaults.Currency)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	po.Total = documents.SumItems(po.Items)
	return po, nil
}

func createDoc(ctx context.Context, tx store.Tx, doc documents.Record, now time.Time) error {
	rec, err := store.Encode(doc, now, now)
	if err != nil {
		return err
	}
	return tx.Create(ctx, rec)
}

// priceItems uses the supplied priced lines, or the source lines when none were given.
func priceItems(priced, source []documents.LineItem) []documents.LineItem {
	if len(priced) == 0 {
		priced = source
	}
	return stripItemStatus(documents.RecomputeItems(priced))
}

func stripItemStatus(items []documents.LineItem) []documents.LineItem {
	for i := range items {
		items[i].Status = ""
	}
	return items
}

func validateDates(subject, field string, start, end time.Time) error {
	if end.Before(start) {
		verr := &shared.ValidationError{Subject: subject}
		verr.Add(field, "before issue date")
		return verr
	}
	return nil
}
