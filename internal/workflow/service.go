package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradedesk/tradedesk/internal/documents"
	"github.com/tradedesk/tradedesk/internal/shared"
	"github.com/tradedesk/tradedesk/internal/store"
)

// Invalidator is told when stored purchase orders change.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// AuditPort records who changed what.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Defaults fills values the caller left empty.
type Defaults struct {
	Currency          string
	VATRate           decimal.Decimal
	QuotationValidity time.Duration
}

// Service orchestrates workflow steps over the persistence gateway.
type Service struct {
	store    store.Gateway
	defaults Defaults
	forecast Invalidator
	audit    AuditPort
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// NewService constructs the workflow service. forecast and audit may be nil.
func NewService(gw store.Gateway, defaults Defaults, forecast Invalidator, audit AuditPort, logger *slog.Logger) *Service {
	if defaults.Currency == "" {
		defaults.Currency = "AED"
	}
	if defaults.QuotationValidity <= 0 {
		defaults.QuotationValidity = 30 * 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    gw,
		defaults: defaults,
		forecast: forecast,
		audit:    audit,
		logger:   logger,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
}

// WithClock overrides the service clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create stores a new document, assigning id, timestamps, initial status and recomputed totals.
// Link fields are owned by the conversions and must be empty.
func (s *Service) Create(ctx context.Context, doc documents.Record) (View, error) {
	now := s.now().UTC()
	prepared, err := s.prepare(doc, now)
	if err != nil {
		return View{}, err
	}
	rec, err := store.Encode(prepared, now, now)
	if err != nil {
		return View{}, err
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return View{}, shared.Persistence("create", err)
	}
	if prepared.RecordKind() == documents.KindPurchaseOrder {
		s.bumpForecast(ctx)
	}
	s.recordAudit(ctx, "CREATE", prepared, map[string]any{"number": prepared.RecordNumber()})
	return s.view(prepared, now), nil
}

// Get reads a document with its derived status.
func (s *Service) Get(ctx context.Context, kind documents.Kind, id string) (View, error) {
	rec, err := s.store.Get(ctx, kind, id)
	if err != nil {
		return View{}, shared.Persistence("get", err)
	}
	doc, err := decode(rec)
	if err != nil {
		return View{}, err
	}
	return s.view(doc, s.now()), nil
}

// Delete removes a document. Links held by other documents are left as they are.
func (s *Service) Delete(ctx context.Context, kind documents.Kind, id string) error {
	if err := s.store.Delete(ctx, kind, id); err != nil {
		return shared.Persistence("delete", err)
	}
	if kind == documents.KindPurchaseOrder {
		s.bumpForecast(ctx)
	}
	s.recordAuditEntry(ctx, "DELETE", kind, id, nil)
	return nil
}

// Apply performs a plain status transition. Steps that create a downstream document must
// go through their conversion instead.
func (s *Service) Apply(ctx context.Context, kind documents.Kind, id string, action Action) (View, error) {
	if conv, ok := conversionOwned[edgeKey{kind, action}]; ok {
		return View{}, fmt.Errorf("%w: %s %s is performed by %s", shared.ErrIllegalTransition, kind, action, conv)
	}
	var out documents.Record
	now := s.now().UTC()
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		rec, err := tx.Get(ctx, kind, id)
		if err != nil {
			return err
		}
		doc, err := decode(rec)
		if err != nil {
			return err
		}
		to, err := Transition(kind, effectiveStatus(doc, now), action)
		if err != nil {
			return err
		}
		updated, err := tx.Update(ctx, kind, id, store.Patch{"status": to, "updatedAt": now})
		if err != nil {
			return err
		}
		out, err = decode(updated)
		return err
	})
	if err != nil {
		return View{}, shared.Persistence("apply", err)
	}
	s.recordAudit(ctx, "TRANSITION", out, map[string]any{"action": string(action), "status": string(effectiveStatus(out, now))})
	return s.view(out, now), nil
}

type edgeKey struct {
	kind   documents.Kind
	action Action
}

var conversionOwned = map[edgeKey]string{
	{documents.KindInquiry, ActionQuote}:         "ConvertInquiryToQuotation",
	{documents.KindInquiry, ActionConvert}:       "ConvertInquiryToPurchaseOrder",
	{documents.KindQuotation, ActionAccept}:      "AcceptQuotation",
	{documents.KindSupplierOrder, ActionDeliver}: "ReceiveDelivery",
}

// SetInquiryItemStatus marks one inquiry line as pending or quoted. The inquiry status is not touched.
func (s *Service) SetInquiryItemStatus(ctx context.Context, inquiryID string, index int, status documents.ItemStatus) (View, error) {
	if !status.Valid() {
		verr := &shared.ValidationError{Subject: "inquiry item"}
		verr.Add("status", "must be pending or quoted")
		return View{}, verr
	}
	var out documents.CustomerInquiry
	now := s.now().UTC()
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		inquiry, err := getTyped[documents.CustomerInquiry](ctx, tx, documents.KindInquiry, inquiryID)
		if err != nil {
			return err
		}
		if index < 0 || index >= len(inquiry.Items) {
			verr := &shared.ValidationError{Subject: "inquiry item"}
			verr.Add(fmt.Sprintf("items[%d]", index), "no such item")
			return verr
		}
		items := append([]documents.LineItem(nil), inquiry.Items...)
		items[index].Status = status
		updated, err := tx.Update(ctx, documents.KindInquiry, inquiryID, store.Patch{"items": items, "updatedAt": now})
		if err != nil {
			return err
		}
		out, err = store.Decode[documents.CustomerInquiry](updated)
		return err
	})
	if err != nil {
		return View{}, shared.Persistence("set item status", err)
	}
	return s.view(out, now), nil
}

func (s *Service) prepare(doc documents.Record, now time.Time) (documents.Record, error) {
	verr := &shared.ValidationError{Subject: string(doc.RecordKind())}
	if doc.RecordNumber() == "" {
		verr.Add("number", "required")
	}
	linkSet := func(field, value string) {
		if value != "" {
			verr.Add(field, "set by conversion only")
		}
	}
	var out documents.Record
	switch d := doc.(type) {
	case documents.PurchaseOrder:
		linkSet("inquiryId", d.InquiryID)
		linkSet("quotationId", d.QuotationID)
		if len(d.SupplierOrderIDs) > 0 {
			verr.Add("supplierOrderIds", "set by conversion only")
		}
		if d.ExpiryDate.IsZero() {
			verr.Add("expiryDate", "required")
		}
		d.ID = s.idOr(d.ID)
		d.Currency = defaultString(d.Currency, s.defaults.Currency)
		d.Items = documents.RecomputeItems(d.Items)
		d.Total = documents.SumItems(d.Items)
		d.CreatedAt, d.UpdatedAt = now, now
		out = d
	case documents.CustomerInquiry:
		linkSet("quotationId", d.QuotationID)
		linkSet("poId", d.POID)
		if d.Status != "" && d.Status != documents.InquiryStatusPending {
			verr.Add("status", "new inquiries start pending")
		}
		d.ID = s.idOr(d.ID)
		d.Status = documents.InquiryStatusPending
		d.Items = documents.RecomputeItems(d.Items)
		for i := range d.Items {
			if d.Items[i].Status == "" {
				d.Items[i].Status = documents.ItemStatusPending
			}
		}
		d.CreatedAt, d.UpdatedAt = now, now
		out = d
	case documents.Quotation:
		linkSet("inquiryId", d.InquiryID)
		linkSet("poId", d.POID)
		if d.Status != "" && d.Status != documents.QuotationStatusDraft {
			verr.Add("status", "new quotations start as draft")
		}
		d.ID = s.idOr(d.ID)
		d.Status = documents.QuotationStatusDraft
		d.Currency = defaultString(d.Currency, s.defaults.Currency)
		if d.IssueDate.IsZero() {
			d.IssueDate = now
		}
		if d.ValidityDate.IsZero() {
			d.ValidityDate = d.IssueDate.Add(s.defaults.QuotationValidity)
		}
		d.Items = documents.RecomputeItems(d.Items)
		d.Total = documents.SumItems(d.Items)
		d.CreatedAt, d.UpdatedAt = now, now
		out = d
	case documents.SupplierOrder:
		linkSet("poId", d.POID)
		linkSet("deliveryDocumentId", d.DeliveryDocumentID)
		if d.Status != "" && d.Status != documents.SupplierOrderStatusPending {
			verr.Add("status", "new supplier orders start pending")
		}
		d.ID = s.idOr(d.ID)
		d.Status = documents.SupplierOrderStatusPending
		d.Currency = defaultString(d.Currency, s.defaults.Currency)
		d.Items = documents.RecomputeItems(d.Items)
		d.Total = documents.SumItems(d.Items)
		d.CreatedAt, d.UpdatedAt = now, now
		out = d
	case documents.DeliveryDocument:
		linkSet("poId", d.POID)
		linkSet("supplierOrderId", d.SupplierOrderID)
		if d.Status != "" && d.Status != documents.DeliveryStatusDraft {
			verr.Add("status", "new delivery documents start as draft")
		}
		d.ID = s.idOr(d.ID)
		d.Status = documents.DeliveryStatusDraft
		d.Currency = defaultString(d.Currency, s.defaults.Currency)
		if d.Type == "" {
			d.Type = documents.DeliveryTypeCommercialInvoice
		}
		d = d.ApplyTotals()
		d.CreatedAt, d.UpdatedAt = now, now
		out = d
	default:
		return nil, fmt.Errorf("%w: unsupported document %T", shared.ErrValidation, doc)
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) idOr(id string) string {
	if id != "" {
		return id
	}
	return s.newID()
}

func (s *Service) bumpForecast(ctx context.Context) {
	if s.forecast == nil {
		return
	}
	if err := s.forecast.Bump(ctx); err != nil {
		s.logger.WarnContext(ctx, "forecast cache bump failed", slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, action string, doc documents.Record, meta map[string]any) {
	if doc == nil {
		return
	}
	s.recordAuditEntry(ctx, action, doc.RecordKind(), doc.RecordID(), meta)
}

func (s *Service) recordAuditEntry(ctx context.Context, action string, kind documents.Kind, id string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: string(kind), EntityID: id, Meta: meta}); err != nil {
		s.logger.WarnContext(ctx, "audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func generateNumber(prefix string, now time.Time) string {
	return fmt.Sprintf("%s-%d", prefix, now.UnixNano())
}

func defaultString(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func defaultTime(value time.Time, fallback time.Time) time.Time {
	if value.IsZero() {
		return fallback
	}
	return value
}
