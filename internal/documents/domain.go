// Package documents defines the business records that flow through intake and the workflow.
package documents

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies a record family in storage and in the workflow tables.
type Kind string

const (
	KindPurchaseOrder    Kind = "purchase_order"
	KindInquiry          Kind = "inquiry"
	KindQuotation        Kind = "quotation"
	KindSupplierOrder    Kind = "supplier_order"
	KindDeliveryDocument Kind = "delivery_document"
)

// Kinds lists every record family.
var Kinds = []Kind{KindPurchaseOrder, KindInquiry, KindQuotation, KindSupplierOrder, KindDeliveryDocument}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindPurchaseOrder, KindInquiry, KindQuotation, KindSupplierOrder, KindDeliveryDocument:
		return true
	default:
		return false
	}
}

// Status is a lifecycle state. Each kind uses its own subset.
type Status string

const (
	POStatusActive       Status = "active"
	POStatusExpiringSoon Status = "expiring_soon"
	POStatusExpired      Status = "expired"

	InquiryStatusPending   Status = "pending"
	InquiryStatusReviewed  Status = "reviewed"
	InquiryStatusQuoted    Status = "quoted"
	InquiryStatusConverted Status = "converted"

	QuotationStatusDraft    Status = "draft"
	QuotationStatusSent     Status = "sent"
	QuotationStatusAccepted Status = "accepted"
	QuotationStatusRejected Status = "rejected"
	QuotationStatusExpired  Status = "expired"

	SupplierOrderStatusPending   Status = "pending"
	SupplierOrderStatusConfirmed Status = "confirmed"
	SupplierOrderStatusInTransit Status = "in_transit"
	SupplierOrderStatusDelivered Status = "delivered"
	SupplierOrderStatusCancelled Status = "cancelled"

	DeliveryStatusDraft     Status = "draft"
	DeliveryStatusGenerated Status = "generated"
	DeliveryStatusSent      Status = "sent"
)

// ItemStatus tracks pricing progress of a single inquiry line.
type ItemStatus string

const (
	ItemStatusPending ItemStatus = "pending"
	ItemStatusQuoted  ItemStatus = "quoted"
)

// Valid reports whether s is a known item status.
func (s ItemStatus) Valid() bool {
	return s == ItemStatusPending || s == ItemStatusQuoted
}

// DeliveryType distinguishes the paperwork issued on shipment.
type DeliveryType string

const (
	DeliveryTypeCommercialInvoice DeliveryType = "commercial_invoice"
	DeliveryTypeDeliveryOrder     DeliveryType = "delivery_order"
	DeliveryTypeBoth              DeliveryType = "both"
)

// Valid reports whether t is a known delivery document type.
func (t DeliveryType) Valid() bool {
	switch t {
	case DeliveryTypeCommercialInvoice, DeliveryTypeDeliveryOrder, DeliveryTypeBoth:
		return true
	default:
		return false
	}
}

// ExpiringSoonWindow is how close to its end date a PO or quotation reads as expiring soon.
const ExpiringSoonWindow = 7 * 24 * time.Hour

// Record is implemented by every stored business document.
type Record interface {
	RecordKind() Kind
	RecordID() string
	RecordNumber() string
}

// Party identifies a customer or supplier.
type Party struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	TaxID   string `json:"taxId,omitempty"`
}

// LineItem is one priced line of a document.
type LineItem struct {
	Name      string          `json:"name"`
	Code      string          `json:"code,omitempty"`
	Unit      string          `json:"unit,omitempty"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Total     decimal.Decimal `json:"total"`
	Status    ItemStatus      `json:"status,omitempty"`
}

// WithTotal returns the line with Total recomputed from quantity and unit price.
func (l LineItem) WithTotal() LineItem {
	l.Total = l.Quantity.Mul(l.UnitPrice)
	return l
}

// RecomputeItems returns a copy of items with every total recomputed.
func RecomputeItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	for i, item := range items {
		out[i] = item.WithTotal()
	}
	return out
}

// SumItems adds up line totals.
func SumItems(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Total)
	}
	return sum
}

// PurchaseOrder is a customer commitment to buy. Its status is derived from ExpiryDate.
type PurchaseOrder struct {
	ID               string          `json:"id"`
	Number           string          `json:"number"`
	IssueDate        time.Time       `json:"issueDate"`
	ExpiryDate       time.Time       `json:"expiryDate"`
	Customer         Party           `json:"customer"`
	Items            []LineItem      `json:"items"`
	Currency         string          `json:"currency"`
	Total            decimal.Decimal `json:"total"`
	InquiryID        string          `json:"inquiryId,omitempty"`
	QuotationID      string          `json:"quotationId,omitempty"`
	SupplierOrderIDs []string        `json:"supplierOrderIds,omitempty"`
	SourceFile       string          `json:"sourceFile,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

func (po PurchaseOrder) RecordKind() Kind     { return KindPurchaseOrder }
func (po PurchaseOrder) RecordID() string     { return po.ID }
func (po PurchaseOrder) RecordNumber() string { return po.Number }

// Status derives active, expiring_soon or expired from the expiry date at now.
func (po PurchaseOrder) Status(now time.Time) Status {
	switch {
	case isPast(po.ExpiryDate, now):
		return POStatusExpired
	case isWithinWindow(po.ExpiryDate, now):
		return POStatusExpiringSoon
	default:
		return POStatusActive
	}
}

// DaysUntilExpiry counts whole days left; negative once expired.
func (po PurchaseOrder) DaysUntilExpiry(now time.Time) int {
	return int(validThrough(po.ExpiryDate).Sub(now).Hours() / 24)
}

// CustomerInquiry is a request for pricing preceding a quotation.
type CustomerInquiry struct {
	ID          string     `json:"id"`
	Number      string     `json:"number"`
	Date        time.Time  `json:"date"`
	Customer    Party      `json:"customer"`
	Items       []LineItem `json:"items"`
	Status      Status     `json:"status"`
	QuotationID string     `json:"quotationId,omitempty"`
	POID        string     `json:"poId,omitempty"`
	SourceFile  string     `json:"sourceFile,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (in CustomerInquiry) RecordKind() Kind     { return KindInquiry }
func (in CustomerInquiry) RecordID() string     { return in.ID }
func (in CustomerInquiry) RecordNumber() string { return in.Number }

// Quotation is the seller's priced answer to an inquiry.
type Quotation struct {
	ID           string          `json:"id"`
	Number       string          `json:"number"`
	IssueDate    time.Time       `json:"issueDate"`
	ValidityDate time.Time       `json:"validityDate"`
	Customer     Party           `json:"customer"`
	Items        []LineItem      `json:"items"`
	Currency     string          `json:"currency"`
	Total        decimal.Decimal `json:"total"`
	Status       Status          `json:"status"`
	InquiryID    string          `json:"inquiryId,omitempty"`
	POID         string          `json:"poId,omitempty"`
	SourceFile   string          `json:"sourceFile,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

func (q Quotation) RecordKind() Kind     { return KindQuotation }
func (q Quotation) RecordID() string     { return q.ID }
func (q Quotation) RecordNumber() string { return q.Number }

// IsExpired reports whether the validity date has passed.
func (q Quotation) IsExpired(now time.Time) bool {
	return isPast(q.ValidityDate, now)
}

// IsExpiringSoon reports whether the quotation is still valid but close to its validity date.
func (q Quotation) IsExpiringSoon(now time.Time) bool {
	return !q.IsExpired(now) && isWithinWindow(q.ValidityDate, now)
}

// EffectiveStatus is the stored status with validity applied: an open quotation past validity reads as expired.
func (q Quotation) EffectiveStatus(now time.Time) Status {
	if (q.Status == QuotationStatusDraft || q.Status == QuotationStatusSent) && q.IsExpired(now) {
		return QuotationStatusExpired
	}
	return q.Status
}

// SupplierOrder is the seller's own order placed upstream to fulfil a customer PO.
type SupplierOrder struct {
	ID                   string          `json:"id"`
	Number               string          `json:"number"`
	OrderDate            time.Time       `json:"orderDate"`
	ExpectedDeliveryDate *time.Time      `json:"expectedDeliveryDate,omitempty"`
	Supplier             Party           `json:"supplier"`
	Items                []LineItem      `json:"items"`
	Currency             string          `json:"currency"`
	Total                decimal.Decimal `json:"total"`
	Status               Status          `json:"status"`
	POID                 string          `json:"poId,omitempty"`
	DeliveryDocumentID   string          `json:"deliveryDocumentId,omitempty"`
	SourceFile           string          `json:"sourceFile,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

func (so SupplierOrder) RecordKind() Kind     { return KindSupplierOrder }
func (so SupplierOrder) RecordID() string     { return so.ID }
func (so SupplierOrder) RecordNumber() string { return so.Number }

// DeliveryDocument is the invoice and/or delivery order issued on shipment.
type DeliveryDocument struct {
	ID              string          `json:"id"`
	Number          string          `json:"number"`
	Date            time.Time       `json:"date"`
	Type            DeliveryType    `json:"type"`
	Customer        Party           `json:"customer"`
	Items           []LineItem      `json:"items"`
	Currency        string          `json:"currency"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	VATRate         decimal.Decimal `json:"vatRate"`
	VATAmount       decimal.Decimal `json:"vatAmount"`
	Total           decimal.Decimal `json:"total"`
	Status          Status          `json:"status"`
	POID            string          `json:"poId,omitempty"`
	SupplierOrderID string          `json:"supplierOrderId,omitempty"`
	SourceFile      string          `json:"sourceFile,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func (d DeliveryDocument) RecordKind() Kind     { return KindDeliveryDocument }
func (d DeliveryDocument) RecordID() string     { return d.ID }
func (d DeliveryDocument) RecordNumber() string { return d.Number }

var hundred = decimal.NewFromInt(100)

// ApplyTotals recomputes line totals, subtotal, VAT amount and total. VATRate is a percentage.
func (d DeliveryDocument) ApplyTotals() DeliveryDocument {
	d.Items = RecomputeItems(d.Items)
	d.Subtotal = SumItems(d.Items)
	d.VATAmount = d.Subtotal.Mul(d.VATRate).Div(hundred).Round(2)
	d.Total = d.Subtotal.Add(d.VATAmount)
	return d
}

// validThrough is the first instant after the end date's calendar day.
func validThrough(end time.Time) time.Time {
	y, m, d := end.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, end.Location()).AddDate(0, 0, 1)
}

func isPast(end, now time.Time) bool {
	return !now.Before(validThrough(end))
}

func isWithinWindow(end, now time.Time) bool {
	return validThrough(end).Sub(now) <= ExpiringSoonWindow
}
