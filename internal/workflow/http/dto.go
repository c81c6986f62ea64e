package workflowhttp

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradedesk/tradedesk/internal/documents"
	"github.com/tradedesk/tradedesk/internal/workflow"
)

// Date accepts "2006-01-02" or RFC3339 timestamps.
type Date struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("unparsable date %q", s)
}

func (d *Date) value() time.Time {
	if d == nil {
		return time.Time{}
	}
	return d.Time
}

func (d *Date) ptr() *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

type itemRequest struct {
	Name      string          `json:"name" validate:"required"`
	Code      string          `json:"code"`
	Unit      string          `json:"unit" validate:"max=20"`
	Quantity  decimal.Decimal `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unitPrice" validate:"gte=0"`
	Status    string          `json:"status" validate:"omitempty,oneof=pending quoted"`
}

type partyRequest struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	TaxID   string `json:"taxId"`
}

func (p partyRequest) toParty() documents.Party {
	return documents.Party{Name: p.Name, Email: p.Email, Phone: p.Phone, Address: p.Address, TaxID: p.TaxID}
}

func toItems(in []itemRequest) []documents.LineItem {
	if len(in) == 0 {
		return nil
	}
	out := make([]documents.LineItem, 0, len(in))
	for _, it := range in {
		out = append(out, documents.LineItem{
			Name:      it.Name,
			Code:      it.Code,
			Unit:      it.Unit,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Status:    documents.ItemStatus(it.Status),
		})
	}
	return out
}

type purchaseOrderRequest struct {
	Number     string        `json:"number" validate:"required"`
	IssueDate  *Date         `json:"issueDate" validate:"required"`
	ExpiryDate *Date         `json:"expiryDate" validate:"required"`
	Customer   partyRequest  `json:"customer"`
	Currency   string        `json:"currency" validate:"omitempty,len=3"`
	Items      []itemRequest `json:"items" validate:"required,min=1,dive"`
}

func (r purchaseOrderRequest) toRecord() documents.Record {
	return documents.PurchaseOrder{
		Number:     r.Number,
		IssueDate:  r.IssueDate.value(),
		ExpiryDate: r.ExpiryDate.value(),
		Customer:   r.Customer.toParty(),
		Currency:   strings.ToUpper(r.Currency),
		Items:      toItems(r.Items),
	}
}

type inquiryRequest struct {
	Number   string        `json:"number" validate:"required"`
	Date     *Date         `json:"date" validate:"required"`
	Customer partyRequest  `json:"customer"`
	Items    []itemRequest `json:"items" validate:"required,min=1,dive"`
}

func (r inquiryRequest) toRecord() documents.Record {
	return documents.CustomerInquiry{
		Number:   r.Number,
		Date:     r.Date.value(),
		Customer: r.Customer.toParty(),
		Items:    toItems(r.Items),
	}
}

type quotationRequest struct {
	Number       string        `json:"number" validate:"required"`
	IssueDate    *Date         `json:"issueDate"`
	ValidityDate *Date         `json:"validityDate"`
	Customer     partyRequest  `json:"customer"`
	Currency     string        `json:"currency" validate:"omitempty,len=3"`
	Items        []itemRequest `json:"items" validate:"required,min=1,dive"`
}

func (r quotationRequest) toRecord() documents.Record {
	return documents.Quotation{
		Number:       r.Number,
		IssueDate:    r.IssueDate.value(),
		ValidityDate: r.ValidityDate.value(),
		Customer:     r.Customer.toParty(),
		Currency:     strings.ToUpper(r.Currency),
		Items:        toItems(r.Items),
	}
}

type supplierOrderRequest struct {
	Number               string        `json:"number" validate:"required"`
	OrderDate            *Date         `json:"orderDate" validate:"required"`
	ExpectedDeliveryDate *Date         `json:"expectedDeliveryDate"`
	Supplier             partyRequest  `json:"supplier"`
	Currency             string        `json:"currency" validate:"omitempty,len=3"`
	Items                []itemRequest `json:"items" validate:"required,min=1,dive"`
}

func (r supplierOrderRequest) toRecord() documents.Record {
	return documents.SupplierOrder{
		Number:               r.Number,
		OrderDate:            r.OrderDate.value(),
		ExpectedDeliveryDate: r.ExpectedDeliveryDate.ptr(),
		Supplier:             r.Supplier.toParty(),
		Currency:             strings.ToUpper(r.Currency),
		Items:                toItems(r.Items),
	}
}

type deliveryDocumentRequest struct {
	Number   string           `json:"number" validate:"required"`
	Date     *Date            `json:"date" validate:"required"`
	Type     string           `json:"type" validate:"omitempty,oneof=commercial_invoice delivery_order both"`
	Customer partyRequest     `json:"customer"`
	Currency string           `json:"currency" validate:"omitempty,len=3"`
	VATRate  *decimal.Decimal `json:"vatRate" validate:"required,gte=0,lte=100"`
	Items    []itemRequest    `json:"items" validate:"required,min=1,dive"`
}

func (r deliveryDocumentRequest) toRecord() documents.Record {
	return documents.DeliveryDocument{
		Number:   r.Number,
		Date:     r.Date.value(),
		Type:     documents.DeliveryType(r.Type),
		Customer: r.Customer.toParty(),
		Currency: strings.ToUpper(r.Currency),
		VATRate:  *r.VATRate,
		Items:    toItems(r.Items),
	}
}

type convertQuotationRequest struct {
	Number       string        `json:"number"`
	IssueDate    *Date         `json:"issueDate"`
	ValidityDate *Date         `json:"validityDate"`
	Currency     string        `json:"currency" validate:"omitempty,len=3"`
	Items        []itemRequest `json:"items" validate:"omitempty,dive"`
}

func (r convertQuotationRequest) toInput() workflow.QuotationInput {
	return workflow.QuotationInput{
		Number:       r.Number,
		IssueDate:    r.IssueDate.value(),
		ValidityDate: r.ValidityDate.value(),
		Currency:     strings.ToUpper(r.Currency),
		Items:        toItems(r.Items),
	}
}

type convertPurchaseOrderRequest struct {
	Number     string        `json:"number"`
	IssueDate  *Date         `json:"issueDate"`
	ExpiryDate *Date         `json:"expiryDate" validate:"required"`
	Currency   string        `json:"currency" validate:"omitempty,len=3"`
	Items      []itemRequest `json:"items" validate:"omitempty,dive"`
}

func (r convertPurchaseOrderRequest) toInput() workflow.PurchaseOrderInput {
	return workflow.PurchaseOrderInput{
		Number:     r.Number,
		IssueDate:  r.IssueDate.value(),
		ExpiryDate: r.ExpiryDate.value(),
		Currency:   strings.ToUpper(r.Currency),
		Items:      toItems(r.Items),
	}
}

type placeSupplierOrderRequest struct {
	Number               string        `json:"number"`
	OrderDate            *Date         `json:"orderDate"`
	ExpectedDeliveryDate *Date         `json:"expectedDeliveryDate"`
	Supplier             partyRequest  `json:"supplier"`
	Currency             string        `json:"currency" validate:"omitempty,len=3"`
	Items                []itemRequest `json:"items" validate:"omitempty,dive"`
}

func (r placeSupplierOrderRequest) toInput() workflow.SupplierOrderInput {
	return workflow.SupplierOrderInput{
		Number:               r.Number,
		OrderDate:            r.OrderDate.value(),
		ExpectedDeliveryDate: r.ExpectedDeliveryDate.ptr(),
		Supplier:             r.Supplier.toParty(),
		Currency:             strings.ToUpper(r.Currency),
		Items:                toItems(r.Items),
	}
}

type receiveDeliveryRequest struct {
	Number  string           `json:"number"`
	Date    *Date            `json:"date"`
	Type    string           `json:"type" validate:"omitempty,oneof=commercial_invoice delivery_order both"`
	VATRate *decimal.Decimal `json:"vatRate" validate:"omitempty,gte=0,lte=100"`
	Items   []itemRequest    `json:"items" validate:"omitempty,dive"`
}

func (r receiveDeliveryRequest) toInput() workflow.DeliveryInput {
	return workflow.DeliveryInput{
		Number:  r.Number,
		Date:    r.Date.value(),
		Type:    documents.DeliveryType(r.Type),
		VATRate: r.VATRate,
		Items:   toItems(r.Items),
	}
}

type itemStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending quoted"`
}

type listQuery struct {
	Status string `validate:"omitempty,max=32"`
	Number string
	Party  string
	Limit  int `validate:"gte=0,lte=500"`
	Offset int `validate:"gte=0"`
}
