// Package extraction turns model-extracted JSON into typed business documents.
package extraction

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradedesk/tradedesk/internal/documents"
	"github.com/tradedesk/tradedesk/internal/shared"
)

// Correction records a supplied value that was replaced by the recomputed one.
type Correction struct {
	Field      string `json:"field"`
	Supplied   string `json:"supplied"`
	Recomputed string `json:"recomputed"`
}

// CurrencySource tells where the document currency came from.
type CurrencySource string

const (
	CurrencyExplicit CurrencySource = "explicit"
	CurrencyInferred CurrencySource = "inferred"
	CurrencyFallback CurrencySource = "fallback"
)

// Result is a normalized document.
type Result struct {
	Kind           documents.Kind   `json:"kind"`
	Record         documents.Record `json:"record"`
	Currency       string           `json:"currency"`
	CurrencySource CurrencySource   `json:"currencySource"`
	Corrections    []Correction     `json:"corrections,omitempty"`
}

// Normalizer validates and repairs raw extractions. It has no side effects.
type Normalizer struct {
	FallbackCurrency string
	DefaultVATRate   decimal.Decimal
}

// NewNormalizer returns a normalizer with the given fallbacks.
func NewNormalizer(fallbackCurrency string, vatRate decimal.Decimal) Normalizer {
	return Normalizer{FallbackCurrency: fallbackCurrency, DefaultVATRate: vatRate}
}

// Normalize builds a typed record of kind from raw. rawText is optional source text used for
// currency inference together with every string in raw. All problems are reported together
// in a *shared.ValidationError.
func (n Normalizer) Normalize(kind documents.Kind, raw map[string]any, rawText string) (Result, error) {
	l, ok := layouts[kind]
	if !ok {
		verr := &shared.ValidationError{Subject: "extraction"}
		verr.Add("schema", fmt.Sprintf("unknown schema tag %q", kind))
		return Result{}, verr
	}
	r := &reader{raw: raw, verr: &shared.ValidationError{Subject: string(kind)}}

	number := r.requiredString(l.number)
	date := r.date(l.date, true)
	party := r.party(l.party)
	var end time.Time
	if l.end != nil {
		end = r.date(*l.end, l.endRequired)
	}
	items := r.items(l.pricedItems)
	curr, source := n.currency(r, rawText)

	res := Result{Kind: kind, Currency: curr, CurrencySource: source}
	total := documents.SumItems(items)
	if l.totals {
		r.compareTotal(fieldTotal, total)
	}

	switch kind {
	case documents.KindPurchaseOrder:
		res.Record = documents.PurchaseOrder{
			Number: number, IssueDate: date, ExpiryDate: end, Customer: party,
			Items: items, Currency: curr, Total: total,
		}
	case documents.KindInquiry:
		for i := range items {
			items[i].Status = documents.ItemStatusPending
		}
		res.Record = documents.CustomerInquiry{
			Number: number, Date: date, Customer: party, Items: items,
			Status: documents.InquiryStatusPending,
		}
	case documents.KindQuotation:
		res.Record = documents.Quotation{
			Number: number, IssueDate: date, ValidityDate: end, Customer: party,
			Items: items, Currency: curr, Total: total, Status: documents.QuotationStatusDraft,
		}
	case documents.KindSupplierOrder:
		so := documents.SupplierOrder{
			Number: number, OrderDate: date, Supplier: party,
			Items: items, Currency: curr, Total: total, Status: documents.SupplierOrderStatusPending,
		}
		if !end.IsZero() {
			so.ExpectedDeliveryDate = &end
		}
		res.Record = so
	case documents.KindDeliveryDocument:
		res.Record = n.deliveryDocument(r, number, date, party, items, curr)
	}

	if err := r.verr.Err(); err != nil {
		return Result{}, err
	}
	res.Corrections = r.corrections
	return res, nil
}

func (n Normalizer) deliveryDocument(r *reader, number string, date time.Time, party documents.Party, items []documents.LineItem, curr string) documents.DeliveryDocument {
	docType := documents.DeliveryTypeCommercialInvoice
	if v, key, ok := r.lookup(fieldDocumentType); ok {
		t := documents.DeliveryType(strings.ToLower(strings.TrimSpace(describe(v))))
		if t.Valid() {
			docType = t
		} else {
			r.verr.Add(key, "must be commercial_invoice, delivery_order or both")
		}
	}
	vat := n.DefaultVATRate
	if v, key, ok := r.lookup(fieldVATRate); ok {
		d, err := parseDecimal(v)
		if err != nil || d.IsNegative() {
			r.verr.Add(key, "must be a non-negative percentage")
		} else {
			vat = d
		}
	}
	doc := documents.DeliveryDocument{
		Number: number, Date: date, Type: docType, Customer: party, Items: items,
		Currency: curr, VATRate: vat, Status: documents.DeliveryStatusDraft,
	}.ApplyTotals()
	r.compareTotal(fieldSubtotal, doc.Subtotal)
	r.compareTotal(fieldVATAmount, doc.VATAmount)
	r.compareTotal(fieldTotal, doc.Total)
	return doc
}

func (n Normalizer) currency(r *reader, rawText string) (string, CurrencySource) {
	if v, key, ok := r.lookup(fieldCurrency); ok {
		code, err := normalizeCurrency(v)
		if err == nil {
			return code, CurrencyExplicit
		}
		r.verr.Add(key, err.Error())
		return "", CurrencyExplicit
	}
	var sb strings.Builder
	sb.WriteString(rawText)
	sb.WriteByte('\n')
	collectText(r.raw, &sb)
	if code, ok := inferCurrency(sb.String()); ok {
		return code, CurrencyInferred
	}
	fallback := n.FallbackCurrency
	if fallback == "" {
		fallback = "AED"
	}
	return fallback, CurrencyFallback
}

// reader looks fields up by alias and collects problems under canonical keys.
type reader struct {
	raw         map[string]any
	verr        *shared.ValidationError
	corrections []Correction
}

// lookup returns the first present, non-empty alias and the canonical key it is reported under.
func (r *reader) lookup(f field) (any, string, bool) {
	return lookupIn(r.raw, f)
}

func lookupIn(m map[string]any, f field) (any, string, bool) {
	for _, k := range f.keys() {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return v, f.key, true
	}
	return nil, f.key, false
}

func (r *reader) requiredString(f field) string {
	v, key, ok := r.lookup(f)
	if !ok {
		r.verr.Add(key, "required")
		return ""
	}
	return strings.TrimSpace(describe(v))
}

func (r *reader) date(f field, required bool) time.Time {
	v, key, ok := r.lookup(f)
	if !ok {
		if required {
			r.verr.Add(key, "required")
		}
		return time.Time{}
	}
	t, err := parseDate(v)
	if err != nil {
		r.verr.Add(key, fmt.Sprintf("unparsable date %q", describe(v)))
		return time.Time{}
	}
	return t
}

// party reads prefixName/prefixEmail/... or a nested {"prefix": {"name": ...}} object.
func (r *reader) party(prefix string) documents.Party {
	name, email, phone, address, taxID := partyFields(prefix)
	src := r.raw
	if nested, ok := r.raw[prefix].(map[string]any); ok {
		src = nested
		name = field{name.key, []string{"name", "companyName"}}
		email.aliases = []string{"email"}
		phone.aliases = []string{"phone", "telephone"}
		address.aliases = []string{"address"}
		taxID.aliases = []string{"trn", "taxId", "vatNumber"}
	}
	get := func(f field) string {
		v, _, ok := lookupIn(src, f)
		if !ok {
			return ""
		}
		return strings.TrimSpace(describe(v))
	}
	p := documents.Party{Name: get(name), Email: get(email), Phone: get(phone), Address: get(address), TaxID: get(taxID)}
	if p.Name == "" {
		r.verr.Add(name.key, "required")
	}
	return p
}

func (r *reader) items(priced bool) []documents.LineItem {
	v, key, ok := r.lookup(fieldItems)
	if !ok {
		r.verr.Add(key, "at least one item required")
		return nil
	}
	list, isList := v.([]any)
	if !isList || len(list) == 0 {
		r.verr.Add(key, "at least one item required")
		return nil
	}
	out := make([]documents.LineItem, 0, len(list))
	for i, entry := range list {
		prefix := fmt.Sprintf("%s[%d]", key, i)
		m, isMap := entry.(map[string]any)
		if !isMap {
			r.verr.Add(prefix, "must be an object")
			continue
		}
		out = append(out, r.item(prefix, m, priced))
	}
	return out
}

func (r *reader) item(prefix string, m map[string]any, priced bool) documents.LineItem {
	str := func(f field) string {
		v, _, ok := lookupIn(m, f)
		if !ok {
			return ""
		}
		return strings.TrimSpace(describe(v))
	}
	item := documents.LineItem{Name: str(itemName), Code: str(itemCode), Unit: str(itemUnit)}
	if item.Name == "" {
		r.verr.Add(prefix+".name", "required")
	}

	if v, key, ok := lookupIn(m, itemQuantity); !ok {
		r.verr.Add(prefix+"."+key, "required")
	} else if q, err := parseDecimal(v); err != nil {
		r.verr.Add(prefix+"."+key, err.Error())
	} else if !q.IsPositive() {
		r.verr.Add(prefix+"."+key, "must be greater than zero")
	} else {
		item.Quantity = q
	}

	switch v, key, ok := lookupIn(m, itemUnitPrice); {
	case !ok && priced:
		r.verr.Add(prefix+"."+key, "required")
	case !ok:
		item.UnitPrice = decimal.Zero
	default:
		p, err := parseDecimal(v)
		switch {
		case err != nil:
			r.verr.Add(prefix+"."+key, err.Error())
		case p.IsNegative():
			r.verr.Add(prefix+"."+key, "must not be negative")
		default:
			item.UnitPrice = p
		}
	}

	item = item.WithTotal()
	if v, key, ok := lookupIn(m, itemTotal); ok {
		supplied, err := parseDecimal(v)
		if err != nil || !supplied.Equal(item.Total) {
			r.corrections = append(r.corrections, Correction{
				Field: prefix + "." + key, Supplied: describe(v), Recomputed: item.Total.String(),
			})
		}
	}
	return item
}

// compareTotal notes a document-level supplied amount that differs from the recomputed one.
func (r *reader) compareTotal(f field, recomputed decimal.Decimal) {
	v, key, ok := r.lookup(f)
	if !ok {
		return
	}
	supplied, err := parseDecimal(v)
	if err == nil && supplied.Equal(recomputed) {
		return
	}
	r.corrections = append(r.corrections, Correction{Field: key, Supplied: describe(v), Recomputed: recomputed.String()})
}
