package extraction

import "github.com/tradedesk/tradedesk/internal/documents"

// field is a canonical key plus the alternative spellings models tend to produce.
type field struct {
	key     string
	aliases []string
}

func (f field) keys() []string {
	return append([]string{f.key}, f.aliases...)
}

// layout describes where a document kind keeps its header fields.
type layout struct {
	label       string
	number      field
	date        field
	party       string
	end         *field
	endRequired bool
	pricedItems bool
	totals      bool
}

var (
	fieldCurrency     = field{"currency", []string{"currencyCode"}}
	fieldItems        = field{"items", []string{"lineItems", "products", "materials"}}
	fieldTotal        = field{"totalAmount", []string{"total", "grandTotal"}}
	fieldSubtotal     = field{"subtotal", []string{"subTotal", "netAmount"}}
	fieldVATRate      = field{"vatRate", []string{"vatPercent", "taxRate", "vat"}}
	fieldVATAmount    = field{"vatAmount", []string{"taxAmount"}}
	fieldDocumentType = field{"documentType", []string{"type", "deliveryDocumentType"}}

	itemName      = field{"name", []string{"description", "itemName", "product", "material"}}
	itemCode      = field{"code", []string{"itemCode", "materialCode", "sku", "partNumber"}}
	itemUnit      = field{"unit", []string{"uom", "unitOfMeasure"}}
	itemQuantity  = field{"quantity", []string{"qty"}}
	itemUnitPrice = field{"unitPrice", []string{"price", "rate"}}
	itemTotal     = field{"total", []string{"amount", "lineTotal"}}
)

var layouts = map[documents.Kind]layout{
	documents.KindPurchaseOrder: {
		label:       "customer purchase order",
		number:      field{"poNumber", []string{"purchaseOrderNumber", "documentNumber", "number"}},
		date:        field{"issueDate", []string{"poDate", "orderDate", "date"}},
		party:       "customer",
		end:         &field{"expiryDate", []string{"validUntil", "expiry", "deliveryDeadline"}},
		endRequired: true,
		pricedItems: true,
		totals:      true,
	},
	documents.KindInquiry: {
		label:  "customer inquiry or request for quotation",
		number: field{"inquiryNumber", []string{"rfqNumber", "enquiryNumber", "documentNumber", "number"}},
		date:   field{"inquiryDate", []string{"rfqDate", "date"}},
		party:  "customer",
	},
	documents.KindQuotation: {
		label:       "quotation",
		number:      field{"quotationNumber", []string{"quoteNumber", "documentNumber", "number"}},
		date:        field{"issueDate", []string{"quotationDate", "date"}},
		party:       "customer",
		end:         &field{"validityDate", []string{"validUntil", "expiryDate"}},
		endRequired: true,
		pricedItems: true,
		totals:      true,
	},
	documents.KindSupplierOrder: {
		label:       "purchase order sent to a supplier",
		number:      field{"orderNumber", []string{"supplierOrderNumber", "poNumber", "documentNumber", "number"}},
		date:        field{"orderDate", []string{"date"}},
		party:       "supplier",
		end:         &field{"expectedDeliveryDate", []string{"deliveryDate", "expectedDelivery"}},
		pricedItems: true,
		totals:      true,
	},
	documents.KindDeliveryDocument: {
		label:       "commercial invoice or delivery order",
		number:      field{"documentNumber", []string{"invoiceNumber", "deliveryOrderNumber", "number"}},
		date:        field{"documentDate", []string{"invoiceDate", "date"}},
		party:       "customer",
		pricedItems: true,
	},
}

// partyFields returns the flat keys of a party, e.g. customerName.
func partyFields(prefix string) (name, email, phone, address, taxID field) {
	name = field{prefix + "Name", []string{prefix}}
	email = field{prefix + "Email", nil}
	phone = field{prefix + "Phone", nil}
	address = field{prefix + "Address", nil}
	taxID = field{prefix + "Trn", []string{prefix + "TaxId", prefix + "VatNumber"}}
	return name, email, phone, address, taxID
}
