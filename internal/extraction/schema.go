package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tradedesk/tradedesk/internal/documents"
)

var (
	stringProp = map[string]any{"type": "string"}
	amountProp = map[string]any{"type": []any{"number", "string", "null"}}
	// models sometimes answer numeric identifiers unquoted
	identProp = map[string]any{"type": []any{"string", "number"}}
)

// JSONSchema describes the answer expected from the model for kind. It only constrains
// types; required fields are enforced by the Normalizer so that every gap is reported.
func JSONSchema(kind documents.Kind) (map[string]any, error) {
	l, ok := layouts[kind]
	if !ok {
		return nil, fmt.Errorf("extraction: unknown schema tag %q", kind)
	}
	props := map[string]any{
		l.number.key:      identProp,
		l.date.key:        stringProp,
		fieldCurrency.key: stringProp,
	}
	name, email, phone, address, taxID := partyFields(l.party)
	for _, f := range []field{name, email, address} {
		props[f.key] = stringProp
	}
	props[phone.key] = identProp
	props[taxID.key] = identProp
	if l.end != nil {
		props[l.end.key] = stringProp
	}
	if l.totals {
		props[fieldTotal.key] = amountProp
	}
	if kind == documents.KindDeliveryDocument {
		props[fieldDocumentType.key] = map[string]any{
			"type": "string",
			"enum": []any{"commercial_invoice", "delivery_order", "both"},
		}
		props[fieldVATRate.key] = amountProp
		props[fieldSubtotal.key] = amountProp
		props[fieldVATAmount.key] = amountProp
		props[fieldTotal.key] = amountProp
	}
	props[fieldItems.key] = map[string]any{
		"type": "array",
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				itemName.key:      stringProp,
				itemCode.key:      identProp,
				itemUnit.key:      stringProp,
				itemQuantity.key:  amountProp,
				itemUnitPrice.key: amountProp,
				itemTotal.key:     amountProp,
			},
		},
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
	}, nil
}

// Label is the human description of kind used in prompts.
func Label(kind documents.Kind) string {
	return layouts[kind].label
}

// ScreenJSON checks that data is a JSON object whose values have the types JSONSchema allows.
func ScreenJSON(kind documents.Kind, data []byte) (map[string]any, error) {
	schemaMap, err := JSONSchema(kind)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("json does not match schema: %w", err)
	}
	out, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("json does not match schema: not an object")
	}
	return out, nil
}
