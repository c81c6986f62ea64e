package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tradedesk/tradedesk/internal/documents"
)

// Encode wraps a document into a storable record.
func Encode(doc documents.Record, createdAt, updatedAt time.Time) (Record, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return Record{}, fmt.Errorf("store: encode %s: %w", doc.RecordKind(), err)
	}
	return Record{
		Kind:      doc.RecordKind(),
		ID:        doc.RecordID(),
		Number:    doc.RecordNumber(),
		Data:      data,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// Decode unmarshals a stored payload into T.
func Decode[T any](rec Record) (T, error) {
	var out T
	if err := json.Unmarshal(rec.Data, &out); err != nil {
		return out, fmt.Errorf("store: decode %s %s: %w", rec.Kind, rec.ID, err)
	}
	return out, nil
}

// merge applies patch over data at the top level, the same way jsonb || does.
func merge(data json.RawMessage, patch Patch) (json.RawMessage, error) {
	doc := map[string]json.RawMessage{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	}
	for k, v := range patch {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		doc[k] = raw
	}
	return json.Marshal(doc)
}

func patchNumber(patch Patch) (string, bool) {
	v, ok := patch["number"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
