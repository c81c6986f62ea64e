// Package store persists business documents as JSON payloads keyed by kind and id.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tradedesk/tradedesk/internal/documents"
)

// Record is the stored envelope of one document.
type Record struct {
	Kind      documents.Kind
	ID        string
	Number    string
	Data      json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Filter narrows List results. Limit 0 means no limit.
type Filter struct {
	Kind         documents.Kind
	NumberPrefix string
	Limit        int
	Offset       int
}

// Patch is merged into the stored payload at the top level.
type Patch map[string]any

// Tx is the set of operations available inside and outside a transaction.
type Tx interface {
	Create(ctx context.Context, rec Record) error
	Update(ctx context.Context, kind documents.Kind, id string, patch Patch) (Record, error)
	Get(ctx context.Context, kind documents.Kind, id string) (Record, error)
	List(ctx context.Context, filter Filter) ([]Record, error)
	Delete(ctx context.Context, kind documents.Kind, id string) error
}

// Gateway is a Tx that can also open a unit of work. Either every write made through the
// Tx handed to fn is applied, or none is.
type Gateway interface {
	Tx
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
