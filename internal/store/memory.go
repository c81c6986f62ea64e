package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tradedesk/tradedesk/internal/documents"
	"github.com/tradedesk/tradedesk/internal/shared"
)

type memKey struct {
	kind documents.Kind
	id   string
}

// Memory is an in-process Gateway. Transactions work on a copy of the data that replaces the
// live map on commit, so a failed transaction leaves nothing behind.
type Memory struct {
	mu   sync.RWMutex
	rows map[memKey]Record
	now  func() time.Time
}

// NewMemory returns an empty in-memory gateway.
func NewMemory() *Memory {
	return &Memory{rows: make(map[memKey]Record), now: time.Now}
}

// WithClock overrides the clock used for update timestamps.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

// WithTx runs fn against a private snapshot and publishes it when fn succeeds.
func (m *Memory) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make(map[memKey]Record, len(m.rows))
	for k, v := range m.rows {
		snapshot[k] = v
	}
	tx := &memTx{rows: snapshot, now: m.now}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return shared.Persistence("commit", err)
	}
	m.rows = snapshot
	return nil
}

func (m *Memory) Create(ctx context.Context, rec Record) error {
	return m.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Create(ctx, rec)
	})
}

func (m *Memory) Update(ctx context.Context, kind documents.Kind, id string, patch Patch) (Record, error) {
	var out Record
	err := m.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		out, err = tx.Update(ctx, kind, id, patch)
		return err
	})
	return out, err
}

func (m *Memory) Delete(ctx context.Context, kind documents.Kind, id string) error {
	return m.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Delete(ctx, kind, id)
	})
}

func (m *Memory) Get(ctx context.Context, kind documents.Kind, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memTx{rows: m.rows, now: m.now}).Get(ctx, kind, id)
}

func (m *Memory) List(ctx context.Context, filter Filter) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memTx{rows: m.rows, now: m.now}).List(ctx, filter)
}

type memTx struct {
	rows map[memKey]Record
	now  func() time.Time
}

func (t *memTx) Create(_ context.Context, rec Record) error {
	key := memKey{rec.Kind, rec.ID}
	if _, ok := t.rows[key]; ok {
		return fmt.Errorf("store: %s id %s: %w", rec.Kind, rec.ID, shared.ErrDuplicate)
	}
	if t.numberTaken(rec.Kind, rec.Number, rec.ID) {
		return fmt.Errorf("store: %s number %s: %w", rec.Kind, rec.Number, shared.ErrDuplicate)
	}
	now := t.now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	rec.Data = append([]byte(nil), rec.Data...)
	t.rows[key] = rec
	return nil
}

func (t *memTx) Update(_ context.Context, kind documents.Kind, id string, patch Patch) (Record, error) {
	key := memKey{kind, id}
	rec, ok := t.rows[key]
	if !ok {
		return Record{}, notFound(kind, id)
	}
	if number, ok := patchNumber(patch); ok {
		if t.numberTaken(kind, number, id) {
			return Record{}, fmt.Errorf("store: %s number %s: %w", kind, number, shared.ErrDuplicate)
		}
		rec.Number = number
	}
	data, err := merge(rec.Data, patch)
	if err != nil {
		return Record{}, shared.Persistence("update", err)
	}
	rec.Data = data
	rec.UpdatedAt = t.now().UTC()
	t.rows[key] = rec
	return rec, nil
}

func (t *memTx) Get(_ context.Context, kind documents.Kind, id string) (Record, error) {
	rec, ok := t.rows[memKey{kind, id}]
	if !ok {
		return Record{}, notFound(kind, id)
	}
	return rec, nil
}

func (t *memTx) List(_ context.Context, filter Filter) ([]Record, error) {
	out := make([]Record, 0)
	for _, rec := range t.rows {
		if filter.Kind != "" && rec.Kind != filter.Kind {
			continue
		}
		if filter.NumberPrefix != "" && !strings.HasPrefix(rec.Number, filter.NumberPrefix) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []Record{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (t *memTx) Delete(_ context.Context, kind documents.Kind, id string) error {
	key := memKey{kind, id}
	if _, ok := t.rows[key]; !ok {
		return notFound(kind, id)
	}
	delete(t.rows, key)
	return nil
}

func (t *memTx) numberTaken(kind documents.Kind, number, exceptID string) bool {
	for k, rec := range t.rows {
		if k.kind == kind && rec.Number == number && k.id != exceptID {
			return true
		}
	}
	return false
}

func notFound(kind documents.Kind, id string) error {
	return fmt.Errorf("store: %s %s: %w", kind, id, shared.ErrNotFound)
}

var _ Gateway = (*Memory)(nil)
