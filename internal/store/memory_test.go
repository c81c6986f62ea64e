package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradedesk/tradedesk/internal/documents"
	"github.com/tradedesk/tradedesk/internal/shared"
)

func newRecord(t *testing.T, id, number string, created time.Time) Record {
	t.Helper()
	rec, err := Encode(documents.Quotation{ID: id, Number: number, Status: documents.QuotationStatusDraft}, created, created)
	require.NoError(t, err)
	return rec
}

func TestMemoryCreateAndGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, m.Create(ctx, newRecord(t, "q-1", "QT-001", created)))

	rec, err := m.Get(ctx, documents.KindQuotation, "q-1")
	require.NoError(t, err)
	assert.Equal(t, "QT-001", rec.Number)

	q, err := Decode[documents.Quotation](rec)
	require.NoError(t, err)
	assert.Equal(t, documents.QuotationStatusDraft, q.Status)

	_, err = m.Get(ctx, documents.KindInquiry, "q-1")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestMemoryRejectsDuplicateNumberPerKind(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()

	require.NoError(t, m.Create(ctx, newRecord(t, "q-1", "QT-001", now)))
	err := m.Create(ctx, newRecord(t, "q-2", "QT-001", now))
	assert.ErrorIs(t, err, shared.ErrDuplicate)

	other, err := Encode(documents.CustomerInquiry{ID: "i-1", Number: "QT-001"}, now, now)
	require.NoError(t, err)
	assert.NoError(t, m.Create(ctx, other), "numbers are unique per kind only")
}

func TestMemoryRollbackLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()
	require.NoError(t, m.Create(ctx, newRecord(t, "q-1", "QT-001", now)))

	boom := errors.New("boom")
	err := m.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.Create(ctx, newRecord(t, "q-2", "QT-002", now)))
		_, err := tx.Update(ctx, documents.KindQuotation, "q-1", Patch{"poId": "po-9"})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = m.Get(ctx, documents.KindQuotation, "q-2")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	rec, err := m.Get(ctx, documents.KindQuotation, "q-1")
	require.NoError(t, err)
	q, err := Decode[documents.Quotation](rec)
	require.NoError(t, err)
	assert.Empty(t, q.POID)
}

func TestMemoryUpdateMergesTopLevelKeys(t *testing.T) {
	ctx := context.Background()
	later := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory().WithClock(func() time.Time { return later })
	require.NoError(t, m.Create(ctx, newRecord(t, "q-1", "QT-001", later.AddDate(0, -1, 0))))

	rec, err := m.Update(ctx, documents.KindQuotation, "q-1", Patch{"status": documents.QuotationStatusSent})
	require.NoError(t, err)
	assert.Equal(t, later, rec.UpdatedAt)

	q, err := Decode[documents.Quotation](rec)
	require.NoError(t, err)
	assert.Equal(t, documents.QuotationStatusSent, q.Status)
	assert.Equal(t, "QT-001", q.Number)

	_, err = m.Update(ctx, documents.KindQuotation, "missing", Patch{"status": "sent"})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestMemoryListFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, m.Create(ctx, newRecord(t, "q-1", "QT-001", base)))
	require.NoError(t, m.Create(ctx, newRecord(t, "q-2", "QT-002", base.Add(time.Hour))))
	require.NoError(t, m.Create(ctx, newRecord(t, "q-3", "X-003", base.Add(2*time.Hour))))

	all, err := m.List(ctx, Filter{Kind: documents.KindQuotation})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "q-3", all[0].ID)

	prefixed, err := m.List(ctx, Filter{Kind: documents.KindQuotation, NumberPrefix: "QT-"})
	require.NoError(t, err)
	assert.Len(t, prefixed, 2)

	page, err := m.List(ctx, Filter{Kind: documents.KindQuotation, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "q-2", page[0].ID)
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Create(ctx, newRecord(t, "q-1", "QT-001", time.Now())))

	require.NoError(t, m.Delete(ctx, documents.KindQuotation, "q-1"))
	assert.ErrorIs(t, m.Delete(ctx, documents.KindQuotation, "q-1"), shared.ErrNotFound)
}
