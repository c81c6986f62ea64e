package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradedesk/tradedesk/internal/documents"
	"github.com/tradedesk/tradedesk/internal/platform/db"
	"github.com/tradedesk/tradedesk/internal/shared"
)

const uniqueViolation = "23505"

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres stores documents in a single JSONB table.
type Postgres struct {
	pool *pgxpool.Pool
	pgTx
}

// NewPostgres wires the gateway to a pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, pgTx: pgTx{q: pool}}
}

// WithTx runs fn inside a RepeatableRead transaction.
func (p *Postgres) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	err := db.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		return fn(ctx, pgTx{q: tx})
	})
	return shared.Persistence("tx", err)
}

type pgTx struct {
	q querier
}

const selectColumns = `SELECT kind, id, number, data, created_at, updated_at FROM documents`

func (t pgTx) Create(ctx context.Context, rec Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	_, err := t.q.Exec(ctx, `
INSERT INTO documents (id, kind, number, data, created_at, updated_at)
VALUES ($1, $2, $3, $4::jsonb, $5, $6)`,
		rec.ID, string(rec.Kind), rec.Number, string(rec.Data), rec.CreatedAt.UTC(), rec.UpdatedAt.UTC())
	if err != nil {
		return mapError("create", rec.Kind, rec.ID, err)
	}
	return nil
}

func (t pgTx) Update(ctx context.Context, kind documents.Kind, id string, patch Patch) (Record, error) {
	payload, err := json.Marshal(patch)
	if err != nil {
		return Record{}, shared.Persistence("update", err)
	}
	var number *string
	if n, ok := patchNumber(patch); ok {
		number = &n
	}
	row := t.q.QueryRow(ctx, `
UPDATE documents
SET data = data || $3::jsonb,
    number = COALESCE($4, number),
    updated_at = now()
WHERE kind = $1 AND id = $2
RETURNING kind, id, number, data, created_at, updated_at`,
		string(kind), id, string(payload), number)
	rec, err := scanRecord(row)
	if err != nil {
		return Record{}, mapError("update", kind, id, err)
	}
	return rec, nil
}

func (t pgTx) Get(ctx context.Context, kind documents.Kind, id string) (Record, error) {
	row := t.q.QueryRow(ctx, selectColumns+` WHERE kind = $1 AND id = $2`, string(kind), id)
	rec, err := scanRecord(row)
	if err != nil {
		return Record{}, mapError("get", kind, id, err)
	}
	return rec, nil
}

func (t pgTx) List(ctx context.Context, filter Filter) ([]Record, error) {
	rows, err := t.q.Query(ctx, selectColumns+`
WHERE ($1 = '' OR kind = $1)
  AND ($2 = '' OR starts_with(number, $2))
ORDER BY created_at DESC, id
LIMIT NULLIF($3, 0) OFFSET $4`,
		string(filter.Kind), filter.NumberPrefix, filter.Limit, filter.Offset)
	if err != nil {
		return nil, shared.Persistence("list", err)
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, shared.Persistence("list", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Persistence("list", err)
	}
	return out, nil
}

func (t pgTx) Delete(ctx context.Context, kind documents.Kind, id string) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM documents WHERE kind = $1 AND id = $2`, string(kind), id)
	if err != nil {
		return shared.Persistence("delete", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(kind, id)
	}
	return nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec  Record
		kind string
		data []byte
	)
	if err := row.Scan(&kind, &rec.ID, &rec.Number, &data, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	rec.Kind = documents.Kind(kind)
	rec.Data = json.RawMessage(data)
	return rec, nil
}

func mapError(op string, kind documents.Kind, id string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound(kind, id)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("store: %s %s: %s: %w", kind, id, pgErr.ConstraintName, shared.ErrDuplicate)
	}
	return shared.Persistence(op, err)
}

var _ Gateway = (*Postgres)(nil)
