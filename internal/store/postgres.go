package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thetaxjournal/accountsvedartha/internal/platform/db"
	"github.com/thetaxjournal/accountsvedartha/internal/shared"
)

//go:embed schema.sql
var schemaSQL string

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres stores documents as JSONB rows keyed by (collection, id).
type Postgres struct {
	pool *pgxpool.Pool
	q    querier
}

// NewPostgres constructs a Postgres store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, q: pool}
}

// Migrate creates the documents table when missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, c Collection, id string) (Document, error) {
	doc := Document{ID: id}
	err := p.q.QueryRow(ctx,
		`SELECT data, updated_at FROM documents WHERE collection = $1 AND id = $2`,
		string(c), id,
	).Scan(&doc.Data, &doc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, notFound(c, id)
	}
	if err != nil {
		return Document{}, fmt.Errorf("store: get %s/%s: %w", c, id, err)
	}
	return doc, nil
}

func (p *Postgres) List(ctx context.Context, c Collection) ([]Document, error) {
	rows, err := p.q.Query(ctx,
		`SELECT id, data, updated_at FROM documents WHERE collection = $1 ORDER BY id`,
		string(c),
	)
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", c, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Data, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan %s: %w", c, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (p *Postgres) Upsert(ctx context.Context, c Collection, id string, data []byte) error {
	_, err := p.q.Exec(ctx, `
		INSERT INTO documents (collection, id, data, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (collection, id)
		DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
		string(c), id, data,
	)
	if err != nil {
		return fmt.Errorf("store: upsert %s/%s: %w", c, id, err)
	}
	return nil
}

// WithinTx runs fn inside a Serializable transaction. Serialization failures and
// unique index violations (a concurrent writer took the same invoice number) are
// reported as shared.ConcurrencyError.
func (p *Postgres) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if p.pool == nil {
		return fn(ctx, p)
	}
	err := db.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		return fn(ctx, &Postgres{q: tx})
	})
	if db.IsSerializationFailure(err) || db.IsUniqueViolation(err) {
		return &shared.ConcurrencyError{Resource: "documents"}
	}
	return err
}
