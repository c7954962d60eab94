// Package store is the document store the engine reads from and upserts to.
// Entities live in named collections and are addressed by stable string ids.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/thetaxjournal/accountsvedartha/internal/shared"
)

// Collection names a group of documents.
type Collection string

const (
	Branches        Collection = "branches"
	Clients         Collection = "clients"
	Invoices        Collection = "invoices"
	Payments        Collection = "payments"
	Employees       Collection = "employees"
	Attendance      Collection = "attendance"
	PayrollItems    Collection = "payroll_items"
	PayrollSettings Collection = "payroll_settings"
	PayrollRuns     Collection = "payroll_runs"
	Sequences       Collection = "sequences"
)

// Document is a stored JSON document.
type Document struct {
	ID        string
	Data      []byte
	UpdatedAt time.Time
}

// Store is the repository contract used by every service.
type Store interface {
	// Get returns the document or an error matching shared.ErrNotFound.
	Get(ctx context.Context, c Collection, id string) (Document, error)
	// List returns every document in the collection ordered by id.
	List(ctx context.Context, c Collection) ([]Document, error)
	// Upsert writes data under id, replacing any previous document.
	Upsert(ctx context.Context, c Collection, id string, data []byte) error
	// WithinTx runs fn against a transactional view. Either every write made
	// through tx is committed or none is.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

func notFound(c Collection, id string) error {
	return &shared.NotFoundError{Resource: string(c), Reason: fmt.Sprintf("document %q not found", id)}
}

// Get decodes a document into T.
func Get[T any](ctx context.Context, s Store, c Collection, id string) (T, error) {
	var out T
	doc, err := s.Get(ctx, c, id)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(doc.Data, &out); err != nil {
		return out, fmt.Errorf("store: decode %s/%s: %w", c, id, err)
	}
	return out, nil
}

// List decodes every document of a collection into T.
func List[T any](ctx context.Context, s Store, c Collection) ([]T, error) {
	docs, err := s.List(ctx, c)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := json.Unmarshal(doc.Data, &v); err != nil {
			return nil, fmt.Errorf("store: decode %s/%s: %w", c, doc.ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Put encodes v and upserts it under id.
func Put(ctx context.Context, s Store, c Collection, id string, v any) error {
	if id == "" {
		return shared.NewValidationError("id", "document id required for %s", c)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s/%s: %w", c, id, err)
	}
	return s.Upsert(ctx, c, id, data)
}
