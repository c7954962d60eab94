package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store used by tests and the CLI.
type Memory struct {
	mu   sync.RWMutex
	docs map[Collection]map[string]Document
	now  func() time.Time
}

// NewMemory constructs an empty Memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[Collection]map[string]Document), now: time.Now}
}

func (m *Memory) Get(ctx context.Context, c Collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return getDoc(m.docs, c, id)
}

func (m *Memory) List(ctx context.Context, c Collection) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return listDocs(m.docs, c), nil
}

func (m *Memory) Upsert(ctx context.Context, c Collection, id string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	putDoc(m.docs, c, id, data, m.now())
	return nil
}

// WithinTx stages writes on a copy and swaps it in only when fn succeeds.
// Transactions are serialised.
func (m *Memory) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	staged := &memoryTx{docs: cloneDocs(m.docs), now: m.now}
	if err := fn(ctx, staged); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.docs = staged.docs
	return nil
}

type memoryTx struct {
	docs map[Collection]map[string]Document
	now  func() time.Time
}

func (t *memoryTx) Get(ctx context.Context, c Collection, id string) (Document, error) {
	return getDoc(t.docs, c, id)
}

func (t *memoryTx) List(ctx context.Context, c Collection) ([]Document, error) {
	return listDocs(t.docs, c), nil
}

func (t *memoryTx) Upsert(ctx context.Context, c Collection, id string, data []byte) error {
	putDoc(t.docs, c, id, data, t.now())
	return nil
}

func (t *memoryTx) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return fn(ctx, t)
}

func getDoc(docs map[Collection]map[string]Document, c Collection, id string) (Document, error) {
	doc, ok := docs[c][id]
	if !ok {
		return Document{}, notFound(c, id)
	}
	doc.Data = append([]byte(nil), doc.Data...)
	return doc, nil
}

func listDocs(docs map[Collection]map[string]Document, c Collection) []Document {
	out := make([]Document, 0, len(docs[c]))
	for _, doc := range docs[c] {
		doc.Data = append([]byte(nil), doc.Data...)
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func putDoc(docs map[Collection]map[string]Document, c Collection, id string, data []byte, now time.Time) {
	coll, ok := docs[c]
	if !ok {
		coll = make(map[string]Document)
		docs[c] = coll
	}
	coll[id] = Document{ID: id, Data: append([]byte(nil), data...), UpdatedAt: now}
}

func cloneDocs(src map[Collection]map[string]Document) map[Collection]map[string]Document {
	out := make(map[Collection]map[string]Document, len(src))
	for c, coll := range src {
		copied := make(map[string]Document, len(coll))
		for id, doc := range coll {
			copied[id] = doc
		}
		out[c] = copied
	}
	return out
}
