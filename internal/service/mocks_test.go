package service

import (
	"context"
	"sync"
	"time"

	"github.com/aretelabs/arete/internal/store"
	"go.uber.org/zap"
)

// memDocStore is an in-memory DocumentStore for tests.
type memDocStore struct {
	mu       sync.Mutex
	docs     map[string][]byte
	readErr  error
	writeErr error
	writes   int
}

func newMemDocStore() *memDocStore {
	return &memDocStore{docs: make(map[string][]byte)}
}

func (m *memDocStore) Read(_ context.Context, namespace, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	doc, ok := m.docs[namespace+"/"+name]
	if !ok {
		return nil, store.ErrNotFound
	}
	return doc, nil
}

func (m *memDocStore) Replace(_ context.Context, namespace, name string, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes++
	m.docs[namespace+"/"+name] = append([]byte(nil), doc...)
	return nil
}

func newTestFacts(docs *memDocStore) *FactService {
	return NewFactService(docs, "test", zap.NewNop())
}

// fixedClock returns a clock function pinned to t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
