package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

// DocumentStore persists whole JSON documents keyed by (namespace, name).
// There is no partial-update API: callers read the full document, mutate in
// memory, and replace it.
type DocumentStore struct {
	db *pgxpool.Pool
}

func NewDocumentStore(db *pgxpool.Pool) *DocumentStore {
	return &DocumentStore{db: db}
}

// EnsureSchema creates the documents table if it does not exist.
func (s *DocumentStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS documents (
			namespace  TEXT NOT NULL,
			name       TEXT NOT NULL,
			doc        JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (namespace, name)
		)`,
	)
	if err != nil {
		return fmt.Errorf("ensure documents schema: %w", err)
	}
	return nil
}

func (s *DocumentStore) Read(ctx context.Context, namespace, name string) ([]byte, error) {
	var doc []byte
	err := s.db.QueryRow(ctx,
		`SELECT doc FROM documents WHERE namespace = $1 AND name = $2`,
		namespace, name,
	).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read document %s/%s: %w", namespace, name, err)
	}
	return doc, nil
}

func (s *DocumentStore) Replace(ctx context.Context, namespace, name string, doc []byte) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO documents (namespace, name, doc, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (namespace, name)
		 DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()`,
		namespace, name, doc,
	)
	if err != nil {
		return fmt.Errorf("replace document %s/%s: %w", namespace, name, err)
	}
	return nil
}
