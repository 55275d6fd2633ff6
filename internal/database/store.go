package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the relational gateway over documents, chunks, conflicts and
// chat tables. It is the source of truth; the vector index mirrors it.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store on an existing pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the schema when it does not exist yet, mirroring the
// original deployment's create-on-boot behavior.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id UUID PRIMARY KEY,
			external_ref TEXT,
			title TEXT,
			status TEXT NOT NULL DEFAULT 'draft',
			file_hash TEXT,
			storage_key TEXT,
			extension TEXT,
			effective_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id UUID PRIMARY KEY,
			document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			idx INTEGER NOT NULL,
			text TEXT NOT NULL,
			page INTEGER,
			section_path TEXT,
			hash TEXT NOT NULL,
			UNIQUE (document_id, idx)
		)`,
		`CREATE TABLE IF NOT EXISTS conflicts (
			id UUID PRIMARY KEY,
			new_chunk_id UUID NOT NULL REFERENCES chunks(id) ON DELETE CASCADE,
			existing_chunk_id UUID NOT NULL REFERENCES chunks(id) ON DELETE CASCADE,
			label TEXT NOT NULL,
			score DOUBLE PRECISION NOT NULL DEFAULT 0,
			neighbor_sim DOUBLE PRECISION,
			judged_by TEXT,
			resolved_at TIMESTAMPTZ,
			resolution_action TEXT,
			resolver_note TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS chat_sessions (
			id UUID PRIMARY KEY,
			name TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id UUID PRIMARY KEY,
			session_id UUID NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id)`,
		`CREATE INDEX IF NOT EXISTS idx_conflicts_new_chunk ON conflicts(new_chunk_id)`,
		`CREATE INDEX IF NOT EXISTS idx_conflicts_existing_chunk ON conflicts(existing_chunk_id)`,
		`CREATE INDEX IF NOT EXISTS idx_conflicts_open ON conflicts(resolved_at) WHERE resolved_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id)`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("database.Migrate: %w", err)
		}
	}
	return nil
}
