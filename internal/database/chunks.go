package database

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/oyounis19/beyond-rag/models"
	"github.com/oyounis19/beyond-rag/utils"
)

// InsertChunks bulk-inserts a document's chunks under a single transaction.
// Any failure rolls back the whole batch.
func (s *Store) InsertChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return utils.WrapError(utils.KindStore, "begin chunk insert", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(`
			INSERT INTO chunks (id, document_id, idx, text, page, section_path, hash)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			c.ID, c.DocumentID, c.Idx, c.Text, c.Page, c.SectionPath, c.Hash)
	}

	br := tx.SendBatch(ctx, batch)
	for range chunks {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return utils.WrapError(utils.KindStore, "insert chunk batch", err)
		}
	}
	if err := br.Close(); err != nil {
		return utils.WrapError(utils.KindStore, "close chunk batch", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return utils.WrapError(utils.KindStore, "commit chunk insert", err)
	}
	return nil
}

// CountChunks returns the number of chunks a document owns.
func (s *Store) CountChunks(ctx context.Context, documentID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM chunks WHERE document_id = $1`, documentID).Scan(&count)
	if err != nil {
		return 0, utils.WrapError(utils.KindStore, "count chunks", err)
	}
	return count, nil
}

// ListChunks returns a document's chunks ordered by idx.
func (s *Store) ListChunks(ctx context.Context, documentID uuid.UUID) ([]models.Chunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, idx, text, page, section_path, hash
		FROM chunks WHERE document_id = $1 ORDER BY idx ASC`, documentID)
	if err != nil {
		return nil, utils.WrapError(utils.KindStore, "list chunks", err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var c models.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Idx, &c.Text, &c.Page, &c.SectionPath, &c.Hash); err != nil {
			return nil, utils.WrapError(utils.KindStore, "scan chunk", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// GetChunk loads a chunk by id, returning nil when it no longer exists.
// Callers decide whether a missing chunk is an inconsistency.
func (s *Store) GetChunk(ctx context.Context, id uuid.UUID) (*models.Chunk, error) {
	var c models.Chunk
	err := s.pool.QueryRow(ctx, `
		SELECT id, document_id, idx, text, page, section_path, hash
		FROM chunks WHERE id = $1`, id).
		Scan(&c.ID, &c.DocumentID, &c.Idx, &c.Text, &c.Page, &c.SectionPath, &c.Hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, utils.WrapError(utils.KindStore, "get chunk", err)
	}
	return &c, nil
}

// DeleteChunk removes one chunk; conflicts referencing it cascade.
func (s *Store) DeleteChunk(ctx context.Context, id uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM chunks WHERE id = $1`, id); err != nil {
		return utils.WrapError(utils.KindStore, "delete chunk", err)
	}
	return nil
}

// ChunkIDs returns the ids of a document's chunks.
func (s *Store) ChunkIDs(ctx context.Context, documentID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return nil, utils.WrapError(utils.KindStore, "list chunk ids", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, utils.WrapError(utils.KindStore, "scan chunk id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
