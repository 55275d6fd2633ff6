package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/oyounis19/beyond-rag/models"
	"github.com/oyounis19/beyond-rag/utils"
)

const documentColumns = `id, COALESCE(external_ref, ''), COALESCE(title, ''), status,
	COALESCE(file_hash, ''), COALESCE(storage_key, ''), COALESCE(extension, ''),
	effective_at, created_at`

func scanDocument(row pgx.Row) (*models.Document, error) {
	var d models.Document
	err := row.Scan(&d.ID, &d.ExternalRef, &d.Title, &d.Status, &d.FileHash,
		&d.StorageKey, &d.Extension, &d.EffectiveAt, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateDocument inserts a new document row. The caller provides the id;
// CreatedAt is assigned by the database and written back.
func (s *Store) CreateDocument(ctx context.Context, d *models.Document) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO documents (id, external_ref, title, status, file_hash, storage_key, extension)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		d.ID, d.ExternalRef, d.Title, d.Status, d.FileHash, d.StorageKey, d.Extension,
	).Scan(&d.CreatedAt)
	if err != nil {
		return utils.WrapError(utils.KindStore, "insert document", err)
	}
	return nil
}

// GetDocument loads a document by id; returns a NotFound error when absent.
func (s *Store) GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	doc, err := scanDocument(s.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, utils.NewError(utils.KindNotFound, "document not found")
	}
	if err != nil {
		return nil, utils.WrapError(utils.KindStore, "get document", err)
	}
	return doc, nil
}

// GetDocumentByExternalRef returns the most recent document with the given
// external reference, or nil when none exists.
func (s *Store) GetDocumentByExternalRef(ctx context.Context, ref string) (*models.Document, error) {
	doc, err := scanDocument(s.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE external_ref = $1 ORDER BY created_at DESC LIMIT 1`, ref))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, utils.WrapError(utils.KindStore, "get document by external_ref", err)
	}
	return doc, nil
}

// ListDocuments returns all documents, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]models.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC`)
	if err != nil {
		return nil, utils.WrapError(utils.KindStore, "list documents", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, utils.WrapError(utils.KindStore, "scan document", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// UpdateDocumentStatus transitions a document, validating the transition
// and setting effective_at when provided.
func (s *Store) UpdateDocumentStatus(ctx context.Context, id uuid.UUID, status string, effectiveAt *time.Time) error {
	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if doc.Status == status {
		return nil
	}
	if !models.ValidTransition(doc.Status, status) {
		return utils.NewError(utils.KindConflict,
			fmt.Sprintf("invalid status transition %s -> %s", doc.Status, status))
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE documents SET status = $2, effective_at = COALESCE($3, effective_at) WHERE id = $1`,
		id, status, effectiveAt)
	if err != nil {
		return utils.WrapError(utils.KindStore, "update document status", err)
	}
	return nil
}

// DeleteDocument removes the row; chunks and conflicts cascade.
func (s *Store) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return utils.WrapError(utils.KindStore, "delete document", err)
	}
	if tag.RowsAffected() == 0 {
		return utils.NewError(utils.KindNotFound, "document not found")
	}
	return nil
}
