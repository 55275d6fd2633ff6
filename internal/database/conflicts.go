package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/oyounis19/beyond-rag/models"
	"github.com/oyounis19/beyond-rag/utils"
)

const conflictColumns = `id, new_chunk_id, existing_chunk_id, label, score,
	neighbor_sim, COALESCE(judged_by, ''), resolution_action, resolved_at, resolver_note`

func scanConflict(row pgx.Row) (*models.Conflict, error) {
	var c models.Conflict
	err := row.Scan(&c.ID, &c.NewChunkID, &c.ExistingChunkID, &c.Label, &c.Score,
		&c.NeighborSim, &c.JudgedBy, &c.ResolutionAction, &c.ResolvedAt, &c.ResolverNote)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// InsertConflicts persists all records detected for one document under a
// single transaction. A record is skipped when an open conflict for the same
// (new, existing) pair already exists. Returns the number inserted.
func (s *Store) InsertConflicts(ctx context.Context, conflicts []models.Conflict) (int, error) {
	if len(conflicts) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, utils.WrapError(utils.KindStore, "begin conflict insert", err)
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, c := range conflicts {
		tag, err := tx.Exec(ctx, `
			INSERT INTO conflicts (id, new_chunk_id, existing_chunk_id, label, score, neighbor_sim, judged_by)
			SELECT $1, $2, $3, $4, $5, $6, $7
			WHERE NOT EXISTS (
				SELECT 1 FROM conflicts
				WHERE new_chunk_id = $2 AND existing_chunk_id = $3 AND resolved_at IS NULL
			)`,
			c.ID, c.NewChunkID, c.ExistingChunkID, c.Label, c.Score, c.NeighborSim, c.JudgedBy)
		if err != nil {
			return 0, utils.WrapError(utils.KindStore, "insert conflict", err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, utils.WrapError(utils.KindStore, "commit conflict insert", err)
	}
	return inserted, nil
}

// GetConflict loads a conflict by id; NotFound when absent.
func (s *Store) GetConflict(ctx context.Context, id uuid.UUID) (*models.Conflict, error) {
	c, err := scanConflict(s.pool.QueryRow(ctx,
		`SELECT `+conflictColumns+` FROM conflicts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, utils.NewError(utils.KindNotFound, "conflict not found")
	}
	if err != nil {
		return nil, utils.WrapError(utils.KindStore, "get conflict", err)
	}
	return c, nil
}

// ListOpenConflicts returns unresolved conflicts, highest score first so
// reviewers see the most confident findings on top. Capped at limit.
func (s *Store) ListOpenConflicts(ctx context.Context, limit int) ([]models.Conflict, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+conflictColumns+` FROM conflicts
		 WHERE resolved_at IS NULL ORDER BY score DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, utils.WrapError(utils.KindStore, "list open conflicts", err)
	}
	defer rows.Close()

	var out []models.Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, utils.WrapError(utils.KindStore, "scan conflict", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// MarkConflictResolved stamps the resolution fields and commits.
func (s *Store) MarkConflictResolved(ctx context.Context, id uuid.UUID, action, note string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE conflicts
		SET resolution_action = $2, resolver_note = $3, resolved_at = $4
		WHERE id = $1 AND resolved_at IS NULL`,
		id, action, note, at)
	if err != nil {
		return utils.WrapError(utils.KindStore, "mark conflict resolved", err)
	}
	if tag.RowsAffected() == 0 {
		return utils.NewError(utils.KindNotFound, "conflict not found or already resolved")
	}
	return nil
}

// CountOpenConflictsForDocument counts unresolved conflicts touching any
// chunk the document owns, on either side of the pair.
func (s *Store) CountOpenConflictsForDocument(ctx context.Context, documentID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM conflicts cf
		JOIN chunks cn ON cn.id = cf.new_chunk_id
		JOIN chunks ce ON ce.id = cf.existing_chunk_id
		WHERE cf.resolved_at IS NULL
		  AND (cn.document_id = $1 OR ce.document_id = $1)`, documentID).Scan(&count)
	if err != nil {
		return 0, utils.WrapError(utils.KindStore, "count open conflicts", err)
	}
	return count, nil
}
