package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oyounis19/beyond-rag/internal/logger"
	"github.com/oyounis19/beyond-rag/models"
	"github.com/oyounis19/beyond-rag/utils"
)

type resolutionStore interface {
	GetConflict(ctx context.Context, id uuid.UUID) (*models.Conflict, error)
	MarkConflictResolved(ctx context.Context, id uuid.UUID, action, note string, at time.Time) error
	GetChunk(ctx context.Context, id uuid.UUID) (*models.Chunk, error)
	DeleteChunk(ctx context.Context, id uuid.UUID) error
	GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error)
	UpdateDocumentStatus(ctx context.Context, id uuid.UUID, status string, effectiveAt *time.Time) error
	CountOpenConflictsForDocument(ctx context.Context, documentID uuid.UUID) (int, error)
	ListOpenConflicts(ctx context.Context, limit int) ([]models.Conflict, error)
}

type resolutionIndex interface {
	DeletePoints(ctx context.Context, chunkIDs ...uuid.UUID) error
}

// ResolutionService applies reviewer decisions to open conflicts. Supersede
// keeps the new chunk and removes the existing one; ignore keeps the
// existing chunk and removes the new one. When a pending document's last
// open conflict closes, the document publishes automatically.
type ResolutionService struct {
	store resolutionStore
	index resolutionIndex
}

func NewResolutionService(store resolutionStore, index resolutionIndex) *ResolutionService {
	return &ResolutionService{store: store, index: index}
}

// ResolutionResult reports one applied decision.
type ResolutionResult struct {
	ID             uuid.UUID   `json:"id"`
	Resolved       bool        `json:"resolved"`
	Action         string      `json:"action"`
	KeptChunkID    uuid.UUID   `json:"kept_chunk_id"`
	RemovedChunkID uuid.UUID   `json:"removed_chunk_id"`
	AutoPublished  []uuid.UUID `json:"auto_published,omitempty"`
}

// BulkResolutionResult aggregates a batch of decisions under one action.
type BulkResolutionResult struct {
	ResolvedCount          int         `json:"resolved_count"`
	Action                 string      `json:"action"`
	ChunksKept             []uuid.UUID `json:"chunks_kept"`
	ChunksRemoved          []uuid.UUID `json:"chunks_removed"`
	AutoPublishedDocuments []uuid.UUID `json:"auto_published_documents"`
}

// ListOpen returns conflicts still awaiting review.
func (s *ResolutionService) ListOpen(ctx context.Context, limit int) ([]models.Conflict, error) {
	if limit <= 0 {
		limit = 200
	}
	return s.store.ListOpenConflicts(ctx, limit)
}

// Resolve applies one decision. The resolution is committed before any
// chunk removal so a crash mid-cleanup never reopens a decided conflict.
func (s *ResolutionService) Resolve(ctx context.Context, conflictID uuid.UUID, action, note string) (*ResolutionResult, error) {
	if action != models.ActionSupersede && action != models.ActionIgnore {
		return nil, utils.NewError(utils.KindBadInput,
			fmt.Sprintf("unknown resolution action: %q", action))
	}

	conflict, err := s.store.GetConflict(ctx, conflictID)
	if err != nil {
		return nil, err
	}
	if !conflict.Open() {
		return nil, utils.NewError(utils.KindNotFound, "conflict is already resolved")
	}

	var kept, removed uuid.UUID
	if action == models.ActionSupersede {
		kept, removed = conflict.NewChunkID, conflict.ExistingChunkID
	} else {
		kept, removed = conflict.ExistingChunkID, conflict.NewChunkID
	}

	// Record document ownership before the chunk rows disappear.
	affected, err := s.affectedDocuments(ctx, conflict)
	if err != nil {
		return nil, err
	}

	if err := s.store.MarkConflictResolved(ctx, conflictID, action, note, time.Now().UTC()); err != nil {
		return nil, err
	}

	s.removeChunk(ctx, removed)

	published, err := s.autoPublish(ctx, affected)
	if err != nil {
		return nil, err
	}

	return &ResolutionResult{
		ID:             conflictID,
		Resolved:       true,
		Action:         action,
		KeptChunkID:    kept,
		RemovedChunkID: removed,
		AutoPublished:  published,
	}, nil
}

// ResolveBulk applies one action to many conflicts in two phases: every
// decision is recorded first, then the distinct losing chunks are removed
// and auto-publish runs once per affected document. One chunk often sits in
// several open conflicts; deleting it cascades the others away, so phase
// one must finish before any chunk disappears. Conflicts already resolved
// or gone by the time they come up are skipped, not failed.
func (s *ResolutionService) ResolveBulk(ctx context.Context, conflictIDs []uuid.UUID, action, note string) (*BulkResolutionResult, error) {
	if action != models.ActionSupersede && action != models.ActionIgnore {
		return nil, utils.NewError(utils.KindBadInput,
			fmt.Sprintf("unknown resolution action: %q", action))
	}

	result := &BulkResolutionResult{
		Action:                 action,
		ChunksKept:             []uuid.UUID{},
		ChunksRemoved:          []uuid.UUID{},
		AutoPublishedDocuments: []uuid.UUID{},
	}

	now := time.Now().UTC()
	seenKept := make(map[uuid.UUID]bool)
	seenRemoved := make(map[uuid.UUID]bool)
	seenDoc := make(map[uuid.UUID]bool)
	var affected []uuid.UUID

	for _, id := range conflictIDs {
		conflict, err := s.store.GetConflict(ctx, id)
		if err != nil {
			if utils.KindOf(err) == utils.KindNotFound {
				continue
			}
			return nil, err
		}
		if !conflict.Open() {
			continue
		}

		var kept, removed uuid.UUID
		if action == models.ActionSupersede {
			kept, removed = conflict.NewChunkID, conflict.ExistingChunkID
		} else {
			kept, removed = conflict.ExistingChunkID, conflict.NewChunkID
		}

		docs, err := s.affectedDocuments(ctx, conflict)
		if err != nil {
			return nil, err
		}

		if err := s.store.MarkConflictResolved(ctx, id, action, note, now); err != nil {
			return nil, err
		}
		result.ResolvedCount++
		if !seenKept[kept] {
			seenKept[kept] = true
			result.ChunksKept = append(result.ChunksKept, kept)
		}
		if !seenRemoved[removed] {
			seenRemoved[removed] = true
			result.ChunksRemoved = append(result.ChunksRemoved, removed)
		}
		for _, docID := range docs {
			if !seenDoc[docID] {
				seenDoc[docID] = true
				affected = append(affected, docID)
			}
		}
	}

	for _, chunkID := range result.ChunksRemoved {
		s.removeChunk(ctx, chunkID)
	}

	published, err := s.autoPublish(ctx, affected)
	if err != nil {
		return nil, err
	}
	result.AutoPublishedDocuments = append(result.AutoPublishedDocuments, published...)
	return result, nil
}

// removeChunk deletes the losing chunk from the index and the store.
// Index removal is best effort; the store delete cascades any other open
// conflicts referencing the chunk.
func (s *ResolutionService) removeChunk(ctx context.Context, chunkID uuid.UUID) {
	if err := s.index.DeletePoints(ctx, chunkID); err != nil {
		logger.Warn("Failed to remove chunk from vector index", "chunk_id", chunkID, "error", err)
	}
	if err := s.store.DeleteChunk(ctx, chunkID); err != nil {
		logger.Warn("Failed to remove chunk row", "chunk_id", chunkID, "error", err)
	}
}

func (s *ResolutionService) affectedDocuments(ctx context.Context, conflict *models.Conflict) ([]uuid.UUID, error) {
	var out []uuid.UUID
	seen := make(map[uuid.UUID]bool)
	for _, chunkID := range []uuid.UUID{conflict.NewChunkID, conflict.ExistingChunkID} {
		chunk, err := s.store.GetChunk(ctx, chunkID)
		if err != nil {
			return nil, err
		}
		if chunk == nil {
			// Already removed by a prior resolution; nothing to publish.
			continue
		}
		if !seen[chunk.DocumentID] {
			seen[chunk.DocumentID] = true
			out = append(out, chunk.DocumentID)
		}
	}
	return out, nil
}

// autoPublish promotes any affected document that is pending review and has
// no open conflicts left on either side of its chunks.
func (s *ResolutionService) autoPublish(ctx context.Context, documentIDs []uuid.UUID) ([]uuid.UUID, error) {
	var published []uuid.UUID
	for _, docID := range documentIDs {
		doc, err := s.store.GetDocument(ctx, docID)
		if err != nil {
			return nil, err
		}
		if doc.Status != models.StatusPendingReview {
			continue
		}

		open, err := s.store.CountOpenConflictsForDocument(ctx, docID)
		if err != nil {
			return nil, err
		}
		if open > 0 {
			continue
		}

		now := time.Now().UTC()
		if err := s.store.UpdateDocumentStatus(ctx, docID, models.StatusPublished, &now); err != nil {
			return nil, err
		}
		logger.Info("Auto-published document after final resolution", "document_id", docID)
		published = append(published, docID)
	}
	return published, nil
}
