package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/oyounis19/beyond-rag/models"
	"github.com/oyounis19/beyond-rag/utils"
)

// memResolutionStore is an in-memory stand-in for the relational gateway,
// with chunk deletion cascading to conflicts like the real schema does.
type memResolutionStore struct {
	docs      map[uuid.UUID]*models.Document
	chunks    map[uuid.UUID]*models.Chunk
	conflicts map[uuid.UUID]*models.Conflict
}

func newMemResolutionStore() *memResolutionStore {
	return &memResolutionStore{
		docs:      make(map[uuid.UUID]*models.Document),
		chunks:    make(map[uuid.UUID]*models.Chunk),
		conflicts: make(map[uuid.UUID]*models.Conflict),
	}
}

func (m *memResolutionStore) GetConflict(ctx context.Context, id uuid.UUID) (*models.Conflict, error) {
	c, ok := m.conflicts[id]
	if !ok {
		return nil, utils.NewError(utils.KindNotFound, "conflict not found")
	}
	cp := *c
	return &cp, nil
}

func (m *memResolutionStore) MarkConflictResolved(ctx context.Context, id uuid.UUID, action, note string, at time.Time) error {
	c, ok := m.conflicts[id]
	if !ok || c.ResolvedAt != nil {
		return utils.NewError(utils.KindNotFound, "conflict not found or already resolved")
	}
	c.ResolutionAction = &action
	c.ResolverNote = &note
	c.ResolvedAt = &at
	return nil
}

func (m *memResolutionStore) GetChunk(ctx context.Context, id uuid.UUID) (*models.Chunk, error) {
	c, ok := m.chunks[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *memResolutionStore) DeleteChunk(ctx context.Context, id uuid.UUID) error {
	delete(m.chunks, id)
	for cid, c := range m.conflicts {
		if c.NewChunkID == id || c.ExistingChunkID == id {
			delete(m.conflicts, cid)
		}
	}
	return nil
}

func (m *memResolutionStore) GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	d, ok := m.docs[id]
	if !ok {
		return nil, utils.NewError(utils.KindNotFound, "document not found")
	}
	cp := *d
	return &cp, nil
}

func (m *memResolutionStore) UpdateDocumentStatus(ctx context.Context, id uuid.UUID, status string, effectiveAt *time.Time) error {
	d, ok := m.docs[id]
	if !ok {
		return utils.NewError(utils.KindNotFound, "document not found")
	}
	d.Status = status
	if effectiveAt != nil {
		d.EffectiveAt = effectiveAt
	}
	return nil
}

func (m *memResolutionStore) CountOpenConflictsForDocument(ctx context.Context, documentID uuid.UUID) (int, error) {
	count := 0
	for _, c := range m.conflicts {
		if c.ResolvedAt != nil {
			continue
		}
		for _, chunkID := range []uuid.UUID{c.NewChunkID, c.ExistingChunkID} {
			if chunk, ok := m.chunks[chunkID]; ok && chunk.DocumentID == documentID {
				count++
				break
			}
		}
	}
	return count, nil
}

func (m *memResolutionStore) ListOpenConflicts(ctx context.Context, limit int) ([]models.Conflict, error) {
	var out []models.Conflict
	for _, c := range m.conflicts {
		if c.ResolvedAt == nil && len(out) < limit {
			out = append(out, *c)
		}
	}
	return out, nil
}

type memResolutionIndex struct {
	deleted []uuid.UUID
	err     error
}

func (m *memResolutionIndex) DeletePoints(ctx context.Context, chunkIDs ...uuid.UUID) error {
	if m.err != nil {
		return m.err
	}
	m.deleted = append(m.deleted, chunkIDs...)
	return nil
}

// resolutionFixture: a pending document with one chunk conflicting against
// a published document's chunk.
func resolutionFixture() (*memResolutionStore, uuid.UUID, *models.Conflict) {
	store := newMemResolutionStore()

	newDoc := uuid.New()
	oldDoc := uuid.New()
	store.docs[newDoc] = &models.Document{ID: newDoc, Status: models.StatusPendingReview}
	store.docs[oldDoc] = &models.Document{ID: oldDoc, Status: models.StatusPublished}

	newChunk := &models.Chunk{ID: uuid.New(), DocumentID: newDoc, Text: "new claim"}
	oldChunk := &models.Chunk{ID: uuid.New(), DocumentID: oldDoc, Text: "old claim"}
	store.chunks[newChunk.ID] = newChunk
	store.chunks[oldChunk.ID] = oldChunk

	conflict := &models.Conflict{
		ID:              uuid.New(),
		NewChunkID:      newChunk.ID,
		ExistingChunkID: oldChunk.ID,
		Label:           models.LabelContradiction,
		JudgedBy:        models.JudgedByNLI,
	}
	store.conflicts[conflict.ID] = conflict
	return store, newDoc, conflict
}

func TestResolveSupersedeRemovesExistingChunk(t *testing.T) {
	store, newDoc, conflict := resolutionFixture()
	index := &memResolutionIndex{}
	svc := NewResolutionService(store, index)

	res, err := svc.Resolve(context.Background(), conflict.ID, models.ActionSupersede, "new version wins")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if res.KeptChunkID != conflict.NewChunkID || res.RemovedChunkID != conflict.ExistingChunkID {
		t.Errorf("supersede kept/removed wrong: %+v", res)
	}
	if _, ok := store.chunks[conflict.ExistingChunkID]; ok {
		t.Error("existing chunk should be deleted")
	}
	if len(index.deleted) != 1 || index.deleted[0] != conflict.ExistingChunkID {
		t.Errorf("index should drop the removed chunk, got %v", index.deleted)
	}
	if store.docs[newDoc].Status != models.StatusPublished {
		t.Errorf("last resolution should auto-publish, status = %s", store.docs[newDoc].Status)
	}
	if store.docs[newDoc].EffectiveAt == nil {
		t.Error("auto-publish should stamp effective_at")
	}
	if len(res.AutoPublished) != 1 || res.AutoPublished[0] != newDoc {
		t.Errorf("auto-published = %v, want [%s]", res.AutoPublished, newDoc)
	}
}

func TestResolveIgnoreRemovesNewChunk(t *testing.T) {
	store, _, conflict := resolutionFixture()
	svc := NewResolutionService(store, &memResolutionIndex{})

	res, err := svc.Resolve(context.Background(), conflict.ID, models.ActionIgnore, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.KeptChunkID != conflict.ExistingChunkID || res.RemovedChunkID != conflict.NewChunkID {
		t.Errorf("ignore kept/removed wrong: %+v", res)
	}
	if _, ok := store.chunks[conflict.NewChunkID]; ok {
		t.Error("new chunk should be deleted")
	}
}

func TestResolveRejectsUnknownAction(t *testing.T) {
	store, _, conflict := resolutionFixture()
	svc := NewResolutionService(store, &memResolutionIndex{})

	_, err := svc.Resolve(context.Background(), conflict.ID, "merge", "")
	if err == nil || utils.KindOf(err) != utils.KindBadInput {
		t.Fatalf("expected bad-input error, got %v", err)
	}
}

func TestResolveAlreadyResolvedConflict(t *testing.T) {
	store, _, conflict := resolutionFixture()
	now := time.Now()
	store.conflicts[conflict.ID].ResolvedAt = &now

	svc := NewResolutionService(store, &memResolutionIndex{})
	_, err := svc.Resolve(context.Background(), conflict.ID, models.ActionIgnore, "")
	if err == nil || utils.KindOf(err) != utils.KindNotFound {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestResolveNoAutoPublishWhileConflictsRemain(t *testing.T) {
	store, newDoc, conflict := resolutionFixture()

	// Second open conflict on another chunk of the same document.
	extra := &models.Chunk{ID: uuid.New(), DocumentID: newDoc, Text: "another claim"}
	store.chunks[extra.ID] = extra
	other := &models.Conflict{
		ID:              uuid.New(),
		NewChunkID:      extra.ID,
		ExistingChunkID: conflict.ExistingChunkID,
		Label:           models.LabelDuplicate,
		JudgedBy:        models.JudgedByNLI,
	}
	store.conflicts[other.ID] = other

	svc := NewResolutionService(store, &memResolutionIndex{})
	res, err := svc.Resolve(context.Background(), conflict.ID, models.ActionIgnore, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// Ignore removes the new chunk; the other conflict references a
	// different chunk of the pending document and stays open.
	if len(res.AutoPublished) != 0 {
		t.Errorf("document with open conflicts must not auto-publish, got %v", res.AutoPublished)
	}
	if store.docs[newDoc].Status != models.StatusPendingReview {
		t.Errorf("status = %s, want pending_review", store.docs[newDoc].Status)
	}
}

func TestResolveIndexFailureStillResolves(t *testing.T) {
	store, _, conflict := resolutionFixture()
	index := &memResolutionIndex{err: context.DeadlineExceeded}

	svc := NewResolutionService(store, index)
	res, err := svc.Resolve(context.Background(), conflict.ID, models.ActionSupersede, "")
	if err != nil {
		t.Fatalf("index failure must not fail the resolution: %v", err)
	}
	if !res.Resolved {
		t.Error("resolution should be recorded despite index failure")
	}
}

func TestResolveBulk(t *testing.T) {
	store := newMemResolutionStore()

	docID := uuid.New()
	oldDoc := uuid.New()
	store.docs[docID] = &models.Document{ID: docID, Status: models.StatusPendingReview}
	store.docs[oldDoc] = &models.Document{ID: oldDoc, Status: models.StatusPublished}

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		newChunk := &models.Chunk{ID: uuid.New(), DocumentID: docID}
		oldChunk := &models.Chunk{ID: uuid.New(), DocumentID: oldDoc}
		store.chunks[newChunk.ID] = newChunk
		store.chunks[oldChunk.ID] = oldChunk

		c := &models.Conflict{
			ID:              uuid.New(),
			NewChunkID:      newChunk.ID,
			ExistingChunkID: oldChunk.ID,
			Label:           models.LabelDuplicate,
			JudgedBy:        models.JudgedByNLI,
		}
		store.conflicts[c.ID] = c
		ids = append(ids, c.ID)
	}

	svc := NewResolutionService(store, &memResolutionIndex{})
	res, err := svc.ResolveBulk(context.Background(), ids, models.ActionIgnore, "bulk cleanup")
	if err != nil {
		t.Fatalf("ResolveBulk: %v", err)
	}

	if res.ResolvedCount != 3 {
		t.Errorf("resolved_count = %d, want 3", res.ResolvedCount)
	}
	if len(res.ChunksRemoved) != 3 || len(res.ChunksKept) != 3 {
		t.Errorf("kept/removed = %d/%d, want 3/3", len(res.ChunksKept), len(res.ChunksRemoved))
	}
	if len(res.AutoPublishedDocuments) != 1 || res.AutoPublishedDocuments[0] != docID {
		t.Errorf("auto_published_documents = %v, want [%s]", res.AutoPublishedDocuments, docID)
	}
	if store.docs[docID].Status != models.StatusPublished {
		t.Errorf("document status = %s, want published", store.docs[docID].Status)
	}
}

// One new chunk sitting in several open conflicts: deleting it cascades the
// sibling conflict rows away, which must not fail the rest of the batch.
func TestResolveBulkSharedChunkCascade(t *testing.T) {
	store := newMemResolutionStore()

	docID := uuid.New()
	oldDoc := uuid.New()
	store.docs[docID] = &models.Document{ID: docID, Status: models.StatusPendingReview}
	store.docs[oldDoc] = &models.Document{ID: oldDoc, Status: models.StatusPublished}

	shared := &models.Chunk{ID: uuid.New(), DocumentID: docID, Text: "disputed claim"}
	store.chunks[shared.ID] = shared

	var ids []uuid.UUID
	for i := 0; i < 2; i++ {
		oldChunk := &models.Chunk{ID: uuid.New(), DocumentID: oldDoc}
		store.chunks[oldChunk.ID] = oldChunk

		c := &models.Conflict{
			ID:              uuid.New(),
			NewChunkID:      shared.ID,
			ExistingChunkID: oldChunk.ID,
			Label:           models.LabelContradiction,
			JudgedBy:        models.JudgedByNLI,
		}
		store.conflicts[c.ID] = c
		ids = append(ids, c.ID)
	}

	svc := NewResolutionService(store, &memResolutionIndex{})
	res, err := svc.ResolveBulk(context.Background(), ids, models.ActionIgnore, "")
	if err != nil {
		t.Fatalf("ResolveBulk: %v", err)
	}

	if res.ResolvedCount != 2 {
		t.Errorf("resolved_count = %d, want 2", res.ResolvedCount)
	}
	if len(res.ChunksRemoved) != 1 || res.ChunksRemoved[0] != shared.ID {
		t.Errorf("chunks_removed = %v, want just the shared chunk", res.ChunksRemoved)
	}
	if _, ok := store.chunks[shared.ID]; ok {
		t.Error("shared chunk should be deleted")
	}
	if len(res.AutoPublishedDocuments) != 1 || res.AutoPublishedDocuments[0] != docID {
		t.Errorf("auto_published_documents = %v, want [%s]", res.AutoPublishedDocuments, docID)
	}
	if store.docs[docID].Status != models.StatusPublished {
		t.Errorf("document status = %s, want published", store.docs[docID].Status)
	}
}

func TestResolveBulkSkipsResolvedAndMissing(t *testing.T) {
	store, _, conflict := resolutionFixture()
	now := time.Now()
	store.conflicts[conflict.ID].ResolvedAt = &now

	svc := NewResolutionService(store, &memResolutionIndex{})
	res, err := svc.ResolveBulk(context.Background(),
		[]uuid.UUID{conflict.ID, uuid.New()}, models.ActionSupersede, "")
	if err != nil {
		t.Fatalf("ResolveBulk: %v", err)
	}
	if res.ResolvedCount != 0 {
		t.Errorf("resolved_count = %d, want 0", res.ResolvedCount)
	}
	if len(res.ChunksRemoved) != 0 {
		t.Errorf("chunks_removed = %v, want none", res.ChunksRemoved)
	}
}
