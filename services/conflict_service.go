package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/oyounis19/beyond-rag/internal/ai"
	"github.com/oyounis19/beyond-rag/internal/logger"
	"github.com/oyounis19/beyond-rag/internal/vector"
	"github.com/oyounis19/beyond-rag/models"
	"github.com/oyounis19/beyond-rag/utils"
)

type conflictStore interface {
	InsertConflicts(ctx context.Context, conflicts []models.Conflict) (int, error)
}

type conflictIndex interface {
	Vector(ctx context.Context, chunkID uuid.UUID) ([]float32, error)
	Neighbors(ctx context.Context, vec []float32, excludeDocument uuid.UUID, limit int) ([]vector.Neighbor, error)
}

type nliClassifier interface {
	Classify(ctx context.Context, pairs []ai.NLIPair) ([]ai.NLIScores, error)
}

type conflictJudge interface {
	Judge(ctx context.Context, chunk1, chunk2 string) (*ai.Verdict, error)
}

// ConflictThresholds gate the cheap NLI tier. Pairs no bucket claims
// escalate to the LLM verifier.
type ConflictThresholds struct {
	Duplicate     float64
	Contradiction float64
	Neutral       float64
}

// ConflictService runs two-tier conflict detection for a document being
// published: nearest neighbors from the vector index, a batched NLI pass,
// then LLM adjudication for the ambiguous remainder.
type ConflictService struct {
	store      conflictStore
	index      conflictIndex
	nli        nliClassifier
	verifier   conflictJudge
	topK       int
	thresholds ConflictThresholds
	sem        *semaphore.Weighted
}

func NewConflictService(store conflictStore, index conflictIndex, nli nliClassifier,
	verifier conflictJudge, topK int, thresholds ConflictThresholds, verifierConcurrency int64) *ConflictService {
	return &ConflictService{
		store:      store,
		index:      index,
		nli:        nli,
		verifier:   verifier,
		topK:       topK,
		thresholds: thresholds,
		sem:        semaphore.NewWeighted(verifierConcurrency),
	}
}

// AnalysisResult summarizes one detection run.
type AnalysisResult struct {
	Conflicts      []models.Conflict
	Duplicates     int
	Contradictions int
	Inserted       int
}

// candidate is one (new chunk, existing neighbor) pair awaiting judgment.
type candidate struct {
	newChunk models.Chunk
	neighbor vector.Neighbor
}

// Analyze detects duplicates and contradictions between the document's
// chunks and the rest of the corpus. Index and NLI failures abort the run;
// individual verifier failures are logged and the pair skipped. All
// resulting records are persisted in a single transaction. The progress
// callback fires after each chunk's neighbors are gathered.
func (s *ConflictService) Analyze(ctx context.Context, documentID uuid.UUID,
	chunks []models.Chunk, progress func(processed, total int)) (*AnalysisResult, error) {

	candidates, err := s.gatherCandidates(ctx, documentID, chunks, progress)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &AnalysisResult{}, nil
	}

	pairs := make([]ai.NLIPair, len(candidates))
	for i, c := range candidates {
		pairs[i] = ai.NLIPair{Premise: c.newChunk.Text, Hypothesis: c.neighbor.Text}
	}
	scores, err := s.nli.Classify(ctx, pairs)
	if err != nil {
		return nil, err
	}

	var conflicts []models.Conflict
	var escalations []int
	for i, score := range scores {
		switch {
		case score.Entailment > s.thresholds.Duplicate:
			conflicts = append(conflicts, s.record(candidates[i], models.LabelDuplicate, score.Entailment, models.JudgedByNLI))
		case score.Contradiction > s.thresholds.Contradiction:
			conflicts = append(conflicts, s.record(candidates[i], models.LabelContradiction, score.Contradiction, models.JudgedByNLI))
		case score.Neutral > s.thresholds.Neutral:
			// Confidently unrelated, nothing to record.
		default:
			escalations = append(escalations, i)
		}
	}

	conflicts = append(conflicts, s.escalate(ctx, candidates, scores, escalations)...)
	conflicts = dedupePairs(conflicts)

	result := &AnalysisResult{Conflicts: conflicts}
	for _, c := range conflicts {
		switch c.Label {
		case models.LabelDuplicate:
			result.Duplicates++
		case models.LabelContradiction:
			result.Contradictions++
		}
	}

	inserted, err := s.store.InsertConflicts(ctx, conflicts)
	if err != nil {
		return nil, err
	}
	result.Inserted = inserted
	return result, nil
}

func (s *ConflictService) gatherCandidates(ctx context.Context, documentID uuid.UUID,
	chunks []models.Chunk, progress func(processed, total int)) ([]candidate, error) {

	var candidates []candidate
	for i, chunk := range chunks {
		vec, err := s.index.Vector(ctx, chunk.ID)
		if err != nil {
			return nil, err
		}
		if vec == nil {
			return nil, utils.NewError(utils.KindInconsistentState,
				fmt.Sprintf("chunk %s has no stored embedding", chunk.ID))
		}

		neighbors, err := s.index.Neighbors(ctx, vec, documentID, s.topK)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbors {
			if n.Text == "" {
				continue
			}
			candidates = append(candidates, candidate{newChunk: chunk, neighbor: n})
		}

		if progress != nil {
			progress(i+1, len(chunks))
		}
	}
	return candidates, nil
}

// escalate fans ambiguous pairs out to the LLM verifier under the
// concurrency cap. A failed or NEUTRAL verdict drops the pair.
func (s *ConflictService) escalate(ctx context.Context, candidates []candidate,
	scores []ai.NLIScores, indices []int) []models.Conflict {

	var mu sync.Mutex
	var out []models.Conflict
	var wg sync.WaitGroup

	for _, idx := range indices {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			logger.Warn("Verifier escalation aborted", "error", err)
			break
		}

		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer s.sem.Release(1)

			c := candidates[idx]
			verdict, err := s.verifier.Judge(ctx, c.newChunk.Text, c.neighbor.Text)
			if err != nil {
				logger.Warn("Verifier failed for chunk pair, skipping",
					"new_chunk", c.newChunk.ID, "existing_chunk", c.neighbor.ChunkID, "error", err)
				return
			}

			var label string
			var score float64
			switch verdict.Label {
			case ai.VerdictEntailment:
				label, score = models.LabelDuplicate, scores[idx].Entailment
			case ai.VerdictContradiction:
				label, score = models.LabelContradiction, scores[idx].Contradiction
			default:
				return
			}

			mu.Lock()
			out = append(out, s.record(c, label, score, models.JudgedByLLM))
			mu.Unlock()
		}(idx)
	}

	wg.Wait()
	return out
}

func (s *ConflictService) record(c candidate, label string, score float64, judgedBy string) models.Conflict {
	sim := c.neighbor.Score
	return models.Conflict{
		ID:              uuid.New(),
		NewChunkID:      c.newChunk.ID,
		ExistingChunkID: c.neighbor.ChunkID,
		Label:           label,
		Score:           score,
		NeighborSim:     &sim,
		JudgedBy:        judgedBy,
	}
}

// dedupePairs keeps the first record per (new, existing) pair. Neighbor
// lists can surface the same existing chunk for one new chunk when the
// index returns near-identical points.
func dedupePairs(conflicts []models.Conflict) []models.Conflict {
	type pair struct{ a, b uuid.UUID }
	seen := make(map[pair]bool, len(conflicts))

	out := conflicts[:0]
	for _, c := range conflicts {
		key := pair{c.NewChunkID, c.ExistingChunkID}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}
