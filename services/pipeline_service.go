package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/oyounis19/beyond-rag/internal/logger"
	"github.com/oyounis19/beyond-rag/models"
)

type pipelineStore interface {
	GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error)
	ListChunks(ctx context.Context, documentID uuid.UUID) ([]models.Chunk, error)
	InsertChunks(ctx context.Context, chunks []models.Chunk) error
	UpdateDocumentStatus(ctx context.Context, id uuid.UUID, status string, effectiveAt *time.Time) error
}

type pipelineObjectStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

type pipelineParser interface {
	Parse(ctx context.Context, extension string, data []byte) (string, error)
	ParseURL(ctx context.Context, pageURL string) (string, error)
}

type pipelineChunker interface {
	ChunkText(documentID uuid.UUID, text string) []models.Chunk
}

type pipelineEmbedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type pipelineIndex interface {
	UpsertChunk(ctx context.Context, chunkID, documentID uuid.UUID, idx int, text string, vec []float32) error
}

type pipelineAnalyzer interface {
	Analyze(ctx context.Context, documentID uuid.UUID, chunks []models.Chunk,
		progress func(processed, total int)) (*AnalysisResult, error)
}

// PipelineService drives a document from draft to published: parse, chunk,
// embed, analyze for conflicts, and either publish or park it for review.
// Progress streams over a channel so the HTTP layer can relay it as
// server-sent events.
type PipelineService struct {
	store    pipelineStore
	objects  pipelineObjectStore
	parser   pipelineParser
	chunker  pipelineChunker
	embedder pipelineEmbedder
	index    pipelineIndex
	analyzer pipelineAnalyzer
	timeout  time.Duration
}

func NewPipelineService(store pipelineStore, objects pipelineObjectStore, parser pipelineParser,
	chunker pipelineChunker, embedder pipelineEmbedder, index pipelineIndex, analyzer pipelineAnalyzer) *PipelineService {
	return &PipelineService{
		store:    store,
		objects:  objects,
		parser:   parser,
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		analyzer: analyzer,
		timeout:  30 * time.Minute,
	}
}

// Publish starts the pipeline for a document and returns the event stream.
// The run is detached from the caller's context: closing the SSE connection
// must not abandon a half-embedded document.
func (p *PipelineService) Publish(documentID uuid.UUID) <-chan models.ProgressEvent {
	events := make(chan models.ProgressEvent, 16)

	go func() {
		defer close(events)

		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		if err := p.run(ctx, documentID, events); err != nil {
			logger.Error("Publish pipeline failed", "document_id", documentID, "error", err)
			emit(events, models.ProgressEvent{
				Stage:    models.StageError,
				Progress: 0,
				Extra:    map[string]any{"error": err.Error(), "ok": false},
			})
		}
	}()

	return events
}

// emit delivers an event without ever blocking the pipeline. When the
// consumer stops draining (a dropped SSE client) the buffer fills up; the
// oldest buffered event is discarded to make room. The document's terminal
// state is persisted before the terminal event, so reaching it never
// depends on a reader.
func emit(events chan models.ProgressEvent, ev models.ProgressEvent) {
	for {
		select {
		case events <- ev:
			return
		default:
			select {
			case <-events:
			default:
			}
		}
	}
}

func (p *PipelineService) run(ctx context.Context, documentID uuid.UUID, events chan models.ProgressEvent) error {
	doc, err := p.store.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}

	if doc.Status == models.StatusPublished {
		emit(events, models.ProgressEvent{
			Stage:    models.StageComplete,
			Progress: 100,
			Extra:    map[string]any{"already_published": true},
		})
		return nil
	}

	// Parse.
	emit(events, models.ProgressEvent{Stage: models.StageParsing, Progress: 0})
	text, err := p.extractText(ctx, doc)
	if err != nil {
		return err
	}
	emit(events, models.ProgressEvent{
		Stage:    models.StageParsed,
		Progress: 20,
		Extra:    map[string]any{"text_length": len(text)},
	})

	// Chunk, reusing existing rows when a prior run got this far.
	emit(events, models.ProgressEvent{Stage: models.StageChunking, Progress: 20})
	chunks, err := p.store.ListChunks(ctx, documentID)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		chunks = p.chunker.ChunkText(documentID, text)
		if err := p.store.InsertChunks(ctx, chunks); err != nil {
			return err
		}
	} else {
		logger.Info("Reusing chunks from earlier run", "document_id", documentID, "chunks", len(chunks))
	}
	emit(events, models.ProgressEvent{
		Stage:    models.StageChunked,
		Progress: 40,
		Extra:    map[string]any{"chunks_created": len(chunks)},
	})

	// Embed and index. An empty document has nothing to embed and publishes
	// immediately after the (trivial) analysis.
	emit(events, models.ProgressEvent{Stage: models.StageEmbedding, Progress: 40})
	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		vectors, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return err
		}
		for i, c := range chunks {
			if err := p.index.UpsertChunk(ctx, c.ID, documentID, c.Idx, c.Text, vectors[i]); err != nil {
				return err
			}
		}
	}
	emit(events, models.ProgressEvent{
		Stage:    models.StageEmbedded,
		Progress: 70,
		Extra:    map[string]any{"chunks_embedded": len(chunks)},
	})

	// Conflict analysis.
	emit(events, models.ProgressEvent{Stage: models.StageAnalyzing, Progress: 70})
	result, err := p.analyzer.Analyze(ctx, documentID, chunks, func(processed, total int) {
		emit(events, models.ProgressEvent{
			Stage:    models.StageAnalyzing,
			Progress: 75,
			Extra:    map[string]any{"chunks_processed": processed, "total_chunks": total},
		})
	})
	if err != nil {
		return err
	}
	emit(events, models.ProgressEvent{
		Stage:    models.StageAnalyzed,
		Progress: 90,
		Extra: map[string]any{
			"duplicates_count":     result.Duplicates,
			"contradictions_count": result.Contradictions,
		},
	})

	if len(result.Conflicts) > 0 {
		if err := p.store.UpdateDocumentStatus(ctx, documentID, models.StatusPendingReview, nil); err != nil {
			return err
		}
		emit(events, models.ProgressEvent{
			Stage:    models.StageConflictsDetected,
			Progress: 95,
			Extra: map[string]any{
				"requires_review": true,
				"conflicts":       result.Conflicts,
			},
		})
		return nil
	}

	// Clean run: publish immediately.
	emit(events, models.ProgressEvent{Stage: models.StagePublishing, Progress: 90})
	now := time.Now().UTC()
	if err := p.store.UpdateDocumentStatus(ctx, documentID, models.StatusPublished, &now); err != nil {
		return err
	}
	emit(events, models.ProgressEvent{
		Stage:    models.StageComplete,
		Progress: 100,
		Extra:    map[string]any{"published": true},
	})
	return nil
}

func (p *PipelineService) extractText(ctx context.Context, doc *models.Document) (string, error) {
	if doc.Extension == ExtensionURL {
		return p.parser.ParseURL(ctx, doc.ExternalRef)
	}
	data, err := p.objects.Get(ctx, doc.StorageKey)
	if err != nil {
		return "", err
	}
	return p.parser.Parse(ctx, doc.Extension, data)
}
