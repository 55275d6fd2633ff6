package vector

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/oyounis19/beyond-rag/internal/config"
	"github.com/oyounis19/beyond-rag/internal/logger"
	"github.com/oyounis19/beyond-rag/utils"
)

// Neighbor is one similarity hit from the index, carrying enough payload to
// feed conflict adjudication without a relational round trip.
type Neighbor struct {
	ChunkID    uuid.UUID
	DocumentID uuid.UUID
	Text       string
	Score      float64
}

// Index is the vector gateway over Qdrant. Postgres remains the source of
// truth; points here are a mirror keyed by chunk id.
type Index struct {
	client     *qdrant.Client
	collection string
	dimensions int
}

// NewIndex connects to Qdrant and ensures the collection exists with the
// configured dimensionality and cosine distance.
func NewIndex(ctx context.Context, cfg *config.Config) (*Index, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.QdrantHost,
		Port: cfg.QdrantPort,
	})
	if err != nil {
		return nil, utils.WrapError(utils.KindIndex, "connect vector index", err)
	}

	idx := &Index{
		client:     client,
		collection: cfg.QdrantCollection,
		dimensions: cfg.VectorDimensions,
	}
	if err := idx.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (i *Index) ensureCollection(ctx context.Context) error {
	exists, err := i.client.CollectionExists(ctx, i.collection)
	if err != nil {
		return utils.WrapError(utils.KindIndex, "check collection", err)
	}
	if exists {
		return nil
	}

	err = i.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: i.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(i.dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return utils.WrapError(utils.KindIndex, "create collection", err)
	}
	logger.Info("Created vector collection", "collection", i.collection, "dimensions", i.dimensions)
	return nil
}

// UpsertChunk writes one chunk's embedding, keyed by chunk id, with the
// payload the conflict engine reads back at query time.
func (i *Index) UpsertChunk(ctx context.Context, chunkID, documentID uuid.UUID, idx int, text string, vector []float32) error {
	if len(vector) != i.dimensions {
		return utils.NewError(utils.KindIndex,
			fmt.Sprintf("vector has %d dimensions, collection expects %d", len(vector), i.dimensions))
	}

	_, err := i.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: i.collection,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDUUID(chunkID.String()),
				Vectors: qdrant.NewVectors(vector...),
				Payload: qdrant.NewValueMap(map[string]any{
					"document_id": documentID.String(),
					"idx":         int64(idx),
					"text":        text,
				}),
			},
		},
	})
	if err != nil {
		return utils.WrapError(utils.KindIndex, "upsert point", err)
	}
	return nil
}

// Vector retrieves the stored embedding for a chunk. Returns nil when the
// point is missing.
func (i *Index) Vector(ctx context.Context, chunkID uuid.UUID) ([]float32, error) {
	points, err := i.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: i.collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(chunkID.String())},
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, utils.WrapError(utils.KindIndex, "get point", err)
	}
	if len(points) == 0 || points[0].Vectors == nil {
		return nil, nil
	}

	vec := points[0].Vectors.GetVector()
	if vec == nil {
		return nil, nil
	}
	return vec.Data, nil
}

// Neighbors queries for the closest points to vec, excluding the document
// being published so a draft never conflicts with itself.
func (i *Index) Neighbors(ctx context.Context, vec []float32, excludeDocument uuid.UUID, limit int) ([]Neighbor, error) {
	points, err := i.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: i.collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		Filter: &qdrant.Filter{
			MustNot: []*qdrant.Condition{
				qdrant.NewMatch("document_id", excludeDocument.String()),
			},
		},
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, utils.WrapError(utils.KindIndex, "query neighbors", err)
	}

	neighbors := make([]Neighbor, 0, len(points))
	for _, p := range points {
		n := Neighbor{Score: float64(p.Score)}

		if id := p.Id.GetUuid(); id != "" {
			parsed, err := uuid.Parse(id)
			if err != nil {
				logger.Warn("Skipping neighbor with non-uuid point id", "point_id", id)
				continue
			}
			n.ChunkID = parsed
		}
		if v, ok := p.Payload["document_id"]; ok {
			parsed, err := uuid.Parse(v.GetStringValue())
			if err != nil {
				logger.Warn("Skipping neighbor with bad document_id payload", "chunk_id", n.ChunkID)
				continue
			}
			n.DocumentID = parsed
		}
		if v, ok := p.Payload["text"]; ok {
			n.Text = v.GetStringValue()
		}
		neighbors = append(neighbors, n)
	}
	return neighbors, nil
}

// DeletePoints removes the given chunks from the index.
func (i *Index) DeletePoints(ctx context.Context, chunkIDs ...uuid.UUID) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	ids := make([]*qdrant.PointId, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		ids = append(ids, qdrant.NewIDUUID(id.String()))
	}

	_, err := i.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: i.collection,
		Points:         qdrant.NewPointsSelector(ids...),
	})
	if err != nil {
		return utils.WrapError(utils.KindIndex, "delete points", err)
	}
	return nil
}
