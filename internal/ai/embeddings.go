package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/oyounis19/beyond-rag/internal/logger"
	"github.com/oyounis19/beyond-rag/utils"
)

// EmbeddingClient talks to the embedding inference service over HTTP. The
// service exposes a TEI-style POST /embed taking {"inputs": [...]} and
// returning one vector per input.
type EmbeddingClient struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewEmbeddingClient(baseURL string) *EmbeddingClient {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "EmbeddingService",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &EmbeddingClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
		breaker: breaker,
	}
}

type embedRequest struct {
	Inputs []string `json:"inputs"`
}

// Embed returns one L2-normalized vector per input text, in input order.
func (c *EmbeddingClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embedRequest{Inputs: texts})
	if err != nil {
		return nil, utils.WrapError(utils.KindEmbed, "encode embed request", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("embedding service returned %d: %s", resp.StatusCode, snippet)
		}

		var vectors [][]float32
		if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
			return nil, fmt.Errorf("decode embed response: %w", err)
		}
		return vectors, nil
	})
	if err != nil {
		return nil, utils.WrapError(utils.KindEmbed, "embed texts", err)
	}

	vectors := result.([][]float32)
	if len(vectors) != len(texts) {
		return nil, utils.NewError(utils.KindEmbed,
			fmt.Sprintf("embedding service returned %d vectors for %d inputs", len(vectors), len(texts)))
	}
	for i := range vectors {
		normalize(vectors[i])
	}
	return vectors, nil
}

// normalize scales v to unit length in place, so cosine similarity equals
// dot product downstream. Zero vectors are left untouched.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}
