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

	"github.com/oyounis19/beyond-rag/utils"
)

// Label positions in the NLI model's logit rows. The cross-encoder this
// service wraps emits logits in this fixed order; CalibrateLabels checks the
// assumption at startup so a silent model swap cannot flip verdicts.
const (
	nliContradiction = 0
	nliEntailment    = 1
	nliNeutral       = 2
)

// NLIScores are the row-softmaxed probabilities for one premise/hypothesis
// pair.
type NLIScores struct {
	Contradiction float64
	Entailment    float64
	Neutral       float64
}

// NLIPair is one premise/hypothesis input.
type NLIPair struct {
	Premise    string
	Hypothesis string
}

// NLIClient talks to the NLI inference service over HTTP. The service takes
// batched sentence pairs and returns raw logits, one row of three per pair.
type NLIClient struct {
	baseURL string
	http    *http.Client
}

func NewNLIClient(baseURL string) *NLIClient {
	return &NLIClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

type nliRequest struct {
	Pairs [][2]string `json:"pairs"`
}

type nliResponse struct {
	Logits [][]float64 `json:"logits"`
}

// Classify scores a batch of pairs. NLI failures are fatal to the caller's
// pipeline run, so errors are returned rather than degraded.
func (c *NLIClient) Classify(ctx context.Context, pairs []NLIPair) ([]NLIScores, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	req := nliRequest{Pairs: make([][2]string, len(pairs))}
	for i, p := range pairs {
		req.Pairs[i] = [2]string{p.Premise, p.Hypothesis}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, utils.WrapError(utils.KindModel, "encode nli request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, utils.WrapError(utils.KindModel, "build nli request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, utils.WrapError(utils.KindModel, "call nli service", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, utils.NewError(utils.KindModel,
			fmt.Sprintf("nli service returned %d: %s", resp.StatusCode, snippet))
	}

	var out nliResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, utils.WrapError(utils.KindModel, "decode nli response", err)
	}
	if len(out.Logits) != len(pairs) {
		return nil, utils.NewError(utils.KindModel,
			fmt.Sprintf("nli service returned %d rows for %d pairs", len(out.Logits), len(pairs)))
	}

	scores := make([]NLIScores, len(out.Logits))
	for i, row := range out.Logits {
		if len(row) != 3 {
			return nil, utils.NewError(utils.KindModel,
				fmt.Sprintf("nli logit row %d has %d entries, want 3", i, len(row)))
		}
		probs := softmax(row)
		scores[i] = NLIScores{
			Contradiction: probs[nliContradiction],
			Entailment:    probs[nliEntailment],
			Neutral:       probs[nliNeutral],
		}
	}
	return scores, nil
}

// CalibrateLabels sends sentinel pairs with known relationships and verifies
// the model's label order matches the pinned positions. Call at startup; a
// drifted or swapped model must stop the process, not misfile conflicts.
func (c *NLIClient) CalibrateLabels(ctx context.Context) error {
	probes := []struct {
		pair NLIPair
		want int
	}{
		{NLIPair{"The meeting starts at 9am.", "The meeting starts at 3pm."}, nliContradiction},
		{NLIPair{"The meeting starts at 9am.", "The meeting begins at nine in the morning."}, nliEntailment},
		{NLIPair{"The meeting starts at 9am.", "The conference room holds twelve people."}, nliNeutral},
	}

	pairs := make([]NLIPair, len(probes))
	for i, p := range probes {
		pairs[i] = p.pair
	}
	scores, err := c.Classify(ctx, pairs)
	if err != nil {
		return utils.WrapError(utils.KindModel, "nli calibration", err)
	}

	for i, p := range probes {
		got := argmax(scores[i])
		if got != p.want {
			return utils.NewError(utils.KindModel, fmt.Sprintf(
				"nli label calibration failed: probe %d expected position %d, model favored %d (label order drift?)",
				i, p.want, got))
		}
	}
	return nil
}

func argmax(s NLIScores) int {
	best, bestIdx := s.Contradiction, nliContradiction
	if s.Entailment > best {
		best, bestIdx = s.Entailment, nliEntailment
	}
	if s.Neutral > best {
		bestIdx = nliNeutral
	}
	return bestIdx
}

// softmax converts one logit row to probabilities, shifting by the max for
// numerical stability.
func softmax(logits []float64) []float64 {
	maxLogit := logits[0]
	for _, l := range logits[1:] {
		if l > maxLogit {
			maxLogit = l
		}
	}

	exps := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		exps[i] = math.Exp(l - maxLogit)
		sum += exps[i]
	}
	for i := range exps {
		exps[i] /= sum
	}
	return exps
}
