package ai

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSoftmaxSumsToOne(t *testing.T) {
	probs := softmax([]float64{2.0, -1.0, 0.5})
	var sum float64
	for _, p := range probs {
		sum += p
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("softmax probabilities sum to %f, want 1.0", sum)
	}
	if probs[0] <= probs[1] || probs[0] <= probs[2] {
		t.Errorf("largest logit should yield largest probability, got %v", probs)
	}
}

func TestSoftmaxLargeLogitsStable(t *testing.T) {
	probs := softmax([]float64{1000, 999, 998})
	for i, p := range probs {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			t.Fatalf("probs[%d] = %f, expected finite value", i, p)
		}
	}
}

func nliTestServer(t *testing.T, logits func(pairs [][2]string) [][]float64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/predict" {
			http.NotFound(w, r)
			return
		}
		var req nliRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(nliResponse{Logits: logits(req.Pairs)})
	}))
}

func TestClassifyScoresPairs(t *testing.T) {
	srv := nliTestServer(t, func(pairs [][2]string) [][]float64 {
		out := make([][]float64, len(pairs))
		for i := range pairs {
			out[i] = []float64{5, 0, 0} // strong contradiction
		}
		return out
	})
	defer srv.Close()

	client := NewNLIClient(srv.URL)
	scores, err := client.Classify(context.Background(), []NLIPair{
		{Premise: "a", Hypothesis: "b"},
		{Premise: "c", Hypothesis: "d"},
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("got %d score rows, want 2", len(scores))
	}
	for i, s := range scores {
		if s.Contradiction < 0.9 {
			t.Errorf("row %d contradiction = %f, want > 0.9", i, s.Contradiction)
		}
	}
}

func TestClassifyRejectsRowCountMismatch(t *testing.T) {
	srv := nliTestServer(t, func(pairs [][2]string) [][]float64 {
		return [][]float64{{1, 0, 0}} // always one row
	})
	defer srv.Close()

	client := NewNLIClient(srv.URL)
	_, err := client.Classify(context.Background(), []NLIPair{
		{Premise: "a", Hypothesis: "b"},
		{Premise: "c", Hypothesis: "d"},
	})
	if err == nil {
		t.Fatal("expected error on row count mismatch")
	}
}

func TestCalibrateLabelsPassesWithPinnedOrder(t *testing.T) {
	srv := nliTestServer(t, func(pairs [][2]string) [][]float64 {
		// Answer each probe with its expected position dominant, in the
		// pinned [contradiction, entailment, neutral] order.
		return [][]float64{
			{5, 0, 0},
			{0, 5, 0},
			{0, 0, 5},
		}
	})
	defer srv.Close()

	client := NewNLIClient(srv.URL)
	if err := client.CalibrateLabels(context.Background()); err != nil {
		t.Fatalf("CalibrateLabels: %v", err)
	}
}

func TestCalibrateLabelsFailsOnDriftedOrder(t *testing.T) {
	srv := nliTestServer(t, func(pairs [][2]string) [][]float64 {
		// Model emitting [entailment, contradiction, neutral] instead.
		return [][]float64{
			{0, 5, 0},
			{5, 0, 0},
			{0, 0, 5},
		}
	})
	defer srv.Close()

	client := NewNLIClient(srv.URL)
	if err := client.CalibrateLabels(context.Background()); err == nil {
		t.Fatal("expected calibration failure on label order drift")
	}
}
