package ai

import (
	"context"
	"testing"
	"time"
)

type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) Complete(ctx context.Context, system, user string) (string, error) {
	return f.response, f.err
}

func TestJudgeParsesCleanJSON(t *testing.T) {
	llm := &fakeLLM{response: `{
		"reasoning": {
			"chunk1_summary": "battery is 5000 mAh",
			"chunk2_summary": "battery is 4000 mAh",
			"comparison": "the capacities disagree",
			"conclusion": "contradiction"
		},
		"label": "CONTRADICTION"
	}`}

	v := NewVerifier(llm, 30*time.Second)
	verdict, err := v.Judge(context.Background(), "chunk one", "chunk two")
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if verdict.Label != VerdictContradiction {
		t.Errorf("label = %q, want %q", verdict.Label, VerdictContradiction)
	}
	if verdict.Reasoning.Comparison == "" {
		t.Error("expected reasoning.comparison to survive parsing")
	}
}

func TestJudgeRepairsFencedOutput(t *testing.T) {
	llm := &fakeLLM{response: "```json\n{\"reasoning\": {\"chunk1_summary\": \"a\", \"chunk2_summary\": \"b\", \"comparison\": \"c\", \"conclusion\": \"d\"}, \"label\": \"neutral\"}\n```"}

	v := NewVerifier(llm, 30*time.Second)
	verdict, err := v.Judge(context.Background(), "x", "y")
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if verdict.Label != VerdictNeutral {
		t.Errorf("label = %q, want %q (case-normalized)", verdict.Label, VerdictNeutral)
	}
}

func TestJudgeRejectsUnknownLabel(t *testing.T) {
	llm := &fakeLLM{response: `{"reasoning": {}, "label": "MAYBE"}`}

	v := NewVerifier(llm, 30*time.Second)
	if _, err := v.Judge(context.Background(), "x", "y"); err == nil {
		t.Fatal("expected error for unknown label")
	}
}

func TestJudgeRejectsProse(t *testing.T) {
	llm := &fakeLLM{response: "I think these two chunks are probably fine together."}

	v := NewVerifier(llm, 30*time.Second)
	if _, err := v.Judge(context.Background(), "x", "y"); err == nil {
		t.Fatal("expected error for non-JSON output")
	}
}
