package utils

import (
	"encoding/json"
	"testing"
)

func TestRepairJSONValidPassthrough(t *testing.T) {
	in := `{"label":"NEUTRAL"}`
	if got := RepairJSON(in); got != in {
		t.Errorf("valid JSON was modified: %q", got)
	}
}

func TestRepairJSONCodeFence(t *testing.T) {
	in := "```json\n{\"label\": \"CONTRADICTION\"}\n```"
	got := RepairJSON(in)
	var out map[string]string
	if err := json.Unmarshal([]byte(got), &out); err != nil {
		t.Fatalf("unmarshal after repair: %v (%q)", err, got)
	}
	if out["label"] != "CONTRADICTION" {
		t.Errorf("label = %q, want CONTRADICTION", out["label"])
	}
}

func TestRepairJSONSurroundingProse(t *testing.T) {
	in := `Here is my analysis: {"label": "ENTAILMENT"} I hope this helps.`
	got := RepairJSON(in)
	if !json.Valid([]byte(got)) {
		t.Fatalf("still invalid: %q", got)
	}
}

func TestRepairJSONTrailingComma(t *testing.T) {
	in := `{"reasoning": {"conclusion": "same fact",}, "label": "ENTAILMENT",}`
	got := RepairJSON(in)
	var out struct {
		Label string `json:"label"`
	}
	if err := json.Unmarshal([]byte(got), &out); err != nil {
		t.Fatalf("unmarshal after repair: %v (%q)", err, got)
	}
	if out.Label != "ENTAILMENT" {
		t.Errorf("label = %q", out.Label)
	}
}

func TestRepairJSONSingleQuotes(t *testing.T) {
	in := `{'label': 'NEUTRAL'}`
	got := RepairJSON(in)
	if !json.Valid([]byte(got)) {
		t.Fatalf("still invalid: %q", got)
	}
}

func TestRepairJSONKeepsCommaInsideStrings(t *testing.T) {
	in := `{"note": "a, b, and c",}`
	got := RepairJSON(in)
	var out map[string]string
	if err := json.Unmarshal([]byte(got), &out); err != nil {
		t.Fatalf("unmarshal after repair: %v (%q)", err, got)
	}
	if out["note"] != "a, b, and c" {
		t.Errorf("string content was altered: %q", out["note"])
	}
}

func TestRepairJSONIrreparable(t *testing.T) {
	in := `no object here at all`
	got := RepairJSON(in)
	if json.Valid([]byte(got)) && got != "" {
		var m map[string]any
		if err := json.Unmarshal([]byte(got), &m); err == nil {
			t.Errorf("expected irreparable input to stay invalid, got %q", got)
		}
	}
}

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint([]byte("The device has a 5000 mAh battery."))
	b := Fingerprint([]byte("The device has a 5000 mAh battery."))
	if a != b {
		t.Errorf("fingerprint not deterministic: %s vs %s", a, b)
	}
	if len(a) != 16 {
		t.Errorf("fingerprint length = %d, want 16 hex chars", len(a))
	}
	if a == Fingerprint([]byte("different bytes")) {
		t.Errorf("distinct inputs collided")
	}
	if a != FingerprintString("The device has a 5000 mAh battery.") {
		t.Errorf("FingerprintString disagrees with Fingerprint")
	}
}
