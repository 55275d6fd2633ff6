package services

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func newTestChunker(t *testing.T, size, overlap int) *ChunkingService {
	t.Helper()
	s, err := NewChunkingService(size, overlap)
	if err != nil {
		t.Skipf("tokenizer unavailable: %v", err)
	}
	return s
}

func TestChunkTextEmptyInput(t *testing.T) {
	s := newTestChunker(t, 200, 25)
	if got := s.ChunkText(uuid.New(), "   \n\n  "); len(got) != 0 {
		t.Errorf("expected no chunks for blank input, got %d", len(got))
	}
}

func TestChunkTextShortInputSingleChunk(t *testing.T) {
	s := newTestChunker(t, 200, 25)
	docID := uuid.New()
	chunks := s.ChunkText(docID, "The cafeteria opens at eight in the morning.")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if c.DocumentID != docID || c.Idx != 0 {
		t.Errorf("chunk metadata wrong: %+v", c)
	}
	if c.Hash == "" {
		t.Error("chunk hash should be set")
	}
}

func TestChunkTextRespectsTokenBudget(t *testing.T) {
	s := newTestChunker(t, 50, 10)
	var sb strings.Builder
	for i := 0; i < 60; i++ {
		sb.WriteString("Every chunk stays within its configured token budget. ")
	}

	chunks := s.ChunkText(uuid.New(), sb.String())
	if len(chunks) < 2 {
		t.Fatalf("long input should split, got %d chunks", len(chunks))
	}
	for i, c := range chunks {
		if n := s.tokenLen(c.Text); n > 50 {
			t.Errorf("chunk %d has %d tokens, budget is 50", i, n)
		}
		if c.Idx != i {
			t.Errorf("chunk %d has idx %d, want sequential", i, c.Idx)
		}
	}
}

func TestChunkTextDeterministic(t *testing.T) {
	s := newTestChunker(t, 50, 10)
	text := strings.Repeat("Determinism matters for fingerprint stability across runs. ", 40)

	docID := uuid.New()
	a := s.ChunkText(docID, text)
	b := s.ChunkText(docID, text)
	if len(a) != len(b) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Text != b[i].Text || a[i].Hash != b[i].Hash {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestChunkTextUnbrokenTextHardSplits(t *testing.T) {
	s := newTestChunker(t, 20, 5)
	text := strings.Repeat("abcdefghij", 100) // no separators at all

	chunks := s.ChunkText(uuid.New(), text)
	if len(chunks) < 2 {
		t.Fatalf("unbroken text over budget should hard-split, got %d chunks", len(chunks))
	}
	for i, c := range chunks {
		if n := s.tokenLen(c.Text); n > 20 {
			t.Errorf("chunk %d has %d tokens, budget is 20", i, n)
		}
	}
}

func TestChunkTextParagraphsPreferred(t *testing.T) {
	s := newTestChunker(t, 30, 5)
	text := "First paragraph about shipping times and carriers.\n\nSecond paragraph about return windows and refunds.\n\nThird paragraph about warranty coverage and claims."

	chunks := s.ChunkText(uuid.New(), text)
	for i, c := range chunks {
		if strings.HasPrefix(c.Text, "\n") || strings.HasSuffix(c.Text, "\n") {
			t.Errorf("chunk %d has untrimmed separator edges: %q", i, c.Text)
		}
	}
}
