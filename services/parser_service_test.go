package services

import (
	"context"
	"strings"
	"testing"
)

func TestParsePlainTextValidUTF8(t *testing.T) {
	s := NewParserService(nil)
	text, err := s.Parse(context.Background(), "txt", []byte("  hello world  \n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if text != "hello world" {
		t.Errorf("got %q, want %q", text, "hello world")
	}
}

func TestParsePlainTextInvalidUTF8Replaced(t *testing.T) {
	s := NewParserService(nil)
	text, err := s.Parse(context.Background(), "md", []byte{'h', 'i', 0xff, '!'})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !strings.Contains(text, "hi") || !strings.Contains(text, "�") {
		t.Errorf("invalid bytes should be replaced, got %q", text)
	}
}

func TestParseUnsupportedExtension(t *testing.T) {
	s := NewParserService(nil)
	if _, err := s.Parse(context.Background(), "exe", []byte("MZ")); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestCleanExtractedTextCollapsesBlankLines(t *testing.T) {
	in := "First paragraph.\n\n\n\n\nSecond paragraph."
	out := CleanExtractedText(in)
	if strings.Contains(out, "\n\n\n") {
		t.Errorf("blank line runs should collapse, got %q", out)
	}
}

func TestCleanExtractedTextCollapsesSpaces(t *testing.T) {
	in := "too     many\t\tspaces   here."
	out := CleanExtractedText(in)
	if out != "too many spaces here." {
		t.Errorf("got %q", out)
	}
	// A single tab is not a run and stays put.
	if got := CleanExtractedText("a\tb."); got != "a\tb." {
		t.Errorf("lone tab should survive, got %q", got)
	}
}

func TestCleanExtractedTextMergesWrappedLines(t *testing.T) {
	in := "The quick brown fox\njumps over the lazy dog."
	out := CleanExtractedText(in)
	if out != "The quick brown fox jumps over the lazy dog." {
		t.Errorf("wrapped line should merge, got %q", out)
	}
}

func TestCleanExtractedTextKeepsSentenceBreaks(t *testing.T) {
	in := "First sentence.\nSecond sentence."
	out := CleanExtractedText(in)
	if !strings.Contains(out, "First sentence.\n") {
		t.Errorf("sentence-ending line should keep its break, got %q", out)
	}
}

func TestParseCSVNormalization(t *testing.T) {
	s := NewParserService(nil)
	in := "name,price,unused\nwidget,9.999,\n,,\ngadget,,\n"
	text, err := s.Parse(context.Background(), "csv", []byte(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if strings.Contains(text, "unused\t\n") {
		t.Errorf("fully empty column should be dropped, got %q", text)
	}
	if !strings.Contains(text, "10.00") {
		t.Errorf("numeric cell should round to two decimals, got %q", text)
	}
	if !strings.Contains(text, "gadget\t\"\"") {
		t.Errorf("missing value should render as empty quotes, got %q", text)
	}
	if got := strings.Count(text, "\n") + 1; got != 3 {
		t.Errorf("expected 3 rows (empty row dropped), got %d in %q", got, text)
	}
}

func TestParseCSVIntegerCellsUnrounded(t *testing.T) {
	s := NewParserService(nil)
	text, err := s.Parse(context.Background(), "csv", []byte("qty\n42\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !strings.Contains(text, "42") || strings.Contains(text, "42.00") {
		t.Errorf("plain integers should pass through untouched, got %q", text)
	}
}
