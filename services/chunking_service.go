package services

import (
	"strings"

	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"

	"github.com/oyounis19/beyond-rag/models"
	"github.com/oyounis19/beyond-rag/utils"
)

// splitSeparators are tried in order, coarsest first. The empty separator
// is the character-level fallback for pathological unbroken text.
var splitSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// ChunkingService splits parsed text into token-bounded, overlapping chunks.
// Sizes are measured with the cl100k_base tokenizer so chunk budgets line up
// with the embedding model's input window. Splitting is deterministic: the
// same text always yields the same chunks in the same order.
type ChunkingService struct {
	chunkSize int
	overlap   int
	encoder   *tiktoken.Tiktoken
}

func NewChunkingService(chunkSize, overlap int) (*ChunkingService, error) {
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, utils.WrapError(utils.KindChunk, "load tokenizer", err)
	}
	return &ChunkingService{
		chunkSize: chunkSize,
		overlap:   overlap,
		encoder:   encoder,
	}, nil
}

func (s *ChunkingService) tokenLen(text string) int {
	return len(s.encoder.Encode(text, nil, nil))
}

// ChunkText splits text and materializes chunk rows for the document.
// Empty or whitespace-only input yields no chunks.
func (s *ChunkingService) ChunkText(documentID uuid.UUID, text string) []models.Chunk {
	pieces := s.splitRecursive(strings.TrimSpace(text), splitSeparators)

	chunks := make([]models.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, models.Chunk{
			ID:         uuid.New(),
			DocumentID: documentID,
			Idx:        i,
			Text:       piece,
			Hash:       utils.FingerprintString(piece),
		})
	}
	return chunks
}

// splitRecursive breaks text on the coarsest separator that appears, then
// recurses into any fragment still over budget before merging fragments
// back up to chunk size with token overlap.
func (s *ChunkingService) splitRecursive(text string, separators []string) []string {
	if text == "" {
		return nil
	}
	if s.tokenLen(text) <= s.chunkSize {
		return []string{text}
	}

	sep := separators[len(separators)-1]
	rest := separators
	for i, candidate := range separators {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}

	var fragments []string
	if sep == "" {
		fragments = splitByTokenWindow(s.encoder, text, s.chunkSize, s.overlap)
	} else {
		for _, part := range strings.Split(text, sep) {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if s.tokenLen(part) > s.chunkSize && len(rest) > 0 {
				fragments = append(fragments, s.splitRecursive(part, rest)...)
			} else {
				fragments = append(fragments, part)
			}
		}
	}

	return s.mergeFragments(fragments, joinerFor(sep))
}

// mergeFragments greedily packs fragments into chunks up to chunkSize
// tokens, carrying the trailing fragments worth up to overlap tokens into
// the next chunk.
func (s *ChunkingService) mergeFragments(fragments []string, joiner string) []string {
	sepTokens := s.tokenLen(joiner)

	var out []string
	var window []string
	windowTokens := 0

	flush := func() {
		if len(window) == 0 {
			return
		}
		out = append(out, strings.Join(window, joiner))

		// Retain a token-budgeted tail as overlap for the next chunk.
		var tail []string
		tailTokens := 0
		for i := len(window) - 1; i >= 0; i-- {
			t := s.tokenLen(window[i])
			if len(tail) > 0 {
				t += sepTokens
			}
			if tailTokens+t > s.overlap {
				break
			}
			tail = append([]string{window[i]}, tail...)
			tailTokens += t
		}
		window = tail
		windowTokens = tailTokens
	}

	for _, frag := range fragments {
		cost := s.tokenLen(frag)
		if len(window) > 0 {
			cost += sepTokens
		}
		if windowTokens+cost > s.chunkSize && len(window) > 0 {
			flush()
			cost = s.tokenLen(frag)
			if len(window) > 0 {
				cost += sepTokens
			}
			// Drop the overlap tail when it would push this fragment
			// over budget on its own.
			if windowTokens+cost > s.chunkSize {
				window = nil
				windowTokens = 0
				cost = s.tokenLen(frag)
			}
		}
		window = append(window, frag)
		windowTokens += cost
	}
	if len(window) > 0 {
		out = append(out, strings.Join(window, joiner))
	}
	return out
}

// splitByTokenWindow hard-splits unbreakable text by token count.
func splitByTokenWindow(encoder *tiktoken.Tiktoken, text string, size, overlap int) []string {
	tokens := encoder.Encode(text, nil, nil)
	step := size - overlap
	if step <= 0 {
		step = size
	}

	var out []string
	for start := 0; start < len(tokens); start += step {
		end := start + size
		if end > len(tokens) {
			end = len(tokens)
		}
		out = append(out, encoder.Decode(tokens[start:end]))
		if end == len(tokens) {
			break
		}
	}
	return out
}

func joinerFor(sep string) string {
	switch sep {
	case "\n\n", "\n":
		return "\n"
	case ". ":
		return ". "
	default:
		return " "
	}
}
