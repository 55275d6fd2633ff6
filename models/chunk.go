package models

import "github.com/google/uuid"

// Chunk is a bounded-token slice of a document's normalized text.
// Text is immutable for the chunk's lifetime; modification is expressed
// by delete + reinsert.
type Chunk struct {
	ID          uuid.UUID `json:"id"`
	DocumentID  uuid.UUID `json:"document_id"`
	Idx         int       `json:"idx"`
	Text        string    `json:"text"`
	Hash        string    `json:"hash"`
	Page        *int      `json:"page,omitempty"`
	SectionPath *string   `json:"section_path,omitempty"`
}
