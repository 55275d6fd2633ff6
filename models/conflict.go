package models

import (
	"time"

	"github.com/google/uuid"
)

// Conflict labels.
const (
	LabelDuplicate     = "duplicate"
	LabelContradiction = "contradiction"
)

// Who adjudicated the pair.
const (
	JudgedByNLI = "nli"
	JudgedByLLM = "llm"
)

// Resolution actions.
const (
	ActionSupersede = "supersede"
	ActionIgnore    = "ignore"
)

// Conflict records a duplicate or contradiction between a chunk of the
// document being published (NewChunkID) and a chunk already in the corpus
// (ExistingChunkID). Open while ResolvedAt is nil.
type Conflict struct {
	ID               uuid.UUID  `json:"id"`
	NewChunkID       uuid.UUID  `json:"new_chunk_id"`
	ExistingChunkID  uuid.UUID  `json:"existing_chunk_id"`
	Label            string     `json:"label"`
	Score            float64    `json:"score"`
	NeighborSim      *float64   `json:"neighbor_sim,omitempty"`
	JudgedBy         string     `json:"judged_by"`
	ResolutionAction *string    `json:"resolution_action,omitempty"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	ResolverNote     *string    `json:"resolver_note,omitempty"`
}

// Open reports whether the conflict still needs adjudication.
func (c *Conflict) Open() bool { return c.ResolvedAt == nil }
