package models

import (
	"time"

	"github.com/google/uuid"
)

// Document status values. Only terminal states are persisted; the pipeline's
// intermediate states exist as progress events.
const (
	StatusDraft         = "draft"
	StatusPendingReview = "pending_review"
	StatusPublished     = "published"
	StatusArchived      = "archived"
)

// Document is a row in the documents table.
type Document struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	ExternalRef string     `json:"external_ref"`
	FileHash    string     `json:"file_hash"`
	StorageKey  string     `json:"storage_key"`
	Extension   string     `json:"extension"`
	Status      string     `json:"status"`
	EffectiveAt *time.Time `json:"effective_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ValidTransition reports whether a status change is allowed.
// draft → pending_review, draft → published, pending_review → published,
// and any state → archived.
func ValidTransition(from, to string) bool {
	if to == StatusArchived {
		return true
	}
	switch from {
	case StatusDraft:
		return to == StatusPendingReview || to == StatusPublished
	case StatusPendingReview:
		return to == StatusPublished
	}
	return false
}
