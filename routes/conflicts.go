package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/oyounis19/beyond-rag/internal/database"
	"github.com/oyounis19/beyond-rag/services"
	"github.com/oyounis19/beyond-rag/utils"
)

type ConflictHandler struct {
	resolution *services.ResolutionService
	store      *database.Store
}

func NewConflictHandler(resolution *services.ResolutionService, store *database.Store) *ConflictHandler {
	return &ConflictHandler{resolution: resolution, store: store}
}

// List returns open conflicts enriched with both chunks' text so a reviewer
// can decide without extra lookups.
func (h *ConflictHandler) List(c *gin.Context) {
	conflicts, err := h.resolution.ListOpen(c.Request.Context(), 200)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}

	out := make([]gin.H, 0, len(conflicts))
	for _, cf := range conflicts {
		entry := gin.H{
			"id":                cf.ID,
			"new_chunk_id":      cf.NewChunkID,
			"existing_chunk_id": cf.ExistingChunkID,
			"label":             cf.Label,
			"score":             cf.Score,
			"neighbor_sim":      cf.NeighborSim,
			"judged_by":         cf.JudgedBy,
		}
		if chunk, err := h.store.GetChunk(c.Request.Context(), cf.NewChunkID); err == nil && chunk != nil {
			entry["new_chunk_text"] = chunk.Text
			entry["new_document_id"] = chunk.DocumentID
		}
		if chunk, err := h.store.GetChunk(c.Request.Context(), cf.ExistingChunkID); err == nil && chunk != nil {
			entry["existing_chunk_text"] = chunk.Text
			entry["existing_document_id"] = chunk.DocumentID
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, out)
}

type resolveRequest struct {
	Action string `json:"action" binding:"required,oneof=ignore supersede"`
	Note   string `json:"note"`
}

// Resolve applies a reviewer decision to one conflict.
func (h *ConflictHandler) Resolve(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithBadRequest(c, "action must be one of: ignore, supersede", nil)
		return
	}

	result, err := h.resolution.Resolve(c.Request.Context(), id, req.Action, req.Note)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ResolveAll applies one action to every open conflict.
func (h *ConflictHandler) ResolveAll(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithBadRequest(c, "action must be one of: ignore, supersede", nil)
		return
	}

	open, err := h.resolution.ListOpen(c.Request.Context(), 0)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	ids := make([]uuid.UUID, len(open))
	for i, cf := range open {
		ids[i] = cf.ID
	}

	result, err := h.resolution.ResolveBulk(c.Request.Context(), ids, req.Action, req.Note)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
