package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/oyounis19/beyond-rag/internal/database"
	"github.com/oyounis19/beyond-rag/internal/queue"
	"github.com/oyounis19/beyond-rag/internal/logger"
	"github.com/oyounis19/beyond-rag/internal/storage"
	"github.com/oyounis19/beyond-rag/internal/vector"
	"github.com/oyounis19/beyond-rag/models"
	"github.com/oyounis19/beyond-rag/services"
	"github.com/oyounis19/beyond-rag/utils"
)

const previewLength = 200

type DocumentHandler struct {
	ingestion *services.IngestionService
	pipeline  *services.PipelineService
	store     *database.Store
	index     *vector.Index
	objects   *storage.ObjectStore
	tasks     *asynq.Client
	syncLimit int64
}

func NewDocumentHandler(ingestion *services.IngestionService, pipeline *services.PipelineService,
	store *database.Store, index *vector.Index, objects *storage.ObjectStore,
	tasks *asynq.Client, syncLimit int64) *DocumentHandler {
	return &DocumentHandler{
		ingestion: ingestion,
		pipeline:  pipeline,
		store:     store,
		index:     index,
		objects:   objects,
		tasks:     tasks,
		syncLimit: syncLimit,
	}
}

type urlUploadRequest struct {
	URL   string `json:"url" binding:"required"`
	Title string `json:"title"`
}

// Upload registers a document from a multipart file or a JSON url payload.
func (h *DocumentHandler) Upload(c *gin.Context) {
	if file, err := c.FormFile("file"); err == nil {
		f, err := file.Open()
		if err != nil {
			utils.RespondWithBadRequest(c, "could not read uploaded file", nil)
			return
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			utils.RespondWithBadRequest(c, "could not read uploaded file", nil)
			return
		}

		result, err := h.ingestion.IngestFile(c.Request.Context(), file.Filename, c.PostForm("title"), data)
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		// Large uploads publish in the background; the client polls status
		// instead of holding a synchronous pipeline run open.
		if !result.Duplicate && h.tasks != nil && int64(len(data)) > h.syncLimit {
			h.enqueuePublish(result)
		}
		c.JSON(http.StatusCreated, result)
		return
	}

	var req urlUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithBadRequest(c, "provide a multipart file or a json body with url", nil)
		return
	}

	result, err := h.ingestion.IngestURL(c.Request.Context(), req.URL, req.Title)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *DocumentHandler) enqueuePublish(result *services.UploadResult) {
	task, err := queue.NewPublishTask(result.DocumentID)
	if err != nil {
		logger.Error("Failed to build publish task", "document_id", result.DocumentID, "error", err)
		return
	}
	if _, err := h.tasks.Enqueue(task); err != nil {
		logger.Warn("Failed to enqueue background publish", "document_id", result.DocumentID, "error", err)
		return
	}
	result.ProcessingStatus = "queued"
}

// Publish runs the pipeline to completion and returns the final outcome.
func (h *DocumentHandler) Publish(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var last models.ProgressEvent
	for event := range h.pipeline.Publish(id) {
		last = event
	}

	switch last.Stage {
	case models.StageComplete:
		resp := gin.H{"ok": true, "document_id": id, "published": true}
		if last.Extra["already_published"] == true {
			resp["already_published"] = true
		}
		c.JSON(http.StatusOK, resp)
	case models.StageConflictsDetected:
		c.JSON(http.StatusOK, gin.H{
			"ok":              true,
			"document_id":     id,
			"requires_review": true,
			"conflicts":       last.Extra["conflicts"],
		})
	default:
		utils.RespondWithInternalError(c, "publish failed", gin.H{"error": last.Extra["error"]})
	}
}

// PublishStream relays pipeline progress as server-sent events. The
// pipeline itself is detached; a dropped connection stops the relay only.
func (h *DocumentHandler) PublishStream(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	clientGone := false
	for event := range h.pipeline.Publish(id) {
		if clientGone {
			continue
		}
		payload, err := json.Marshal(event.MarshalMap())
		if err != nil {
			logger.Error("Failed to encode progress event", "error", err)
			continue
		}
		if _, err := c.Writer.Write(append(append([]byte("data: "), payload...), '\n', '\n')); err != nil {
			// Client went away; keep draining so the detached pipeline
			// finishes and the document reaches a terminal state.
			logger.Debug("Publish stream client disconnected", "document_id", id)
			clientGone = true
			continue
		}
		c.Writer.Flush()
	}
}

// List returns all documents, newest first.
func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.store.ListDocuments(c.Request.Context())
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}

	out := make([]gin.H, 0, len(docs))
	for _, d := range docs {
		out = append(out, gin.H{
			"id":         d.ID,
			"name":       d.Title,
			"created_at": d.CreatedAt,
			"status":     d.Status,
		})
	}
	c.JSON(http.StatusOK, out)
}

// Chunks returns a document's chunks with truncated text previews.
func (h *DocumentHandler) Chunks(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if _, err := h.store.GetDocument(c.Request.Context(), id); err != nil {
		utils.RespondWithAppError(c, err)
		return
	}

	chunks, err := h.store.ListChunks(c.Request.Context(), id)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}

	out := make([]gin.H, 0, len(chunks))
	for _, ch := range chunks {
		out = append(out, gin.H{
			"id":           ch.ID,
			"idx":          ch.Idx,
			"text_preview": preview(ch.Text),
			"hash":         ch.Hash,
			"page":         ch.Page,
			"section_path": ch.SectionPath,
		})
	}
	c.JSON(http.StatusOK, out)
}

// Status reports the document row plus processing counters.
func (h *DocumentHandler) Status(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	doc, err := h.store.GetDocument(c.Request.Context(), id)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}

	total, err := h.store.CountChunks(c.Request.Context(), id)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	open, err := h.store.CountOpenConflictsForDocument(c.Request.Context(), id)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"document":       doc,
		"total_chunks":   total,
		"open_conflicts": open,
	})
}

// Delete removes the document everywhere: vector points, raw object, and
// the relational row (chunks and conflicts cascade).
func (h *DocumentHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	doc, err := h.store.GetDocument(ctx, id)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}

	chunkIDs, err := h.store.ChunkIDs(ctx, id)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	if err := h.index.DeletePoints(ctx, chunkIDs...); err != nil {
		logger.Warn("Failed to remove document points from index", "document_id", id, "error", err)
	}
	if doc.StorageKey != "" {
		if err := h.objects.Delete(ctx, doc.StorageKey); err != nil {
			logger.Warn("Failed to remove raw object", "key", doc.StorageKey, "error", err)
		}
	}

	if err := h.store.DeleteDocument(ctx, id); err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "deleted": id})
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondWithBadRequest(c, "invalid id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func preview(text string) string {
	if len(text) <= previewLength {
		return text
	}
	// Back off to a rune boundary so the cut never splits a multi-byte
	// character.
	cut := previewLength
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "…"
}
