package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oyounis19/beyond-rag/services"
	"github.com/oyounis19/beyond-rag/utils"
)

type ChatHandler struct {
	chat *services.ChatService
}

func NewChatHandler(chat *services.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type createSessionRequest struct {
	Name string `json:"name"`
}

func (h *ChatHandler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	// Body is optional; an unnamed session is fine.
	_ = c.ShouldBindJSON(&req)

	session, err := h.chat.CreateSession(c.Request.Context(), req.Name)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *ChatHandler) ListSessions(c *gin.Context) {
	sessions, err := h.chat.ListSessions(c.Request.Context())
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *ChatHandler) DeleteSession(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.chat.DeleteSession(c.Request.Context(), id); err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "deleted": id})
}

func (h *ChatHandler) History(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	messages, err := h.chat.History(c.Request.Context(), id)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

type askRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *ChatHandler) Ask(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithBadRequest(c, "content is required", nil)
		return
	}

	reply, err := h.chat.Ask(c.Request.Context(), id, req.Content)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}
