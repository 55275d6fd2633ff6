package routes

import "github.com/gin-gonic/gin"

// SetupDocumentRoutes registers the ingestion and publishing surface.
func SetupDocumentRoutes(router *gin.Engine, h *DocumentHandler) {
	docs := router.Group("/documents")
	{
		docs.POST("", h.Upload)
		docs.GET("", h.List)
		docs.POST("/:id/publish", h.Publish)
		docs.GET("/:id/publish-stream", h.PublishStream)
		docs.GET("/:id", h.Chunks)
		docs.GET("/:id/status", h.Status)
		docs.DELETE("/:id", h.Delete)
	}
}

// SetupConflictRoutes registers the review surface.
func SetupConflictRoutes(router *gin.Engine, h *ConflictHandler) {
	conflicts := router.Group("/conflicts")
	{
		conflicts.GET("", h.List)
		conflicts.POST("/:id/resolve", h.Resolve)
		conflicts.POST("/resolve-all", h.ResolveAll)
	}
}

// SetupChatRoutes registers the assistant surface.
func SetupChatRoutes(router *gin.Engine, h *ChatHandler) {
	chat := router.Group("/chat/sessions")
	{
		chat.POST("", h.CreateSession)
		chat.GET("", h.ListSessions)
		chat.DELETE("/:id", h.DeleteSession)
		chat.GET("/:id/messages", h.History)
		chat.POST("/:id/messages", h.Ask)
	}
}
