package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/oyounis19/beyond-rag/internal/ai"
	"github.com/oyounis19/beyond-rag/internal/logger"
	"github.com/oyounis19/beyond-rag/internal/vector"
	"github.com/oyounis19/beyond-rag/models"
)

type chatStore interface {
	CreateChatSession(ctx context.Context, session *models.ChatSession) error
	GetChatSession(ctx context.Context, id uuid.UUID) (*models.ChatSession, error)
	ListChatSessions(ctx context.Context) ([]models.ChatSession, error)
	DeleteChatSession(ctx context.Context, id uuid.UUID) error
	AddChatMessage(ctx context.Context, m *models.ChatMessage) error
	ListChatMessages(ctx context.Context, sessionID uuid.UUID) ([]models.ChatMessage, error)
	GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error)
}

type chatEmbedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type chatIndex interface {
	Neighbors(ctx context.Context, vec []float32, excludeDocument uuid.UUID, limit int) ([]vector.Neighbor, error)
}

// ChatService answers questions over the published corpus. Each question is
// embedded, the closest chunks are retrieved, and the model answers with
// the retrieved text as context.
type ChatService struct {
	store    chatStore
	embedder chatEmbedder
	index    chatIndex
	llm      ai.LLM
	topK     int
}

func NewChatService(store chatStore, embedder chatEmbedder, index chatIndex, llm ai.LLM, topK int) *ChatService {
	return &ChatService{store: store, embedder: embedder, index: index, llm: llm, topK: topK}
}

func (s *ChatService) CreateSession(ctx context.Context, name string) (*models.ChatSession, error) {
	session := &models.ChatSession{ID: uuid.New(), Name: name}
	if err := s.store.CreateChatSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *ChatService) ListSessions(ctx context.Context) ([]models.ChatSession, error) {
	return s.store.ListChatSessions(ctx)
}

func (s *ChatService) DeleteSession(ctx context.Context, id uuid.UUID) error {
	return s.store.DeleteChatSession(ctx, id)
}

func (s *ChatService) History(ctx context.Context, sessionID uuid.UUID) ([]models.ChatMessage, error) {
	if _, err := s.store.GetChatSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.store.ListChatMessages(ctx, sessionID)
}

// Source attributes part of an answer to a document.
type Source struct {
	Text     string `json:"text"`
	Document string `json:"source"`
}

// ChatReply is the assistant's answer plus the chunks that informed it.
type ChatReply struct {
	Message models.ChatMessage `json:"message"`
	Sources []Source           `json:"sources"`
}

// Ask records the user's message, retrieves context, and returns the
// assistant's stored reply.
func (s *ChatService) Ask(ctx context.Context, sessionID uuid.UUID, content string) (*ChatReply, error) {
	if _, err := s.store.GetChatSession(ctx, sessionID); err != nil {
		return nil, err
	}

	userMsg := &models.ChatMessage{
		ID:        uuid.New(),
		SessionID: sessionID,
		Role:      models.RoleUser,
		Content:   content,
	}
	if err := s.store.AddChatMessage(ctx, userMsg); err != nil {
		return nil, err
	}

	sources, contextBlock := s.retrieve(ctx, content)

	var userPrompt string
	if contextBlock != "" {
		userPrompt = ai.ChatUserPrompt(contextBlock, content)
	} else {
		userPrompt = content
	}

	answer, err := s.llm.Complete(ctx, ai.ChatSystemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	assistantMsg := &models.ChatMessage{
		ID:        uuid.New(),
		SessionID: sessionID,
		Role:      models.RoleAssistant,
		Content:   answer,
	}
	if err := s.store.AddChatMessage(ctx, assistantMsg); err != nil {
		return nil, err
	}

	return &ChatReply{Message: *assistantMsg, Sources: sources}, nil
}

// retrieve embeds the question and collects the closest corpus chunks.
// Retrieval failures degrade to a context-free answer rather than failing
// the turn.
func (s *ChatService) retrieve(ctx context.Context, query string) ([]Source, string) {
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil || len(vectors) == 0 {
		logger.Warn("Query embedding failed, answering without context", "error", err)
		return nil, ""
	}

	// uuid.Nil excludes nothing: chat searches the whole corpus.
	neighbors, err := s.index.Neighbors(ctx, vectors[0], uuid.Nil, s.topK)
	if err != nil {
		logger.Warn("Retrieval failed, answering without context", "error", err)
		return nil, ""
	}
	if len(neighbors) == 0 {
		return nil, ""
	}

	sources := make([]Source, 0, len(neighbors))
	var sb strings.Builder
	for _, n := range neighbors {
		title := "Unknown Document"
		if doc, err := s.store.GetDocument(ctx, n.DocumentID); err == nil {
			title = doc.Title
		}
		sources = append(sources, Source{Text: n.Text, Document: title})
		fmt.Fprintf(&sb, "[%s] %s\n", title, n.Text)
	}
	return sources, sb.String()
}
