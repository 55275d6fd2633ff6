package database

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/oyounis19/beyond-rag/models"
	"github.com/oyounis19/beyond-rag/utils"
)

// CreateChatSession inserts a session row.
func (s *Store) CreateChatSession(ctx context.Context, session *models.ChatSession) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO chat_sessions (id, name) VALUES ($1, $2) RETURNING created_at`,
		session.ID, session.Name).Scan(&session.CreatedAt)
	if err != nil {
		return utils.WrapError(utils.KindStore, "insert chat session", err)
	}
	return nil
}

// GetChatSession loads a session; NotFound when absent.
func (s *Store) GetChatSession(ctx context.Context, id uuid.UUID) (*models.ChatSession, error) {
	var sess models.ChatSession
	err := s.pool.QueryRow(ctx,
		`SELECT id, COALESCE(name, ''), created_at FROM chat_sessions WHERE id = $1`, id).
		Scan(&sess.ID, &sess.Name, &sess.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, utils.NewError(utils.KindNotFound, "chat session not found")
	}
	if err != nil {
		return nil, utils.WrapError(utils.KindStore, "get chat session", err)
	}
	return &sess, nil
}

// ListChatSessions returns all sessions, newest first.
func (s *Store) ListChatSessions(ctx context.Context) ([]models.ChatSession, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, COALESCE(name, ''), created_at FROM chat_sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, utils.WrapError(utils.KindStore, "list chat sessions", err)
	}
	defer rows.Close()

	var out []models.ChatSession
	for rows.Next() {
		var sess models.ChatSession
		if err := rows.Scan(&sess.ID, &sess.Name, &sess.CreatedAt); err != nil {
			return nil, utils.WrapError(utils.KindStore, "scan chat session", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// DeleteChatSession removes a session; messages cascade.
func (s *Store) DeleteChatSession(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chat_sessions WHERE id = $1`, id)
	if err != nil {
		return utils.WrapError(utils.KindStore, "delete chat session", err)
	}
	if tag.RowsAffected() == 0 {
		return utils.NewError(utils.KindNotFound, "chat session not found")
	}
	return nil
}

// AddChatMessage appends a message to a session.
func (s *Store) AddChatMessage(ctx context.Context, m *models.ChatMessage) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO chat_messages (id, session_id, role, content) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		m.ID, m.SessionID, m.Role, m.Content).Scan(&m.CreatedAt)
	if err != nil {
		return utils.WrapError(utils.KindStore, "insert chat message", err)
	}
	return nil
}

// ListChatMessages returns a session's messages in chronological order.
func (s *Store) ListChatMessages(ctx context.Context, sessionID uuid.UUID) ([]models.ChatMessage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, role, content, created_at
		FROM chat_messages WHERE session_id = $1 ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, utils.WrapError(utils.KindStore, "list chat messages", err)
	}
	defer rows.Close()

	var out []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, utils.WrapError(utils.KindStore, "scan chat message", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
