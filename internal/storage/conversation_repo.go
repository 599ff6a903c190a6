package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_conversation_store.go -package=mocks vidsage-ai/internal/storage ConversationStore

import (
	"context"
	"database/sql"
	"fmt"
)

// ConversationStore defines the interface for conversation and message operations.
type ConversationStore interface {
	// Create creates a new conversation. The conversation.ID must be set (UUID).
	Create(ctx context.Context, conversation *Conversation) error
	// GetByID gets a conversation by ID. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*Conversation, error)
	// SetVideos replaces the conversation's selected source videos.
	SetVideos(ctx context.Context, conversationID string, videoIDs []string) error
	// ListVideoIDs returns the conversation's selected source video ids.
	ListVideoIDs(ctx context.Context, conversationID string) ([]string, error)
	// AppendMessage appends a message. The message.ID must be set (UUID).
	AppendMessage(ctx context.Context, message *Message) error
	// ListMessages returns all messages for a conversation ordered by turn.
	ListMessages(ctx context.Context, conversationID string) ([]Message, error)
	// NextTurnIndex returns the turn index for the conversation's next turn.
	NextTurnIndex(ctx context.Context, conversationID string) (int, error)
}

// ConversationRepo provides methods for conversation operations.
// It implements the ConversationStore interface.
type ConversationRepo struct {
	db *sql.DB
}

// NewConversationRepo creates a new ConversationRepo.
func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// Create creates a new conversation.
func (r *ConversationRepo) Create(ctx context.Context, conversation *Conversation) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO conversations (id, user_id, title) VALUES (?, ?, ?)",
		conversation.ID, conversation.UserID, conversation.Title,
	)
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	return nil
}

// GetByID gets a conversation by ID. Returns ErrNotFound if not found.
func (r *ConversationRepo) GetByID(ctx context.Context, id string) (*Conversation, error) {
	var conversation Conversation
	var title sql.NullString
	err := r.db.QueryRowContext(ctx,
		"SELECT id, user_id, title, created_at FROM conversations WHERE id = ?", id,
	).Scan(&conversation.ID, &conversation.UserID, &title, &conversation.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}
	conversation.Title = title.String
	return &conversation, nil
}

// SetVideos replaces the conversation's selected source videos.
func (r *ConversationRepo) SetVideos(ctx context.Context, conversationID string, videoIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM conversation_videos WHERE conversation_id = ?", conversationID); err != nil {
		return fmt.Errorf("failed to clear conversation videos: %w", err)
	}

	for _, videoID := range videoIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO conversation_videos (conversation_id, video_id) VALUES (?, ?)",
			conversationID, videoID); err != nil {
			return fmt.Errorf("failed to insert conversation video: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// ListVideoIDs returns the conversation's selected source video ids.
func (r *ConversationRepo) ListVideoIDs(ctx context.Context, conversationID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT video_id FROM conversation_videos WHERE conversation_id = ? ORDER BY video_id",
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation videos: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan video id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return ids, nil
}

// AppendMessage appends a message to a conversation.
func (r *ConversationRepo) AppendMessage(ctx context.Context, message *Message) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO messages (id, conversation_id, turn_index, role, content) VALUES (?, ?, ?, ?, ?)",
		message.ID, message.ConversationID, message.TurnIndex, message.Role, message.Content,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// ListMessages returns all messages for a conversation ordered by turn index,
// user message before assistant message within a turn.
func (r *ConversationRepo) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, conversation_id, turn_index, role, content, created_at
		 FROM messages WHERE conversation_id = ?
		 ORDER BY turn_index, CASE role WHEN 'user' THEN 0 ELSE 1 END`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var messages []Message
	for rows.Next() {
		var message Message
		if err := rows.Scan(&message.ID, &message.ConversationID, &message.TurnIndex,
			&message.Role, &message.Content, &message.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return messages, nil
}

// NextTurnIndex returns the turn index for the conversation's next turn.
func (r *ConversationRepo) NextTurnIndex(ctx context.Context, conversationID string) (int, error) {
	var maxTurn sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		"SELECT MAX(turn_index) FROM messages WHERE conversation_id = ?", conversationID,
	).Scan(&maxTurn)
	if err != nil {
		return 0, fmt.Errorf("failed to query max turn index: %w", err)
	}
	if !maxTurn.Valid {
		return 0, nil
	}
	return int(maxTurn.Int64) + 1, nil
}
