package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_fact_store.go -package=mocks vidsage-ai/internal/storage FactStore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// FactStore defines the interface for durable conversation-fact persistence.
type FactStore interface {
	// Upsert writes a fact keyed by (conversation_id, fact_key). If the key
	// already exists the value fields are overwritten in place (last writer
	// wins); last_accessed and access_count are left untouched.
	Upsert(ctx context.Context, fact *Fact) error
	// ListByConversation returns all facts for a conversation.
	ListByConversation(ctx context.Context, conversationID string) ([]Fact, error)
	// MarkAccessed sets last_accessed and increments access_count for the
	// given fact ids. This is the recall read path's reinforcement write.
	MarkAccessed(ctx context.Context, ids []string, accessedAt time.Time) error
}

// FactRepo provides methods for conversation fact operations.
// It implements the FactStore interface.
type FactRepo struct {
	db *sql.DB
}

// NewFactRepo creates a new FactRepo.
func NewFactRepo(db *sql.DB) *FactRepo {
	return &FactRepo{db: db}
}

// Upsert writes a fact keyed by (conversation_id, fact_key).
// The ON CONFLICT clause keeps the key unique even under concurrent turns
// for the same conversation: value fields resolve to the last writer, and
// no second row is ever produced.
func (r *FactRepo) Upsert(ctx context.Context, fact *Fact) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO conversation_facts
			(id, conversation_id, fact_key, fact_value, source_turn, confidence_score, importance, category)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(conversation_id, fact_key) DO UPDATE SET
			fact_value = excluded.fact_value,
			source_turn = excluded.source_turn,
			confidence_score = excluded.confidence_score,
			importance = excluded.importance,
			category = excluded.category,
			updated_at = CURRENT_TIMESTAMP`,
		fact.ID, fact.ConversationID, fact.FactKey, fact.FactValue,
		fact.SourceTurn, fact.ConfidenceScore, fact.Importance, fact.Category,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert fact: %w", err)
	}
	return nil
}

// ListByConversation returns all facts for a conversation.
func (r *FactRepo) ListByConversation(ctx context.Context, conversationID string) ([]Fact, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, conversation_id, fact_key, fact_value, source_turn, confidence_score,
			importance, category, last_accessed, access_count, created_at, updated_at
		 FROM conversation_facts WHERE conversation_id = ?
		 ORDER BY fact_key`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query facts: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var facts []Fact
	for rows.Next() {
		var fact Fact
		var lastAccessed sql.NullTime
		if err := rows.Scan(&fact.ID, &fact.ConversationID, &fact.FactKey, &fact.FactValue,
			&fact.SourceTurn, &fact.ConfidenceScore, &fact.Importance, &fact.Category,
			&lastAccessed, &fact.AccessCount, &fact.CreatedAt, &fact.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan fact: %w", err)
		}
		if lastAccessed.Valid {
			t := lastAccessed.Time
			fact.LastAccessed = &t
		}
		facts = append(facts, fact)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return facts, nil
}

// MarkAccessed sets last_accessed and increments access_count for the given fact ids.
func (r *FactRepo) MarkAccessed(ctx context.Context, ids []string, accessedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(ids)+1)
	args = append(args, accessedAt)
	for _, id := range ids {
		args = append(args, id)
	}

	_, err := r.db.ExecContext(ctx,
		"UPDATE conversation_facts SET last_accessed = ?, access_count = access_count + 1 WHERE id IN ("+placeholders+")",
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to mark facts accessed: %w", err)
	}
	return nil
}
