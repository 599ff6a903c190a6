package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chunk_store.go -package=mocks vidsage-ai/internal/storage ChunkStore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// ChunkStore defines the interface for chunk corpus access.
// The retrieval pipeline and topic extraction both read from it; writes
// belong to the ingestion pipeline.
type ChunkStore interface {
	// Insert inserts a single chunk. The chunk.ID must be set (UUID).
	Insert(ctx context.Context, chunk *Chunk) error
	// GetByID gets a chunk by its ID. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*Chunk, error)
	// ListByVideos returns all chunks for the given videos, ordered by
	// (video_id, chunk_index). Returns an empty slice when none exist.
	ListByVideos(ctx context.Context, videoIDs []string) ([]Chunk, error)
	// DeleteByVideo deletes all chunks for a given video ID.
	DeleteByVideo(ctx context.Context, videoID string) error
}

// ChunkRepo provides methods for chunk operations.
// It implements the ChunkStore interface.
type ChunkRepo struct {
	db *sql.DB
}

// NewChunkRepo creates a new ChunkRepo.
func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

const chunkColumns = "id, video_id, chunk_index, start_seconds, end_seconds, chapter_title, keywords, text, embedding_text"

// Insert inserts a single chunk into the database.
func (r *ChunkRepo) Insert(ctx context.Context, chunk *Chunk) error {
	keywords, err := marshalKeywords(chunk.Keywords)
	if err != nil {
		return fmt.Errorf("failed to marshal keywords: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO chunks ("+chunkColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		chunk.ID, chunk.VideoID, chunk.ChunkIndex, chunk.StartSeconds, chunk.EndSeconds,
		chunk.ChapterTitle, keywords, chunk.Text, chunk.EmbeddingText,
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}
	return nil
}

// GetByID gets a chunk by its ID. Returns ErrNotFound if not found.
func (r *ChunkRepo) GetByID(ctx context.Context, id string) (*Chunk, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE id = ?", id)

	chunk, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk: %w", err)
	}
	return chunk, nil
}

// ListByVideos returns all chunks for the given videos, ordered by
// (video_id, chunk_index).
func (r *ChunkRepo) ListByVideos(ctx context.Context, videoIDs []string) ([]Chunk, error) {
	if len(videoIDs) == 0 {
		return []Chunk{}, nil
	}

	placeholders := strings.Repeat("?,", len(videoIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(videoIDs))
	for i, id := range videoIDs {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE video_id IN ("+placeholders+") ORDER BY video_id, chunk_index",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	chunks := []Chunk{}
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, *chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return chunks, nil
}

// DeleteByVideo deletes all chunks for a given video ID.
// Used when a video is re-ingested.
func (r *ChunkRepo) DeleteByVideo(ctx context.Context, videoID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM chunks WHERE video_id = ?", videoID)
	if err != nil {
		return fmt.Errorf("failed to delete chunks by video: %w", err)
	}
	return nil
}

// scanner matches both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanChunk(s scanner) (*Chunk, error) {
	var chunk Chunk
	var chapterTitle, keywords, embeddingText sql.NullString

	err := s.Scan(&chunk.ID, &chunk.VideoID, &chunk.ChunkIndex, &chunk.StartSeconds,
		&chunk.EndSeconds, &chapterTitle, &keywords, &chunk.Text, &embeddingText)
	if err != nil {
		return nil, err
	}

	chunk.ChapterTitle = chapterTitle.String
	chunk.EmbeddingText = embeddingText.String
	if keywords.Valid && keywords.String != "" {
		if err := json.Unmarshal([]byte(keywords.String), &chunk.Keywords); err != nil {
			return nil, fmt.Errorf("failed to unmarshal keywords: %w", err)
		}
	}

	return &chunk, nil
}

func marshalKeywords(keywords []string) (string, error) {
	if len(keywords) == 0 {
		return "", nil
	}
	data, err := json.Marshal(keywords)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
