package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_video_store.go -package=mocks vidsage-ai/internal/storage VideoStore

import (
	"context"
	"database/sql"
	"fmt"
)

// VideoStore defines the interface for video catalog operations.
type VideoStore interface {
	// Upsert registers a video, updating the title if it already exists.
	Upsert(ctx context.Context, video *Video) error
	// GetByID gets a video by ID. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*Video, error)
	// ListAll returns all registered videos.
	ListAll(ctx context.Context) ([]Video, error)
}

// VideoRepo provides methods for video catalog operations.
// It implements the VideoStore interface.
type VideoRepo struct {
	db *sql.DB
}

// NewVideoRepo creates a new VideoRepo.
func NewVideoRepo(db *sql.DB) *VideoRepo {
	return &VideoRepo{db: db}
}

// Upsert registers a video, updating the title if it already exists.
func (r *VideoRepo) Upsert(ctx context.Context, video *Video) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO videos (id, title) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET title = excluded.title`,
		video.ID, video.Title,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert video: %w", err)
	}
	return nil
}

// GetByID gets a video by ID. Returns ErrNotFound if not found.
func (r *VideoRepo) GetByID(ctx context.Context, id string) (*Video, error) {
	var video Video
	err := r.db.QueryRowContext(ctx,
		"SELECT id, title, created_at FROM videos WHERE id = ?", id,
	).Scan(&video.ID, &video.Title, &video.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query video: %w", err)
	}
	return &video, nil
}

// ListAll returns all registered videos.
func (r *VideoRepo) ListAll(ctx context.Context) ([]Video, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, title, created_at FROM videos ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("failed to query videos: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var videos []Video
	for rows.Next() {
		var video Video
		if err := rows.Scan(&video.ID, &video.Title, &video.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, video)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return videos, nil
}
