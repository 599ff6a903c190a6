package storage

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// New opens a SQLite database connection at the given path.
// It enables foreign keys and sets connection pool settings.
func New(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys (disabled by default in SQLite)
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate runs database migrations to create the required tables.
// It is idempotent and can be run multiple times safely.
func Migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS videos (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			video_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			start_seconds REAL NOT NULL,
			end_seconds REAL NOT NULL,
			chapter_title TEXT,
			keywords TEXT,
			text TEXT NOT NULL,
			embedding_text TEXT,
			FOREIGN KEY (video_id) REFERENCES videos(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_video ON chunks(video_id, chunk_index);`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS conversation_videos (
			conversation_id TEXT NOT NULL,
			video_id TEXT NOT NULL,
			PRIMARY KEY (conversation_id, video_id),
			FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE,
			FOREIGN KEY (video_id) REFERENCES videos(id)
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			turn_index INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE,
			UNIQUE (conversation_id, turn_index, role)
		);`,
		`CREATE TABLE IF NOT EXISTS conversation_facts (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			fact_key TEXT NOT NULL,
			fact_value TEXT NOT NULL,
			source_turn INTEGER NOT NULL,
			confidence_score REAL NOT NULL,
			importance REAL NOT NULL,
			category TEXT NOT NULL,
			last_accessed DATETIME,
			access_count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE,
			UNIQUE (conversation_id, fact_key)
		);`,
		`CREATE TABLE IF NOT EXISTS conversation_insights (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			video_ids TEXT NOT NULL,
			graph_data TEXT NOT NULL,
			topic_chunks TEXT NOT NULL,
			topics_count INTEGER NOT NULL,
			total_chunks_analyzed INTEGER NOT NULL,
			generation_time_seconds REAL NOT NULL,
			extraction_prompt_version TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_insights_conversation ON conversation_insights(conversation_id, created_at);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
