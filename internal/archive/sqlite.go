package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// sqliteStore persists records in a local SQLite database.
type sqliteStore struct {
	db *sql.DB
}

const createInteractionsSQL = `
CREATE TABLE IF NOT EXISTS interactions (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	image_path TEXT,
	prompt TEXT NOT NULL,
	response TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_interactions_session ON interactions(session_id, created_at)`

func newSQLiteStore(path string) (*sqliteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive database ping failed: %w", err)
	}

	if _, err := db.Exec(createInteractionsSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create interactions table: %w", err)
	}

	return &sqliteStore{db: db}, nil
}

// Append implements Store.
func (s *sqliteStore) Append(ctx context.Context, rec *Record) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO interactions (id, session_id, image_path, prompt, response, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		rec.ID, rec.SessionID, rec.ImagePath, rec.Prompt, rec.Response, rec.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert interaction: %w", err)
	}
	return nil
}

// List implements Store.
func (s *sqliteStore) List(ctx context.Context, sessionID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, session_id, image_path, prompt, response, created_at FROM interactions WHERE session_id = ? ORDER BY created_at, id",
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var imagePath sql.NullString
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.SessionID, &imagePath, &rec.Prompt, &rec.Response, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		if imagePath.Valid {
			rec.ImagePath = imagePath.String
		}
		rec.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return records, nil
}

// Close implements Store.
func (s *sqliteStore) Close() error {
	return s.db.Close()
}
