// Package history records completed submissions in Postgres so an admin
// can answer "who imported what, when" after the fact. The store is
// optional: without DATABASE_URL the service runs and review sessions work
// exactly the same, they are never persisted either way.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS import_submissions (
	id          UUID PRIMARY KEY,
	importer    TEXT NOT NULL,
	actor_id    TEXT NOT NULL DEFAULT '',
	file_name   TEXT NOT NULL DEFAULT '',
	submitted   INTEGER NOT NULL,
	excluded    INTEGER NOT NULL DEFAULT 0,
	message     TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS import_submissions_created_at_idx
	ON import_submissions (created_at DESC);
`

// Entry is one recorded submission.
type Entry struct {
	ID        string    `json:"id"`
	Importer  string    `json:"importer"`
	ActorID   string    `json:"actorId"`
	FileName  string    `json:"fileName"`
	Submitted int       `json:"submitted"`
	Excluded  int       `json:"excluded"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store wraps the submission-history table.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to the database, verifies the connection and ensures the
// schema exists.
func Open(ctx context.Context, url string, maxConns, minConns int) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}
	if minConns > 0 {
		poolCfg.MinConns = int32(minConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect history database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping history database: %w", err)
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure history schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// RecordSubmission inserts one completed submission. The entry's ID and
// CreatedAt are assigned here.
func (s *Store) RecordSubmission(ctx context.Context, e Entry) (string, error) {
	id := uuid.New().String()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO import_submissions
			(id, importer, actor_id, file_name, submitted, excluded, message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, e.Importer, e.ActorID, e.FileName, e.Submitted, e.Excluded, e.Message,
	)
	if err != nil {
		return "", fmt.Errorf("record submission: %w", err)
	}
	return id, nil
}

// Recent returns the latest submissions, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, importer, actor_id, file_name, submitted, excluded, message, created_at
		 FROM import_submissions
		 ORDER BY created_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Importer, &e.ActorID, &e.FileName,
			&e.Submitted, &e.Excluded, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
