package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"timeclock/pkg/platform/sentinel"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS timeclock_documents (
		key        TEXT PRIMARY KEY,
		body       JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// PostgresBackend keeps one row per storage key in timeclock_documents.
type PostgresBackend struct {
	db  *sql.DB
	key string
}

func NewPostgresBackend(db *sql.DB, key string) *PostgresBackend {
	if key == "" {
		key = DefaultKey
	}
	return &PostgresBackend{db: db, key: key}
}

// EnsureSchema creates the documents table if it does not exist.
func (b *PostgresBackend) EnsureSchema(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create timeclock_documents: %w", err)
	}
	return nil
}

func (b *PostgresBackend) Read(ctx context.Context) ([]byte, error) {
	var body []byte
	err := b.db.QueryRowContext(ctx, `SELECT body FROM timeclock_documents WHERE key = $1`, b.key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select document: %w", err)
	}
	return body, nil
}

func (b *PostgresBackend) Write(ctx context.Context, data []byte) error {
	query := `
		INSERT INTO timeclock_documents (key, body, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET
			body = EXCLUDED.body,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := b.db.ExecContext(ctx, query, b.key, string(data)); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// WriteIfVersion upserts only while the stored body still carries expected.
func (b *PostgresBackend) WriteIfVersion(ctx context.Context, data []byte, expected int64) error {
	query := `
		INSERT INTO timeclock_documents (key, body, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET
			body = EXCLUDED.body,
			updated_at = EXCLUDED.updated_at
		WHERE COALESCE((timeclock_documents.body->>'version')::bigint, 0) = $3
	`
	res, err := b.db.ExecContext(ctx, query, b.key, string(data), expected)
	if err != nil {
		return fmt.Errorf("conditional upsert document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("conditional upsert rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: postgres document moved past version %d", sentinel.ErrConflict, expected)
	}
	return nil
}
