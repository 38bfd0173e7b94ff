package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBackend persists ledger entries to PostgreSQL, for deployments
// that run more than one sandboxcore process against the same workspace
// quota and want a shared audit trail across replicas.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS sandboxcore_ledger (
	id             TEXT PRIMARY KEY,
	correlation_id TEXT NOT NULL,
	kind           TEXT NOT NULL,
	summary        TEXT NOT NULL,
	exit_code      INTEGER NOT NULL,
	duration_ms    BIGINT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL
)`

// NewPostgresBackend connects to dsn and ensures the ledger table exists.
func NewPostgresBackend(ctx context.Context, dsn string) (*PostgresBackend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ledger: ensure schema: %w", err)
	}
	return &PostgresBackend{pool: pool}, nil
}

// Append inserts e into sandboxcore_ledger.
func (b *PostgresBackend) Append(ctx context.Context, e Entry) error {
	_, err := b.pool.Exec(ctx, `
		INSERT INTO sandboxcore_ledger (id, correlation_id, kind, summary, exit_code, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.CorrelationID, string(e.Kind), e.Summary, e.ExitCode, e.DurationMs, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("ledger: append: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first.
func (b *PostgresBackend) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := b.pool.Query(ctx, `
		SELECT id, correlation_id, kind, summary, exit_code, duration_ms, created_at
		FROM sandboxcore_ledger
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var kind string
		if err := rows.Scan(&e.ID, &e.CorrelationID, &kind, &e.Summary, &e.ExitCode, &e.DurationMs, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("ledger: scan: %w", err)
		}
		e.Kind = Kind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the connection pool.
func (b *PostgresBackend) Close() error {
	b.pool.Close()
	return nil
}
