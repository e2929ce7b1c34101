// Package postgres provides a PostgreSQL-backed [sessionlog.Store] using
// a pgxpool connection pool.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	_ = store.WriteEntry(ctx, sessionID, entry)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlTranscriptLines = `
CREATE TABLE IF NOT EXISTS transcript_lines (
    id          BIGSERIAL    PRIMARY KEY,
    session_id  TEXT         NOT NULL,
    sender      TEXT         NOT NULL,
    text        TEXT         NOT NULL,
    timestamp   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_transcript_lines_session_id
    ON transcript_lines (session_id);

CREATE INDEX IF NOT EXISTS idx_transcript_lines_session_timestamp
    ON transcript_lines (session_id, timestamp);
`

// Migrate creates or ensures the transcript table and its indexes exist.
// It is idempotent and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlTranscriptLines); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}
