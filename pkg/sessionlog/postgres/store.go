package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studyloop/voxtutor/pkg/sessionlog"
)

var _ sessionlog.Store = (*Store)(nil)

// Store is a [sessionlog.Store] backed by a transcript_lines table.
// All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the database at dsn, runs [Migrate], and returns a
// ready Store. The caller owns the Store and must call Close.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("sessionlog postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("sessionlog postgres: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// WriteEntry implements [sessionlog.Store].
func (s *Store) WriteEntry(ctx context.Context, sessionID string, entry sessionlog.Entry) error {
	const q = `
		INSERT INTO transcript_lines (session_id, sender, text, timestamp)
		VALUES ($1, $2, $3, $4)`

	_, err := s.pool.Exec(ctx, q, sessionID, entry.Sender, entry.Text, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("sessionlog postgres: write entry: %w", err)
	}
	return nil
}

// Recent implements [sessionlog.Store]. Entries are returned in
// chronological order, newest last.
func (s *Store) Recent(ctx context.Context, sessionID string, limit int) ([]sessionlog.Entry, error) {
	q := `
		SELECT sender, text, timestamp
		FROM   transcript_lines
		WHERE  session_id = $1
		ORDER  BY timestamp DESC, id DESC`
	args := []any{sessionID}
	if limit > 0 {
		q += "\n\t\tLIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sessionlog postgres: recent: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (sessionlog.Entry, error) {
		var e sessionlog.Entry
		if err := row.Scan(&e.Sender, &e.Text, &e.Timestamp); err != nil {
			return sessionlog.Entry{}, err
		}
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("sessionlog postgres: scan rows: %w", err)
	}

	// Flip DESC query order back to chronological.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if entries == nil {
		entries = []sessionlog.Entry{}
	}
	return entries, nil
}

// Ping verifies database connectivity, for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
