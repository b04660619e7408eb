package postgres

import (
	"context"
	"fmt"

	"github.com/microcourses/microcourses/internal/domain/idempotency"
)

// ══════════════════════════════════════════════════════════════════════════════
// IDEMPOTENCY STORE IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// IdempotencyStore implements idempotency.Store for PostgreSQL. Records are
// write-once: the primary key on the idempotency key plus ON CONFLICT DO
// NOTHING elects exactly one first writer.
type IdempotencyStore struct {
	conn *Connection
}

// NewIdempotencyStore creates a new IdempotencyStore.
func NewIdempotencyStore(conn *Connection) *IdempotencyStore {
	return &IdempotencyStore{conn: conn}
}

// Get returns the record for a key, or (nil, nil) if none exists.
func (s *IdempotencyStore) Get(ctx context.Context, key string) (*idempotency.Record, error) {
	query := `
		SELECT key, status_code, response, request_hash, created_at
		FROM idempotency_keys
		WHERE key = $1
	`

	var (
		r        idempotency.Record
		response string
	)
	err := s.conn.QueryRow(ctx, query, key).Scan(
		&r.Key,
		&r.StatusCode,
		&response,
		&r.RequestHash,
		&r.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get idempotency record: %w", err)
	}
	r.Response = []byte(response)

	return &r, nil
}

// Put stores the record if the key is unused.
func (s *IdempotencyStore) Put(ctx context.Context, r *idempotency.Record) error {
	query := `
		INSERT INTO idempotency_keys (key, status_code, response, request_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO NOTHING
	`

	tag, err := s.conn.Exec(ctx, query,
		r.Key,
		r.StatusCode,
		string(r.Response),
		r.RequestHash,
		r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to put idempotency record: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return idempotency.ErrKeyExists
	}

	return nil
}
