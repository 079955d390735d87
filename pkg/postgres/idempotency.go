package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// IdempotencyStore records which events a consumer has already processed.
type IdempotencyStore struct {
	db       *sql.DB
	consumer string
}

// NewIdempotencyStore creates a store scoped to one consumer.
func NewIdempotencyStore(db *sql.DB, consumer string) *IdempotencyStore {
	return &IdempotencyStore{db: db, consumer: consumer}
}

// Seen reports whether eventID was already processed.
func (s *IdempotencyStore) Seen(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM idempotency_keys WHERE consumer = $1 AND event_id = $2)",
		s.consumer, eventID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check idempotency key %s: %w", eventID, err)
	}
	return exists, nil
}

// Mark records eventID as processed.
func (s *IdempotencyStore) Mark(ctx context.Context, eventID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO idempotency_keys (consumer, event_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		s.consumer, eventID)
	if err != nil {
		return fmt.Errorf("record idempotency key %s: %w", eventID, err)
	}
	return nil
}
