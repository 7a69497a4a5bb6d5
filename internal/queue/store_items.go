package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const idCollisionRetries = 3

// Add appends a new pending item carrying payload. The returned item holds the
// generated id and creation timestamp.
func (s *Store) Add(ctx context.Context, payload Payload) (*Item, error) {
	if payload == nil {
		return nil, errors.New("payload is nil")
	}
	if err := payload.validate(); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", payload.Kind(), err)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < idCollisionRetries; attempt++ {
		now := time.Now().UTC()
		id := NewID(now)
		res, err := s.execWithRetry(
			ctx,
			`INSERT INTO queue_items (id, kind, payload_json, status, attempts, created_at)
             VALUES (?, ?, ?, ?, 0, ?)`,
			id,
			string(payload.Kind()),
			string(encoded),
			StatusPending,
			formatTime(now),
		)
		if err != nil {
			lastErr = err
			if isUniqueViolation(err) {
				continue
			}
			return nil, fmt.Errorf("insert item: %w", err)
		}
		seq, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
		return &Item{
			Seq:       seq,
			ID:        id,
			Kind:      payload.Kind(),
			Payload:   payload,
			CreatedAt: now,
			Status:    StatusPending,
		}, nil
	}
	return nil, fmt.Errorf("insert item: %w", lastErr)
}

// List returns pending items in insertion order. An empty queue yields an
// empty, non-nil slice.
func (s *Store) List(ctx context.Context) ([]*Item, error) {
	return s.listByStatus(ctx, StatusPending)
}

// ListDeadLetters returns items parked after exhausting their attempts.
func (s *Store) ListDeadLetters(ctx context.Context) ([]*Item, error) {
	return s.listByStatus(ctx, StatusDeadLetter)
}

// ListAll returns every item regardless of status, in insertion order.
func (s *Store) ListAll(ctx context.Context) ([]*Item, error) {
	rows, err := s.db.QueryContext(orBackground(ctx), `SELECT `+itemColumns+` FROM queue_items ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	items, err := scanItems(rows)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

func (s *Store) listByStatus(ctx context.Context, status Status) ([]*Item, error) {
	rows, err := s.db.QueryContext(
		orBackground(ctx),
		`SELECT `+itemColumns+` FROM queue_items WHERE status = ? ORDER BY seq`,
		status,
	)
	if err != nil {
		return nil, fmt.Errorf("list %s items: %w", status, err)
	}
	items, err := scanItems(rows)
	if err != nil {
		return nil, fmt.Errorf("list %s items: %w", status, err)
	}
	return items, nil
}

// Get fetches an item by id. A missing item returns (nil, nil).
func (s *Store) Get(ctx context.Context, id string) (*Item, error) {
	row := s.db.QueryRowContext(orBackground(ctx), `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// Remove deletes the item with the given id. Removing an absent id is a
// no-op and reports false.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("remove item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove item rows affected: %w", err)
	}
	return affected > 0, nil
}

// Clear removes every item, pending and dead letter alike, and returns the
// number deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
