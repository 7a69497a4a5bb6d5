package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RecordFailure increments the attempt counter of a pending item and stores
// the failure message. It returns the updated attempt count, or 0 when the
// item no longer exists.
func (s *Store) RecordFailure(ctx context.Context, id string, cause error) (int, error) {
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
         SET attempts = attempts + 1, last_error = ?, last_attempt_at = ?
         WHERE id = ?`,
		nullableString(message),
		formatTime(time.Now()),
		id,
	)
	if err != nil {
		return 0, fmt.Errorf("record failure: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return 0, nil
	}
	var attempts int
	if err := s.db.QueryRowContext(orBackground(ctx), `SELECT attempts FROM queue_items WHERE id = ?`, id).Scan(&attempts); err != nil {
		return 0, fmt.Errorf("read attempts: %w", err)
	}
	return attempts, nil
}

// DeadLetter parks an item so the sync driver stops retrying it.
func (s *Store) DeadLetter(ctx context.Context, id string) (bool, error) {
	return s.setStatus(ctx, id, StatusPending, StatusDeadLetter, false)
}

// Requeue returns a dead letter to the pending queue with its attempt counter
// reset. It keeps its original insertion position.
func (s *Store) Requeue(ctx context.Context, id string) (bool, error) {
	return s.setStatus(ctx, id, StatusDeadLetter, StatusPending, true)
}

// RequeueAll returns every dead letter to the pending queue.
func (s *Store) RequeueAll(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items SET status = ?, attempts = 0 WHERE status = ?`,
		StatusPending,
		StatusDeadLetter,
	)
	if err != nil {
		return 0, fmt.Errorf("requeue dead letters: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) setStatus(ctx context.Context, id string, from, to Status, resetAttempts bool) (bool, error) {
	query := `UPDATE queue_items SET status = ? WHERE id = ? AND status = ?`
	if resetAttempts {
		query = `UPDATE queue_items SET status = ?, attempts = 0 WHERE id = ? AND status = ?`
	}
	res, err := s.execWithRetry(ctx, query, to, id, from)
	if err != nil {
		return false, fmt.Errorf("set item %s status %s: %w", id, to, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set item status rows affected: %w", err)
	}
	return affected > 0, nil
}

// Stats returns item counts by status and kind plus the oldest pending item's
// creation time.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ctx = orBackground(ctx)
	stats := Stats{ByKind: make(map[Kind]int)}

	rows, err := s.db.QueryContext(ctx, `SELECT status, kind, COUNT(*) FROM queue_items GROUP BY status, kind`)
	if err != nil {
		return stats, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			kind   string
			count  int
		)
		if err := rows.Scan(&status, &kind, &count); err != nil {
			return stats, fmt.Errorf("scan queue stats: %w", err)
		}
		switch Status(status) {
		case StatusPending:
			stats.Pending += count
			stats.ByKind[Kind(kind)] += count
		case StatusDeadLetter:
			stats.DeadLetter += count
		}
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("queue stats: %w", err)
	}

	var oldest string
	err = s.db.QueryRowContext(ctx,
		`SELECT created_at FROM queue_items WHERE status = ? ORDER BY seq LIMIT 1`, StatusPending,
	).Scan(&oldest)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return stats, fmt.Errorf("oldest pending item: %w", err)
	default:
		if t, err := parseTimeString(oldest); err == nil {
			stats.Oldest = &t
		}
	}
	return stats, nil
}
