package store

import (
	"context"
	"fmt"
	"time"
)

// MarkScheduled records that the trigger identified by key has fired. It
// returns false when the key was already marked, so callers fire at most once
// per key across restarts.
func (s *Store) MarkScheduled(ctx context.Context, key string, at time.Time) (bool, error) {
	res, err := s.execWithRetry(ctx,
		`INSERT OR IGNORE INTO schedule_marks (mark_key, fired_at) VALUES (?, ?)`,
		key, formatTime(at),
	)
	if err != nil {
		return false, fmt.Errorf("mark schedule %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
