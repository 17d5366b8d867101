package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ctwapi/models"
)

// StatsRepository persists per-user counters. Lifetime counters use an empty
// expires_at key; expiring counters are bucketed by the end of their window,
// so every window accumulates independently.
type StatsRepository struct {
	conn *sql.DB
}

// NewStatsRepository creates a stats repository on the shared connection.
func NewStatsRepository(conn *sql.DB) *StatsRepository {
	return &StatsRepository{conn: conn}
}

func expiryKey(expiresAt *time.Time) string {
	if expiresAt == nil {
		return ""
	}
	return expiresAt.UTC().Format(time.RFC3339)
}

// Increment adds delta to a counter and returns the new value. A nil
// expiresAt addresses the lifetime counter.
func (r *StatsRepository) Increment(ctx context.Context, userID uuid.UUID, name string, delta int64, expiresAt *time.Time) (int64, error) {
	row := r.conn.QueryRowContext(ctx, `
		INSERT INTO user_stats (user_id, name, expires_at, value)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, name, expires_at) DO UPDATE SET value = value + excluded.value
		RETURNING value`,
		userID.String(), name, expiryKey(expiresAt), delta)

	var value int64
	if err := row.Scan(&value); err != nil {
		return 0, fmt.Errorf("increment stat %s: %w", name, err)
	}
	return value, nil
}

// Get returns the counter value for the exact bucket, 0 when the bucket does
// not exist yet.
func (r *StatsRepository) Get(ctx context.Context, userID uuid.UUID, name string, expiresAt *time.Time) (int64, error) {
	row := r.conn.QueryRowContext(ctx,
		"SELECT value FROM user_stats WHERE user_id = ? AND name = ? AND expires_at = ?",
		userID.String(), name, expiryKey(expiresAt))

	var value int64
	err := row.Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get stat %s: %w", name, err)
	}
	return value, nil
}

// List returns every live counter for the user: all lifetime counters plus
// expiring buckets whose window has not passed yet.
func (r *StatsRepository) List(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.Stat, error) {
	rows, err := r.conn.QueryContext(ctx, `
		SELECT name, expires_at, value FROM user_stats
		WHERE user_id = ? AND (expires_at = '' OR expires_at > ?)
		ORDER BY name, expires_at`,
		userID.String(), now.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("list stats: %w", err)
	}
	defer rows.Close()

	var stats []models.Stat
	for rows.Next() {
		var name, rawExpiry string
		var value int64
		if err := rows.Scan(&name, &rawExpiry, &value); err != nil {
			return nil, fmt.Errorf("scan stat: %w", err)
		}
		stat := models.Stat{Name: name, Value: value}
		if rawExpiry != "" {
			expiry, err := time.Parse(time.RFC3339, rawExpiry)
			if err != nil {
				return nil, fmt.Errorf("parse stat expiry %q: %w", rawExpiry, err)
			}
			stat.ExpiresAt = &expiry
		}
		stats = append(stats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats: %w", err)
	}
	return stats, nil
}
