package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"ctwapi/models"
)

// ProfileRepository persists leaderboard profiles. Absence is not an error:
// GetOne returns (nil, nil) for an unknown user so callers can distinguish a
// missing profile from a storage failure.
type ProfileRepository struct {
	conn *sql.DB
}

// NewProfileRepository creates a profile repository on the shared connection.
func NewProfileRepository(conn *sql.DB) *ProfileRepository {
	return &ProfileRepository{conn: conn}
}

// Upsert writes a profile, replacing name and avatar on conflict. Repeated
// writes for the same user are last-write-wins.
func (r *ProfileRepository) Upsert(ctx context.Context, profile models.Profile) error {
	_, err := r.conn.ExecContext(ctx, `
		INSERT INTO leaderboard_profiles (user_id, name, avatar)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET name = excluded.name, avatar = excluded.avatar`,
		profile.UserID.String(), profile.Name, profile.Avatar)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// GetOne returns the stored profile for the user, or nil when none exists.
func (r *ProfileRepository) GetOne(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	row := r.conn.QueryRowContext(ctx,
		"SELECT user_id, name, avatar FROM leaderboard_profiles WHERE user_id = ?", id.String())

	profile, err := scanProfile(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return profile, nil
}

// GetMany resolves a set of user ids in a single query. Users without a
// stored profile are simply absent from the result; the caller decides how to
// fill the gaps.
func (r *ProfileRepository) GetMany(ctx context.Context, ids []uuid.UUID) ([]models.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id.String()
	}

	query := fmt.Sprintf(
		"SELECT user_id, name, avatar FROM leaderboard_profiles WHERE user_id IN (%s)",
		strings.Join(placeholders, ","))

	rows, err := r.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.Profile
	for rows.Next() {
		profile, err := scanProfile(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, *profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return profiles, nil
}

func scanProfile(scan func(dest ...any) error) (*models.Profile, error) {
	var rawID, name, avatar string
	if err := scan(&rawID, &name, &avatar); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse stored user id %q: %w", rawID, err)
	}
	return &models.Profile{UserID: id, Name: name, Avatar: avatar}, nil
}
