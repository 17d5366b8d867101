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

// ImageRepository persists capture metadata. The binary payload lives in the
// object store; rows here only reference it through object_key.
type ImageRepository struct {
	conn *sql.DB
}

// NewImageRepository creates an image metadata repository on the shared connection.
func NewImageRepository(conn *sql.DB) *ImageRepository {
	return &ImageRepository{conn: conn}
}

// Insert records metadata for a freshly stored capture.
func (r *ImageRepository) Insert(ctx context.Context, image models.CapturedImage) error {
	_, err := r.conn.ExecContext(ctx, `
		INSERT INTO captured_images (id, user_id, label, content_type, size, object_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		image.ID.String(), image.UserID.String(), image.Label,
		image.ContentType, image.Size, image.ObjectKey, image.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert image: %w", err)
	}
	return nil
}

// GetByOwner returns the capture when it exists and belongs to the user,
// nil otherwise.
func (r *ImageRepository) GetByOwner(ctx context.Context, userID, imageID uuid.UUID) (*models.CapturedImage, error) {
	row := r.conn.QueryRowContext(ctx, `
		SELECT id, user_id, label, content_type, size, object_key, created_at
		FROM captured_images WHERE id = ? AND user_id = ?`,
		imageID.String(), userID.String())

	image, err := scanImage(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get image: %w", err)
	}
	return image, nil
}

// ListByOwner returns the user's captures, newest first.
func (r *ImageRepository) ListByOwner(ctx context.Context, userID uuid.UUID, limit int) ([]models.CapturedImage, error) {
	rows, err := r.conn.QueryContext(ctx, `
		SELECT id, user_id, label, content_type, size, object_key, created_at
		FROM captured_images WHERE user_id = ?
		ORDER BY created_at DESC LIMIT ?`,
		userID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	var images []models.CapturedImage
	for rows.Next() {
		image, err := scanImage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		images = append(images, *image)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate images: %w", err)
	}
	return images, nil
}

func scanImage(scan func(dest ...any) error) (*models.CapturedImage, error) {
	var rawID, rawUserID string
	var image models.CapturedImage
	var createdAt time.Time
	if err := scan(&rawID, &rawUserID, &image.Label, &image.ContentType, &image.Size, &image.ObjectKey, &createdAt); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse stored image id %q: %w", rawID, err)
	}
	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		return nil, fmt.Errorf("parse stored user id %q: %w", rawUserID, err)
	}

	image.ID = id
	image.UserID = userID
	image.CreatedAt = createdAt.UTC()
	return &image, nil
}
