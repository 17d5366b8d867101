package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"ctwapi/internal/database"
	"ctwapi/models"
)

var (
	// ErrNotFound reports a capture that does not exist or is not owned by
	// the requesting user.
	ErrNotFound = errors.New("image not found")
	// ErrNotAnImage rejects uploads whose sniffed content type is not image/*.
	ErrNotAnImage = errors.New("upload is not an image")
	// ErrTooLarge rejects uploads above the size cap.
	ErrTooLarge = errors.New("upload exceeds size limit")
)

// maxUploadSize caps a single capture at 20 MiB.
const maxUploadSize = 20 << 20

// Service stores captured images: the blob in an object store, the metadata
// row in sqlite.
type Service struct {
	repo *database.ImageRepository
	fs   afero.Fs
}

// NewService creates the image service over the given object store
// filesystem. Production wires an OS-backed fs rooted at the images
// directory; tests use an in-memory one.
func NewService(repo *database.ImageRepository, fs afero.Fs) *Service {
	return &Service{repo: repo, fs: fs}
}

// Upload reads one capture, verifies it is an image, stores the blob and
// records the metadata. The object key shards by owner so one user's blobs
// stay together.
func (s *Service) Upload(ctx context.Context, userID uuid.UUID, label string, r io.Reader) (*models.CapturedImage, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > maxUploadSize {
		return nil, fmt.Errorf("%w: larger than %d bytes", ErrTooLarge, maxUploadSize)
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, fmt.Errorf("%w: detected %s", ErrNotAnImage, mtype.String())
	}

	image := models.CapturedImage{
		ID:          uuid.New(),
		UserID:      userID,
		Label:       label,
		ContentType: mtype.String(),
		Size:        int64(len(data)),
		CreatedAt:   time.Now().UTC(),
	}
	image.ObjectKey = path.Join(userID.String(), image.ID.String()+mtype.Extension())

	if err := s.writeBlob(ctx, image.ObjectKey, data); err != nil {
		return nil, err
	}

	if err := s.repo.Insert(ctx, image); err != nil {
		// Don't leave an orphaned blob behind a failed metadata write.
		_ = s.fs.Remove(image.ObjectKey)
		return nil, err
	}
	return &image, nil
}

// Get returns capture metadata with its download path. Only the owner sees
// the capture; anyone else gets ErrNotFound.
func (s *Service) Get(ctx context.Context, userID, imageID uuid.UUID) (*models.CapturedImageWithDownloadURL, error) {
	image, err := s.repo.GetByOwner(ctx, userID, imageID)
	if err != nil {
		return nil, err
	}
	if image == nil {
		return nil, ErrNotFound
	}
	return &models.CapturedImageWithDownloadURL{
		CapturedImage: *image,
		DownloadURL:   fmt.Sprintf("/api/images/%s/raw", image.ID),
	}, nil
}

// List returns the user's captures, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID, limit int) ([]models.CapturedImage, error) {
	images, err := s.repo.ListByOwner(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if images == nil {
		images = []models.CapturedImage{}
	}
	return images, nil
}

// Open returns the capture metadata and a reader over its blob. The caller
// closes the reader.
func (s *Service) Open(ctx context.Context, userID, imageID uuid.UUID) (*models.CapturedImage, io.ReadCloser, error) {
	image, err := s.repo.GetByOwner(ctx, userID, imageID)
	if err != nil {
		return nil, nil, err
	}
	if image == nil {
		return nil, nil, ErrNotFound
	}

	file, err := s.fs.Open(image.ObjectKey)
	if err != nil {
		return nil, nil, fmt.Errorf("open blob %s: %w", image.ObjectKey, err)
	}
	return image, file, nil
}

// writeBlob persists the bytes, retrying transient filesystem failures.
func (s *Service) writeBlob(ctx context.Context, key string, data []byte) error {
	err := retry.Do(
		func() error {
			if dir := path.Dir(key); dir != "." {
				if err := s.fs.MkdirAll(dir, 0755); err != nil {
					return err
				}
			}
			return afero.WriteFile(s.fs, key, data, 0644)
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(100*time.Millisecond),
	)
	if err != nil {
		return fmt.Errorf("write blob %s: %w", key, err)
	}
	return nil
}
