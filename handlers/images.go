package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"ctwapi/models"
	imagessvc "ctwapi/services/images"
	statssvc "ctwapi/services/stats"
)

// imagesLeaderboardSlug is the global board fed by capture totals.
const imagesLeaderboardSlug = "images"

type imageService interface {
	Upload(ctx context.Context, userID uuid.UUID, label string, r io.Reader) (*models.CapturedImage, error)
	Get(ctx context.Context, userID, imageID uuid.UUID) (*models.CapturedImageWithDownloadURL, error)
	List(ctx context.Context, userID uuid.UUID, limit int) ([]models.CapturedImage, error)
	Open(ctx context.Context, userID, imageID uuid.UUID) (*models.CapturedImage, io.ReadCloser, error)
}

var _ imageService = (*imagessvc.Service)(nil)

type captureStatsService interface {
	RecordCapture(ctx context.Context, userID uuid.UUID, label string) (int64, error)
}

var _ captureStatsService = (*statssvc.Service)(nil)

type scoreSubmitter interface {
	SetScore(ctx context.Context, slug string, userID uuid.UUID, score int64) error
}

// ImagesHandler stores captures and applies their side effects: stat counters
// and the capture-total score on the global images board.
type ImagesHandler struct {
	images imageService
	stats  captureStatsService
	boards scoreSubmitter
}

// NewImagesHandler creates the images handler.
func NewImagesHandler(images imageService, stats captureStatsService, boards scoreSubmitter) *ImagesHandler {
	return &ImagesHandler{images: images, stats: stats, boards: boards}
}

// Register attaches the image routes.
func (h *ImagesHandler) Register(r *mux.Router) {
	r.HandleFunc("/images/{label}", h.Upload).Methods(http.MethodPost)
	r.HandleFunc("/images", h.List).Methods(http.MethodGet)
	r.HandleFunc("/images/{id}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/images/{id}/raw", h.Download).Methods(http.MethodGet)
}

// Upload accepts one capture as multipart form data and credits the user.
// POST /api/images/{label}
func (h *ImagesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	label := strings.TrimSpace(mux.Vars(r)["label"])
	if label == "" {
		jsonError(w, "label is required", http.StatusBadRequest)
		return
	}

	file, err := firstFormFile(r)
	if err != nil {
		jsonError(w, "no file uploaded, an image is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	image, err := h.images.Upload(r.Context(), userID, label, file)
	if err != nil {
		switch {
		case errors.Is(err, imagessvc.ErrNotAnImage), errors.Is(err, imagessvc.ErrTooLarge):
			jsonError(w, err.Error(), http.StatusBadRequest)
		default:
			jsonError(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	// Credit the capture. The upload already succeeded, so a failed side
	// effect is reported but does not take the capture away again.
	total, err := h.stats.RecordCapture(r.Context(), userID, label)
	if err != nil {
		log.Printf("[images] WARN: capture stored but stats not credited user=%s: %v", userID, err)
	} else if err := h.boards.SetScore(r.Context(), imagesLeaderboardSlug, userID, total); err != nil {
		log.Printf("[images] WARN: capture stored but score not submitted user=%s total=%d: %v", userID, total, err)
	}

	writeJSON(w, image)
}

// List returns the calling user's captures.
// GET /api/images
func (h *ImagesHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	images, err := h.images.List(r.Context(), userID, 100)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, images)
}

// Get returns capture metadata with its download path.
// GET /api/images/{id}
func (h *ImagesHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, imageID, ok := h.imageRequest(w, r)
	if !ok {
		return
	}

	image, err := h.images.Get(r.Context(), userID, imageID)
	if err != nil {
		writeImageError(w, err)
		return
	}
	writeJSON(w, image)
}

// Download streams the capture bytes.
// GET /api/images/{id}/raw
func (h *ImagesHandler) Download(w http.ResponseWriter, r *http.Request) {
	userID, imageID, ok := h.imageRequest(w, r)
	if !ok {
		return
	}

	image, blob, err := h.images.Open(r.Context(), userID, imageID)
	if err != nil {
		writeImageError(w, err)
		return
	}
	defer blob.Close()

	w.Header().Set("Content-Type", image.ContentType)
	if _, err := io.Copy(w, blob); err != nil {
		log.Printf("[images] stream %s aborted: %v", imageID, err)
	}
}

func (h *ImagesHandler) imageRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return uuid.Nil, uuid.Nil, false
	}

	imageID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		jsonError(w, "invalid image id", http.StatusBadRequest)
		return uuid.Nil, uuid.Nil, false
	}
	return userID, imageID, true
}

func writeImageError(w http.ResponseWriter, err error) {
	if errors.Is(err, imagessvc.ErrNotFound) {
		jsonError(w, "image not found", http.StatusNotFound)
		return
	}
	jsonError(w, err.Error(), http.StatusInternalServerError)
}

// firstFormFile returns the first file of the multipart form regardless of
// its field name, the way mobile clients send it.
func firstFormFile(r *http.Request) (io.ReadCloser, error) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, err
	}
	for _, files := range r.MultipartForm.File {
		for _, header := range files {
			return header.Open()
		}
	}
	return nil, http.ErrMissingFile
}
