package handlers_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"ctwapi/handlers"
	"ctwapi/models"
	imagessvc "ctwapi/services/images"
)

type fakeImageService struct {
	image *models.CapturedImage
	err   error

	uploadedLabel string
	uploadedBytes []byte
}

func (f *fakeImageService) Upload(_ context.Context, userID uuid.UUID, label string, r io.Reader) (*models.CapturedImage, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.uploadedLabel = label
	f.uploadedBytes = data
	image := models.CapturedImage{
		ID:          uuid.New(),
		UserID:      userID,
		Label:       label,
		ContentType: "image/png",
		Size:        int64(len(data)),
		CreatedAt:   time.Now().UTC(),
	}
	f.image = &image
	return &image, nil
}

func (f *fakeImageService) Get(context.Context, uuid.UUID, uuid.UUID) (*models.CapturedImageWithDownloadURL, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.CapturedImageWithDownloadURL{CapturedImage: *f.image, DownloadURL: "/api/images/" + f.image.ID.String() + "/raw"}, nil
}

func (f *fakeImageService) List(context.Context, uuid.UUID, int) ([]models.CapturedImage, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.image == nil {
		return []models.CapturedImage{}, nil
	}
	return []models.CapturedImage{*f.image}, nil
}

func (f *fakeImageService) Open(context.Context, uuid.UUID, uuid.UUID) (*models.CapturedImage, io.ReadCloser, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.image, io.NopCloser(bytes.NewReader(f.uploadedBytes)), nil
}

type fakeCaptureStats struct {
	total int64
	err   error
	label string
	calls int
}

func (f *fakeCaptureStats) RecordCapture(_ context.Context, _ uuid.UUID, label string) (int64, error) {
	f.calls++
	f.label = label
	return f.total, f.err
}

type fakeScoreSubmitter struct {
	slug  string
	score int64
	err   error
	calls int
}

func (f *fakeScoreSubmitter) SetScore(_ context.Context, slug string, _ uuid.UUID, score int64) error {
	f.calls++
	f.slug = slug
	f.score = score
	return f.err
}

func newImagesRouter(images *fakeImageService, stats *fakeCaptureStats, boards *fakeScoreSubmitter) *mux.Router {
	router := mux.NewRouter()
	handlers.NewImagesHandler(images, stats, boards).Register(router)
	return router
}

func multipartUpload(t *testing.T, url string, payload []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("photo", "capture.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, url, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestUploadStoresAndCreditsCapture(t *testing.T) {
	images := &fakeImageService{}
	stats := &fakeCaptureStats{total: 5}
	boards := &fakeScoreSubmitter{}
	router := newImagesRouter(images, stats, boards)

	req := authed(multipartUpload(t, "/images/Red%20Bicycle", []byte("png-bytes")), uuid.New())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if images.uploadedLabel != "Red Bicycle" || string(images.uploadedBytes) != "png-bytes" {
		t.Fatalf("unexpected upload: label=%q bytes=%q", images.uploadedLabel, images.uploadedBytes)
	}
	if stats.calls != 1 || stats.label != "Red Bicycle" {
		t.Fatalf("capture not credited: %+v", stats)
	}
	if boards.calls != 1 || boards.slug != "images" || boards.score != 5 {
		t.Fatalf("capture total not submitted as score: %+v", boards)
	}
}

func TestUploadWithoutFileIsRejected(t *testing.T) {
	images := &fakeImageService{}
	stats := &fakeCaptureStats{}
	router := newImagesRouter(images, stats, &fakeScoreSubmitter{})

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	writer.Close()
	req := httptest.NewRequest(http.MethodPost, "/images/lamp", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authed(req, uuid.New()))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a file, got %d", rec.Code)
	}
	if stats.calls != 0 {
		t.Fatal("no capture may be credited")
	}
}

func TestUploadNonImageIsRejected(t *testing.T) {
	images := &fakeImageService{err: imagessvc.ErrNotAnImage}
	stats := &fakeCaptureStats{}
	router := newImagesRouter(images, stats, &fakeScoreSubmitter{})

	req := authed(multipartUpload(t, "/images/lamp", []byte("just text")), uuid.New())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a non-image, got %d", rec.Code)
	}
	if stats.calls != 0 {
		t.Fatal("rejected upload must not be credited")
	}
}

func TestUploadSurvivesFailedSideEffects(t *testing.T) {
	images := &fakeImageService{}
	stats := &fakeCaptureStats{err: errors.New("stats db down")}
	boards := &fakeScoreSubmitter{}
	router := newImagesRouter(images, stats, boards)

	req := authed(multipartUpload(t, "/images/lamp", []byte("png-bytes")), uuid.New())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("stored capture must be reported even when crediting fails, got %d", rec.Code)
	}
	if boards.calls != 0 {
		t.Fatal("no score may be submitted without a credited total")
	}
}

func TestGetUnknownImageIsNotFound(t *testing.T) {
	images := &fakeImageService{err: imagessvc.ErrNotFound}
	router := newImagesRouter(images, &fakeCaptureStats{}, &fakeScoreSubmitter{})

	req := authed(httptest.NewRequest(http.MethodGet, "/images/"+uuid.NewString(), nil), uuid.New())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestDownloadStreamsBlobWithContentType(t *testing.T) {
	images := &fakeImageService{}
	router := newImagesRouter(images, &fakeCaptureStats{}, &fakeScoreSubmitter{})
	userID := uuid.New()

	req := authed(multipartUpload(t, "/images/lamp", []byte("png-bytes")), userID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload failed: %d", rec.Code)
	}

	req = authed(httptest.NewRequest(http.MethodGet, "/images/"+images.image.ID.String()+"/raw", nil), userID)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "image/png" {
		t.Fatalf("expected image/png, got %q", got)
	}
	if rec.Body.String() != "png-bytes" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestListRequiresIdentity(t *testing.T) {
	router := newImagesRouter(&fakeImageService{}, &fakeCaptureStats{}, &fakeScoreSubmitter{})

	req := httptest.NewRequest(http.MethodGet, "/images", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", rec.Code)
	}
}

func TestInvalidImageIDIsBadRequest(t *testing.T) {
	router := newImagesRouter(&fakeImageService{}, &fakeCaptureStats{}, &fakeScoreSubmitter{})

	req := authed(httptest.NewRequest(http.MethodGet, "/images/not-a-uuid", nil), uuid.New())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
