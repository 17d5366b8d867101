package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"ctwapi/models"
	leaderboardsvc "ctwapi/services/leaderboard"
)

type leaderboardService interface {
	GetLeaderboard(ctx context.Context, slug string, offset, count int) ([]models.BoardEntry, error)
	GetLeaderboardAroundMe(ctx context.Context, slug string, userID uuid.UUID, count int) ([]models.BoardEntry, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (models.PublicProfile, error)
	SetProfile(ctx context.Context, userID uuid.UUID, name, avatar string) error
	SetScore(ctx context.Context, slug string, userID uuid.UUID, score int64) error
	GetRankOf(ctx context.Context, slug string, userID uuid.UUID) (int64, error)
}

var _ leaderboardService = (*leaderboardsvc.Service)(nil)

// LeaderboardHandler exposes leaderboard pages, ranks and profiles. It only
// translates between HTTP and the aggregator; identity comes pre-validated
// from the auth middleware.
type LeaderboardHandler struct {
	service leaderboardService
}

// NewLeaderboardHandler creates the leaderboard handler.
func NewLeaderboardHandler(service leaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{service: service}
}

// Register attaches the leaderboard and profile routes.
func (h *LeaderboardHandler) Register(r *mux.Router) {
	r.HandleFunc("/leaderboard/{slug}", h.GetLeaderboard).Methods(http.MethodGet)
	r.HandleFunc("/leaderboard/{slug}/me", h.GetLeaderboardAroundMe).Methods(http.MethodGet)
	r.HandleFunc("/leaderboard/{slug}/rank", h.GetRank).Methods(http.MethodGet)
	r.HandleFunc("/leaderboard/{slug}/score", h.SetScore).Methods(http.MethodPost)
	r.HandleFunc("/profile", h.GetOwnProfile).Methods(http.MethodGet)
	r.HandleFunc("/profile", h.SetProfile).Methods(http.MethodPost)
	r.HandleFunc("/profile/{userId}", h.GetProfile).Methods(http.MethodGet)
}

// GetLeaderboard returns one ranked page of a board.
// GET /api/leaderboard/{slug}?offset=0&count=10
func (h *LeaderboardHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	count, err := queryInt(r, "count", 10)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	entries, err := h.service.GetLeaderboard(r.Context(), slug, offset, count)
	if err != nil {
		writeLeaderboardError(w, err)
		return
	}
	writeJSON(w, entries)
}

// GetLeaderboardAroundMe returns the window around the calling user.
// GET /api/leaderboard/{slug}/me?count=10
func (h *LeaderboardHandler) GetLeaderboardAroundMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	slug := mux.Vars(r)["slug"]
	count, err := queryInt(r, "count", 10)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	entries, err := h.service.GetLeaderboardAroundMe(r.Context(), slug, userID, count)
	if err != nil {
		writeLeaderboardError(w, err)
		return
	}
	writeJSON(w, entries)
}

// GetRank returns the calling user's rank on a board.
// GET /api/leaderboard/{slug}/rank
func (h *LeaderboardHandler) GetRank(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	rank, err := h.service.GetRankOf(r.Context(), mux.Vars(r)["slug"], userID)
	if err != nil {
		writeLeaderboardError(w, err)
		return
	}
	writeJSON(w, map[string]int64{"rank": rank})
}

// SetScore submits a score for the calling user.
// POST /api/leaderboard/{slug}/score
func (h *LeaderboardHandler) SetScore(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var request struct {
		Score int64 `json:"score"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&request); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.SetScore(r.Context(), mux.Vars(r)["slug"], userID, request.Score); err != nil {
		writeLeaderboardError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetOwnProfile returns the calling user's public profile.
// GET /api/profile
func (h *LeaderboardHandler) GetOwnProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	h.writeProfile(w, r, userID)
}

// GetProfile returns any user's public profile. Unknown users get the
// placeholder, not a 404.
// GET /api/profile/{userId}
func (h *LeaderboardHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(mux.Vars(r)["userId"])
	if err != nil {
		jsonError(w, "invalid user id", http.StatusBadRequest)
		return
	}
	h.writeProfile(w, r, userID)
}

func (h *LeaderboardHandler) writeProfile(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	profile, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		writeLeaderboardError(w, err)
		return
	}
	writeJSON(w, profile)
}

// SetProfile upserts the calling user's display name and avatar.
// POST /api/profile
func (h *LeaderboardHandler) SetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var request struct {
		Name   string `json:"name"`
		Avatar string `json:"avatar"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&request); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.SetProfile(r.Context(), userID, request.Name, request.Avatar); err != nil {
		writeLeaderboardError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeLeaderboardError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, leaderboardsvc.ErrInvalidArgument):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, leaderboardsvc.ErrBackendUnavailable):
		jsonError(w, err.Error(), http.StatusBadGateway)
	default:
		jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("query parameter %s must be an integer", name)
	}
	return value, nil
}
