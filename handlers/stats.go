package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"ctwapi/models"
	statssvc "ctwapi/services/stats"
)

type statsService interface {
	GetStats(ctx context.Context, userID uuid.UUID) ([]models.Stat, error)
	GetStat(ctx context.Context, userID uuid.UUID, name string) (int64, error)
	GetExpiringStat(ctx context.Context, expiresAt time.Time, userID uuid.UUID, name string) (int64, error)
}

var _ statsService = (*statssvc.Service)(nil)

// StatsHandler exposes per-user counter statistics.
type StatsHandler struct {
	service statsService
}

// NewStatsHandler creates the stats handler.
func NewStatsHandler(service statsService) *StatsHandler {
	return &StatsHandler{service: service}
}

// Register attaches the stats routes. The fixed daily/weekly routes must be
// registered before the generic stat name route.
func (h *StatsHandler) Register(r *mux.Router) {
	r.HandleFunc("/stats/all", h.GetAllStats).Methods(http.MethodGet)
	r.HandleFunc("/stats/user/{userId}", h.GetUserStats).Methods(http.MethodGet)
	r.HandleFunc("/stats/stat/daily_exp", h.GetDailyExp).Methods(http.MethodGet)
	r.HandleFunc("/stats/stat/weekly_exp", h.GetWeeklyExp).Methods(http.MethodGet)
	r.HandleFunc("/stats/stat/{name}", h.GetStat).Methods(http.MethodGet)
}

// GetAllStats returns every live counter of the calling user.
// GET /api/stats/all
func (h *StatsHandler) GetAllStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	stats, err := h.service.GetStats(r.Context(), userID)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

// GetUserStats returns another user's counters.
// GET /api/stats/user/{userId}
func (h *StatsHandler) GetUserStats(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(mux.Vars(r)["userId"])
	if err != nil {
		jsonError(w, "invalid user id", http.StatusBadRequest)
		return
	}

	stats, err := h.service.GetStats(r.Context(), userID)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

// GetStat returns a single lifetime counter of the calling user.
// GET /api/stats/stat/{name}
func (h *StatsHandler) GetStat(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	value, err := h.service.GetStat(r.Context(), userID, mux.Vars(r)["name"])
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, value)
}

// GetDailyExp returns the experience gathered in the current daily window.
// GET /api/stats/stat/daily_exp
func (h *StatsHandler) GetDailyExp(w http.ResponseWriter, r *http.Request) {
	h.writeExpiringStat(w, r, statssvc.StatDailyExp, statssvc.DailyWindowEnd(time.Now()))
}

// GetWeeklyExp returns the experience gathered in the current weekly window.
// GET /api/stats/stat/weekly_exp
func (h *StatsHandler) GetWeeklyExp(w http.ResponseWriter, r *http.Request) {
	h.writeExpiringStat(w, r, statssvc.StatWeeklyExp, statssvc.WeeklyWindowEnd(time.Now()))
}

func (h *StatsHandler) writeExpiringStat(w http.ResponseWriter, r *http.Request, name string, expiresAt time.Time) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	value, err := h.service.GetExpiringStat(r.Context(), expiresAt, userID, name)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, value)
}
