package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"ctwapi/internal/database"
	"ctwapi/models"
	"ctwapi/utils"
)

const (
	// StatCapturedImages is the lifetime capture counter and doubles as the
	// score on the global images leaderboard.
	StatCapturedImages = "captured_images"
	// StatDailyExp and StatWeeklyExp accumulate experience inside rolling
	// windows and reset when the window ends.
	StatDailyExp  = "daily_exp"
	StatWeeklyExp = "weekly_exp"

	// captureExp is how much experience one capture is worth.
	captureExp = 10
)

// Service tracks per-user counters: lifetime totals plus windowed experience.
type Service struct {
	repo *database.StatsRepository
	now  func() time.Time
}

// NewService creates the stats service on the given repository.
func NewService(repo *database.StatsRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// DailyWindowEnd returns the end of the current daily window: the next UTC
// midnight.
func DailyWindowEnd(now time.Time) time.Time {
	return now.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
}

// WeeklyWindowEnd returns the end of the current weekly window. Windows are
// aligned by rounding down to whole 7-day spans since the epoch, matching the
// experience reset cadence.
func WeeklyWindowEnd(now time.Time) time.Time {
	const week = 7 * 24 * time.Hour
	return now.UTC().Truncate(week).Add(week)
}

// GetStats lists all live counters for the user.
func (s *Service) GetStats(ctx context.Context, userID uuid.UUID) ([]models.Stat, error) {
	stats, err := s.repo.List(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = []models.Stat{}
	}
	return stats, nil
}

// GetStat returns a single lifetime counter, 0 when never incremented.
func (s *Service) GetStat(ctx context.Context, userID uuid.UUID, name string) (int64, error) {
	return s.repo.Get(ctx, userID, name, nil)
}

// GetExpiringStat returns the counter bucket ending at expiresAt.
func (s *Service) GetExpiringStat(ctx context.Context, expiresAt time.Time, userID uuid.UUID, name string) (int64, error) {
	return s.repo.Get(ctx, userID, name, &expiresAt)
}

// Increment adds delta to a lifetime counter and returns the new value.
func (s *Service) Increment(ctx context.Context, userID uuid.UUID, name string, delta int64) (int64, error) {
	return s.repo.Increment(ctx, userID, name, delta, nil)
}

// RecordCapture applies all counter updates for one captured image: the
// lifetime total, a per-label counter, and the daily and weekly experience
// windows. Returns the new lifetime total. The four updates are independent,
// so they run concurrently; the first failure fails the call.
func (s *Service) RecordCapture(ctx context.Context, userID uuid.UUID, label string) (int64, error) {
	now := s.now()
	daily := DailyWindowEnd(now)
	weekly := WeeklyWindowEnd(now)

	var total int64
	p := pool.New().WithErrors().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		value, err := s.repo.Increment(ctx, userID, StatCapturedImages, 1, nil)
		total = value
		return err
	})
	p.Go(func(ctx context.Context) error {
		_, err := s.repo.Increment(ctx, userID, "label_"+utils.Slugify(label), 1, nil)
		return err
	})
	p.Go(func(ctx context.Context) error {
		_, err := s.repo.Increment(ctx, userID, StatDailyExp, captureExp, &daily)
		return err
	})
	p.Go(func(ctx context.Context) error {
		_, err := s.repo.Increment(ctx, userID, StatWeeklyExp, captureExp, &weekly)
		return err
	})
	if err := p.Wait(); err != nil {
		return 0, fmt.Errorf("record capture: %w", err)
	}
	return total, nil
}
