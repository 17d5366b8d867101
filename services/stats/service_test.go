package stats_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"ctwapi/internal/database"
	"ctwapi/services/stats"
)

func setupService(t *testing.T) *stats.Service {
	t.Helper()

	db, err := database.NewDB(database.Config{
		DatabasePath: filepath.Join(t.TempDir(), "ctwapi.db"),
	})
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return stats.NewService(db.Stats)
}

func TestRecordCaptureCreditsAllCounters(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	userID := uuid.New()

	total, err := svc.RecordCapture(ctx, userID, "Red Bicycle")
	if err != nil {
		t.Fatalf("record capture: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected first capture total 1, got %d", total)
	}

	total, err = svc.RecordCapture(ctx, userID, "Red Bicycle")
	if err != nil {
		t.Fatalf("record capture: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected total 2, got %d", total)
	}

	labelCount, err := svc.GetStat(ctx, userID, "label_red-bicycle")
	if err != nil {
		t.Fatalf("get label stat: %v", err)
	}
	if labelCount != 2 {
		t.Fatalf("expected label counter 2, got %d", labelCount)
	}

	daily, err := svc.GetExpiringStat(ctx, stats.DailyWindowEnd(time.Now()), userID, stats.StatDailyExp)
	if err != nil {
		t.Fatalf("get daily exp: %v", err)
	}
	if daily != 20 {
		t.Fatalf("expected 20 daily exp after two captures, got %d", daily)
	}

	weekly, err := svc.GetExpiringStat(ctx, stats.WeeklyWindowEnd(time.Now()), userID, stats.StatWeeklyExp)
	if err != nil {
		t.Fatalf("get weekly exp: %v", err)
	}
	if weekly != 20 {
		t.Fatalf("expected 20 weekly exp after two captures, got %d", weekly)
	}
}

func TestGetStatsListsLiveCounters(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	userID := uuid.New()

	if _, err := svc.RecordCapture(ctx, userID, "Lamp"); err != nil {
		t.Fatalf("record capture: %v", err)
	}

	all, err := svc.GetStats(ctx, userID)
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	// captured_images, label_lamp, daily_exp, weekly_exp
	if len(all) != 4 {
		t.Fatalf("expected 4 counters, got %d: %+v", len(all), all)
	}
}

func TestGetStatsForFreshUserIsEmptyNotNil(t *testing.T) {
	svc := setupService(t)

	all, err := svc.GetStats(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	if all == nil || len(all) != 0 {
		t.Fatalf("expected empty slice, got %v", all)
	}
}

func TestWindowEnds(t *testing.T) {
	now := time.Date(2026, 8, 28, 13, 45, 0, 0, time.UTC)

	daily := stats.DailyWindowEnd(now)
	if daily != time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("unexpected daily window end: %v", daily)
	}

	weekly := stats.WeeklyWindowEnd(now)
	if !weekly.After(now) {
		t.Fatalf("weekly window end must be in the future: %v", weekly)
	}
	if weekly.Sub(now) > 7*24*time.Hour {
		t.Fatalf("weekly window end too far out: %v", weekly)
	}
	// Stable bucket key: every instant in the same week maps to the same end.
	if stats.WeeklyWindowEnd(now.Add(3*time.Hour)) != weekly {
		t.Fatalf("weekly window end must be stable within the window")
	}
}
