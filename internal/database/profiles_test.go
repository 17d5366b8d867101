package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"ctwapi/internal/database"
	"ctwapi/models"
)

func setupDB(t *testing.T) *database.DB {
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
	return db
}

func TestProfileUpsertAndGetOne(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	userID := uuid.New()

	profile := models.Profile{UserID: userID, Name: "Alice", Avatar: "a.png"}
	if err := db.Profiles.Upsert(ctx, profile); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := db.Profiles.GetOne(ctx, userID)
	if err != nil {
		t.Fatalf("get one: %v", err)
	}
	if got == nil {
		t.Fatal("expected stored profile")
	}
	if got.Name != "Alice" || got.Avatar != "a.png" || got.UserID != userID {
		t.Fatalf("unexpected profile: %+v", got)
	}
}

func TestProfileGetOneAbsentIsNilNotError(t *testing.T) {
	db := setupDB(t)

	got, err := db.Profiles.GetOne(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("absence must not be an error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil profile, got %+v", got)
	}
}

func TestProfileUpsertIsLastWriteWins(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	userID := uuid.New()

	if err := db.Profiles.Upsert(ctx, models.Profile{UserID: userID, Name: "Alice", Avatar: "a.png"}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := db.Profiles.Upsert(ctx, models.Profile{UserID: userID, Name: "Bob", Avatar: ""}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := db.Profiles.GetOne(ctx, userID)
	if err != nil {
		t.Fatalf("get one: %v", err)
	}
	if got.Name != "Bob" || got.Avatar != "" {
		t.Fatalf("expected the latest write to win, got %+v", got)
	}
}

func TestProfileGetManyResolvesOnlyStoredIDs(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	alice := uuid.New()
	bob := uuid.New()
	missing := uuid.New()

	if err := db.Profiles.Upsert(ctx, models.Profile{UserID: alice, Name: "Alice"}); err != nil {
		t.Fatalf("upsert alice: %v", err)
	}
	if err := db.Profiles.Upsert(ctx, models.Profile{UserID: bob, Name: "Bob"}); err != nil {
		t.Fatalf("upsert bob: %v", err)
	}

	profiles, err := db.Profiles.GetMany(ctx, []uuid.UUID{alice, bob, missing})
	if err != nil {
		t.Fatalf("get many: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}

	names := map[string]bool{}
	for _, p := range profiles {
		names[p.Name] = true
	}
	if !names["Alice"] || !names["Bob"] {
		t.Fatalf("unexpected profiles: %+v", profiles)
	}
}

func TestProfileGetManyEmptySet(t *testing.T) {
	db := setupDB(t)

	profiles, err := db.Profiles.GetMany(context.Background(), nil)
	if err != nil {
		t.Fatalf("get many: %v", err)
	}
	if len(profiles) != 0 {
		t.Fatalf("expected no profiles, got %d", len(profiles))
	}
}
