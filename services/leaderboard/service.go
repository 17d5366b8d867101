package leaderboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"ctwapi/internal/database"
	"ctwapi/models"
	"ctwapi/services/scores"
)

var (
	// ErrInvalidArgument reports an out-of-bounds page request or a
	// malformed user id. Never worth retrying.
	ErrInvalidArgument = errors.New("invalid leaderboard argument")
	// ErrBackendUnavailable reports that the score backend or the profile
	// store could not be reached. Distinct from an empty leaderboard.
	ErrBackendUnavailable = errors.New("leaderboard backend unavailable")
)

const (
	defaultPrefix = "ctw_"
	// maxPageSize bounds a single range request before it reaches the
	// backend.
	maxPageSize = 100

	// Score submission policy. Fixed here, not caller-configurable: a
	// caller that needs different retention gets a new operation.
	scoreConfidence = 1.0
	scoreDaysToKeep = 30
)

// ScoreBackend is the ranked-score collaborator. Entries come back in rank
// order with opaque string user ids.
type ScoreBackend interface {
	GetRange(ctx context.Context, slug string, offset, count int) ([]scores.BoardScore, error)
	GetWindowAroundUser(ctx context.Context, slug, userID string, count, below int) ([]scores.BoardScore, error)
	PostScore(ctx context.Context, slug string, score scores.ScoreCreate) error
	GetRank(ctx context.Context, slug, userID string) (int64, error)
}

var _ ScoreBackend = (*scores.Client)(nil)

// ProfileStore resolves user ids to display profiles. GetMany must answer a
// whole id set in one round trip; GetOne returns (nil, nil) for absence.
type ProfileStore interface {
	GetMany(ctx context.Context, ids []uuid.UUID) ([]models.Profile, error)
	GetOne(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	Upsert(ctx context.Context, profile models.Profile) error
}

var _ ProfileStore = (*database.ProfileRepository)(nil)

// Service merges score backend rankings with locally stored profiles into
// human-readable leaderboard pages. It owns the tenant slug prefix and the
// unknown-profile fallback; it holds no mutable state after construction and
// is safe for any number of concurrent callers.
//
// Pagination offers no snapshot isolation: concurrent score writes may shift
// ranks between two page fetches, so a user can show up twice or be skipped
// across pages. Accepted trade-off, not worth distributed locking.
type Service struct {
	backend  ScoreBackend
	profiles ProfileStore
	prefix   string
}

// NewService builds the aggregator. An empty prefix falls back to the
// default tenant prefix.
func NewService(backend ScoreBackend, profiles ProfileStore, prefix string) *Service {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Service{
		backend:  backend,
		profiles: profiles,
		prefix:   prefix,
	}
}

func (s *Service) prefixed(slug string) string {
	return s.prefix + slug
}

// GetLeaderboard returns the ranked page [offset, offset+count) of a board,
// each entry enriched with the stored profile or a placeholder. An empty or
// score-less board is an empty page, never an error.
func (s *Service) GetLeaderboard(ctx context.Context, slug string, offset, count int) ([]models.BoardEntry, error) {
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset %d must not be negative", ErrInvalidArgument, offset)
	}
	if count <= 0 || count > maxPageSize {
		return nil, fmt.Errorf("%w: count %d must be in 1..%d", ErrInvalidArgument, count, maxPageSize)
	}

	ranked, err := s.backend.GetRange(ctx, s.prefixed(slug), offset, count)
	if err != nil {
		return nil, s.wrapBackendErr("leaderboard range", err)
	}
	return s.resolveEntries(ctx, ranked)
}

// GetLeaderboardAroundMe returns a window centered on the user: count entries
// above and count/2 below. The floor division is deliberate, so an odd count
// gives an asymmetric window. A user without a score on the board yields the
// backend's answer unchanged; no zero score is invented for them.
func (s *Service) GetLeaderboardAroundMe(ctx context.Context, slug string, userID uuid.UUID, count int) ([]models.BoardEntry, error) {
	if count <= 0 || count > maxPageSize {
		return nil, fmt.Errorf("%w: count %d must be in 1..%d", ErrInvalidArgument, count, maxPageSize)
	}

	ranked, err := s.backend.GetWindowAroundUser(ctx, s.prefixed(slug), userID.String(), count, count/2)
	if err != nil {
		return nil, s.wrapBackendErr("leaderboard window", err)
	}
	return s.resolveEntries(ctx, ranked)
}

// GetProfile returns the public profile for a user. Absence is data, not an
// error: an unknown user gets the placeholder name and an empty avatar.
func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (models.PublicProfile, error) {
	profile, err := s.profiles.GetOne(ctx, userID)
	if err != nil {
		if ctx.Err() != nil {
			return models.PublicProfile{}, ctx.Err()
		}
		return models.PublicProfile{}, fmt.Errorf("%w: get profile: %v", ErrBackendUnavailable, err)
	}
	if profile == nil {
		return models.PublicProfile{Name: models.UnknownName, Avatar: ""}, nil
	}
	return models.PublicProfile{Name: profile.Name, Avatar: profile.Avatar}, nil
}

// SetProfile upserts the user's display data, last write wins. Ownership is
// the caller's concern: the auth layer passes only validated ids down here.
func (s *Service) SetProfile(ctx context.Context, userID uuid.UUID, name, avatar string) error {
	err := s.profiles.Upsert(ctx, models.Profile{UserID: userID, Name: name, Avatar: avatar})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: set profile: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// SetScore submits a score under this service's fixed policy: maximum
// confidence, high-score-only semantics, 30 day retention.
func (s *Service) SetScore(ctx context.Context, slug string, userID uuid.UUID, score int64) error {
	err := s.backend.PostScore(ctx, s.prefixed(slug), scores.ScoreCreate{
		UserID:     userID.String(),
		Score:      score,
		Confidence: scoreConfidence,
		HighScore:  true,
		DaysToKeep: scoreDaysToKeep,
	})
	if err != nil {
		return s.wrapBackendErr("set score", err)
	}
	return nil
}

// GetRankOf returns the user's rank on the board. Pure passthrough: ranks
// shift too often to cache without invalidation, so none is attempted.
func (s *Service) GetRankOf(ctx context.Context, slug string, userID uuid.UUID) (int64, error) {
	rank, err := s.backend.GetRank(ctx, s.prefixed(slug), userID.String())
	if err != nil {
		return 0, s.wrapBackendErr("get rank", err)
	}
	return rank, nil
}

// resolveEntries turns ranked backend entries into profile-enriched board
// entries. All ids are resolved in one batched store query; a missing profile
// becomes a placeholder, never a failed page.
func (s *Service) resolveEntries(ctx context.Context, ranked []scores.BoardScore) ([]models.BoardEntry, error) {
	if len(ranked) == 0 {
		return []models.BoardEntry{}, nil
	}

	parsed := make([]uuid.UUID, len(ranked))
	unique := make([]uuid.UUID, 0, len(ranked))
	seen := make(map[uuid.UUID]struct{}, len(ranked))
	for i, entry := range ranked {
		id, err := uuid.Parse(entry.UserID)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed user id %q from score backend", ErrInvalidArgument, entry.UserID)
		}
		parsed[i] = id
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			unique = append(unique, id)
		}
	}

	profiles, err := s.profiles.GetMany(ctx, unique)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: resolve profiles: %v", ErrBackendUnavailable, err)
	}

	byID := make(map[uuid.UUID]models.Profile, len(profiles))
	for _, profile := range profiles {
		byID[profile.UserID] = profile
	}

	entries := make([]models.BoardEntry, 0, len(ranked))
	for i, entry := range ranked {
		profile, ok := byID[parsed[i]]
		if !ok {
			profile = models.PlaceholderProfile(parsed[i])
		}
		entries = append(entries, models.BoardEntry{User: profile, Score: entry.Score})
	}
	return entries, nil
}

func (s *Service) wrapBackendErr(op string, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, scores.ErrUnavailable):
		return fmt.Errorf("%s: %w: %v", op, ErrBackendUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
