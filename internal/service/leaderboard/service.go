// Package leaderboard maintains the ranked views over user points: a
// global board, one board per course, and a weekly board over points
// earned in the current ISO week. Rankings are recomputed wholesale and
// persisted, then mirrored into Redis for fast reads.
package leaderboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	prommetrics "github.com/aimd54/elearn-gamification/internal/metrics"
	"github.com/aimd54/elearn-gamification/internal/models"
	"github.com/aimd54/elearn-gamification/internal/repository"
	"github.com/aimd54/elearn-gamification/pkg/logger"
)

// ProfileRepository supplies the point totals rankings are built from.
type ProfileRepository interface {
	GetAllProfiles() ([]models.GamificationProfile, error)
	GetProfiles(userIDs []uint) ([]models.GamificationProfile, error)
	EarnedByUserBetween(start, end time.Time) (map[uint]int, error)
}

// LeaderboardRepository persists ranked scopes.
type LeaderboardRepository interface {
	ReplaceScope(scope models.LeaderboardScope, referenceID *uint, entries []models.LeaderboardEntry) error
	GetTop(scope models.LeaderboardScope, referenceID *uint, limit int) ([]models.LeaderboardEntry, error)
	GetUserEntry(userID uint, scope models.LeaderboardScope, referenceID *uint) (*models.LeaderboardEntry, error)
}

// EnrollmentRepository supplies course membership for course scopes.
type EnrollmentRepository interface {
	GetUserEnrollments(userID uint) ([]models.Enrollment, error)
	GetCourseEnrollments(courseID uint) ([]models.Enrollment, error)
}

// Entry is a single row in a leaderboard response.
type Entry struct {
	UserID uint   `json:"user_id"`
	Name   string `json:"name"`
	Points int    `json:"points"`
	Rank   int    `json:"rank"`
}

// Service handles leaderboard recomputation and reads.
type Service struct {
	profileRepo ProfileRepository
	lbRepo      LeaderboardRepository
	enrollRepo  EnrollmentRepository
	cache       *Cache // nil disables caching
	log         *logger.Logger
	stats       *statsDeps

	now func() time.Time
}

// NewService creates a leaderboard service with concrete repository types.
func NewService(
	profileRepo *repository.PointsRepository,
	lbRepo *repository.LeaderboardRepository,
	enrollRepo *repository.CatalogRepository,
	cache *Cache,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(profileRepo, lbRepo, enrollRepo, cache, log)
}

// NewServiceWithInterfaces creates a leaderboard service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	profileRepo ProfileRepository,
	lbRepo LeaderboardRepository,
	enrollRepo EnrollmentRepository,
	cache *Cache,
	log *logger.Logger,
) *Service {
	return &Service{
		profileRepo: profileRepo,
		lbRepo:      lbRepo,
		enrollRepo:  enrollRepo,
		cache:       cache,
		log:         log,
		now:         time.Now,
	}
}

// RecomputeForUser refreshes every scope the user appears on: the global
// board, each enrolled course's board, and the weekly board. Called after
// any balance change.
func (s *Service) RecomputeForUser(ctx context.Context, userID uint) error {
	if err := s.Recompute(ctx, models.ScopeGlobal, nil); err != nil {
		return err
	}

	enrollments, err := s.enrollRepo.GetUserEnrollments(userID)
	if err != nil {
		return fmt.Errorf("loading enrollments for user %d: %w", userID, err)
	}
	for _, e := range enrollments {
		courseID := e.CourseID
		if err := s.Recompute(ctx, models.ScopeCourse, &courseID); err != nil {
			return err
		}
	}

	return s.Recompute(ctx, models.ScopePeriodic, nil)
}

// Recompute rebuilds one scope from scratch: gather the scoped point
// totals, order them, assign dense ranks 1..N, and replace the persisted
// scope atomically. The Redis mirror is refreshed best-effort.
func (s *Service) Recompute(ctx context.Context, scope models.LeaderboardScope, referenceID *uint) error {
	start := s.now()

	ranked, periodStart, periodEnd, err := s.buildScope(scope, referenceID)
	if err != nil {
		return err
	}

	rows := make([]models.LeaderboardEntry, len(ranked))
	for i, e := range ranked {
		rows[i] = models.LeaderboardEntry{
			UserID:      e.UserID,
			Scope:       scope,
			ReferenceID: referenceID,
			Points:      e.Points,
			Rank:        e.Rank,
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
		}
	}
	if err := s.lbRepo.ReplaceScope(scope, referenceID, rows); err != nil {
		return fmt.Errorf("replacing %s leaderboard: %w", scope, err)
	}

	if s.cache != nil {
		if err := s.cache.SetScope(ctx, scope, referenceID, ranked); err != nil {
			s.log.Warn().Err(err).Str("scope", string(scope)).Msg("Leaderboard cache refresh failed")
		}
	}

	prommetrics.SetLeaderboardSize(string(scope), len(ranked))
	prommetrics.ObserveLeaderboardRecompute(string(scope), s.now().Sub(start).Seconds())
	return nil
}

// buildScope produces the ordered, dense-ranked entries for a scope.
func (s *Service) buildScope(scope models.LeaderboardScope, referenceID *uint) ([]Entry, *time.Time, *time.Time, error) {
	switch scope {
	case models.ScopeGlobal:
		profiles, err := s.profileRepo.GetAllProfiles()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("loading profiles: %w", err)
		}
		return rank(profiles, nil), nil, nil, nil

	case models.ScopeCourse:
		if referenceID == nil {
			return nil, nil, nil, fmt.Errorf("course leaderboard requires a course id")
		}
		enrollments, err := s.enrollRepo.GetCourseEnrollments(*referenceID)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("loading enrollments for course %d: %w", *referenceID, err)
		}
		userIDs := make([]uint, len(enrollments))
		for i, e := range enrollments {
			userIDs[i] = e.UserID
		}
		profiles, err := s.profileRepo.GetProfiles(userIDs)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("loading profiles for course %d: %w", *referenceID, err)
		}
		return rank(profiles, nil), nil, nil, nil

	case models.ScopePeriodic:
		weekStart, weekEnd := isoWeekBounds(s.now())
		earned, err := s.profileRepo.EarnedByUserBetween(weekStart, weekEnd)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("summing weekly points: %w", err)
		}
		userIDs := make([]uint, 0, len(earned))
		for userID := range earned {
			userIDs = append(userIDs, userID)
		}
		profiles, err := s.profileRepo.GetProfiles(userIDs)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("loading weekly profiles: %w", err)
		}
		return rank(profiles, earned), &weekStart, &weekEnd, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown leaderboard scope %q", scope)
	}
}

// rank orders profiles by points descending and assigns ranks 1..N by
// sorted position, so each rank is unique within the scope. Ties are
// broken by earlier profile creation, then by user ID, so the ordering
// is deterministic. When overrides is non-nil it supplies the point
// totals (periodic scope); otherwise the profile total is used.
func rank(profiles []models.GamificationProfile, overrides map[uint]int) []Entry {
	type scored struct {
		profile *models.GamificationProfile
		points  int
	}
	list := make([]scored, 0, len(profiles))
	for i := range profiles {
		p := &profiles[i]
		points := p.TotalPoints
		if overrides != nil {
			points = overrides[p.UserID]
		}
		list = append(list, scored{profile: p, points: points})
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].points != list[j].points {
			return list[i].points > list[j].points
		}
		if !list[i].profile.CreatedAt.Equal(list[j].profile.CreatedAt) {
			return list[i].profile.CreatedAt.Before(list[j].profile.CreatedAt)
		}
		return list[i].profile.UserID < list[j].profile.UserID
	})

	entries := make([]Entry, len(list))
	for i, sc := range list {
		entries[i] = Entry{
			UserID: sc.profile.UserID,
			Name:   sc.profile.User.Name,
			Points: sc.points,
			Rank:   i + 1,
		}
	}
	return entries
}

// GetGlobal returns the top of the global leaderboard.
func (s *Service) GetGlobal(ctx context.Context, limit int) ([]Entry, error) {
	return s.read(ctx, models.ScopeGlobal, nil, limit)
}

// GetCourse returns the top of a course leaderboard.
func (s *Service) GetCourse(ctx context.Context, courseID uint, limit int) ([]Entry, error) {
	return s.read(ctx, models.ScopeCourse, &courseID, limit)
}

// GetWeekly returns the top of the current week's leaderboard.
func (s *Service) GetWeekly(ctx context.Context, limit int) ([]Entry, error) {
	return s.read(ctx, models.ScopePeriodic, nil, limit)
}

// read serves a scope from the cache when possible, falling back to the
// persisted ranking.
func (s *Service) read(ctx context.Context, scope models.LeaderboardScope, referenceID *uint, limit int) ([]Entry, error) {
	if s.cache != nil {
		entries, err := s.cache.GetScope(ctx, scope, referenceID, limit)
		if err == nil {
			return entries, nil
		}
		if err != ErrCacheMiss {
			s.log.Warn().Err(err).Str("scope", string(scope)).Msg("Leaderboard cache read failed")
		}
	}

	rows, err := s.lbRepo.GetTop(scope, referenceID, limit)
	if err != nil {
		return nil, fmt.Errorf("reading %s leaderboard: %w", scope, err)
	}
	entries := make([]Entry, len(rows))
	for i, row := range rows {
		entries[i] = Entry{
			UserID: row.UserID,
			Name:   row.User.Name,
			Points: row.Points,
			Rank:   row.Rank,
		}
	}
	return entries, nil
}

// GetUserRank returns the user's persisted entry for a scope, or nil if
// the user is not ranked there.
func (s *Service) GetUserRank(ctx context.Context, userID uint, scope models.LeaderboardScope, referenceID *uint) (*models.LeaderboardEntry, error) {
	return s.lbRepo.GetUserEntry(userID, scope, referenceID)
}

// isoWeekBounds returns the [Monday 00:00 UTC, next Monday 00:00 UTC)
// interval containing t.
func isoWeekBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday closes the ISO week
	}
	monday := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(weekday - 1))
	return monday, monday.AddDate(0, 0, 7)
}
