package leaderboard

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aimd54/elearn-gamification/internal/models"
	"github.com/aimd54/elearn-gamification/pkg/logger"
)

// Mock repositories for testing
type mockProfileRepository struct {
	profiles []models.GamificationProfile
	earned   map[uint]int
}

func (m *mockProfileRepository) GetAllProfiles() ([]models.GamificationProfile, error) {
	return m.profiles, nil
}

func (m *mockProfileRepository) GetProfiles(userIDs []uint) ([]models.GamificationProfile, error) {
	want := make(map[uint]bool, len(userIDs))
	for _, id := range userIDs {
		want[id] = true
	}
	var result []models.GamificationProfile
	for _, p := range m.profiles {
		if want[p.UserID] {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *mockProfileRepository) EarnedByUserBetween(start, end time.Time) (map[uint]int, error) {
	return m.earned, nil
}

type mockLeaderboardRepository struct {
	scopes map[string][]models.LeaderboardEntry
}

func newMockLeaderboardRepository() *mockLeaderboardRepository {
	return &mockLeaderboardRepository{scopes: make(map[string][]models.LeaderboardEntry)}
}

func scopeKey(scope models.LeaderboardScope, referenceID *uint) string {
	if referenceID != nil {
		return fmt.Sprintf("%s:%d", scope, *referenceID)
	}
	return string(scope)
}

func (m *mockLeaderboardRepository) ReplaceScope(scope models.LeaderboardScope, referenceID *uint, entries []models.LeaderboardEntry) error {
	m.scopes[scopeKey(scope, referenceID)] = entries
	return nil
}

func (m *mockLeaderboardRepository) GetTop(scope models.LeaderboardScope, referenceID *uint, limit int) ([]models.LeaderboardEntry, error) {
	entries := m.scopes[scopeKey(scope, referenceID)]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (m *mockLeaderboardRepository) GetUserEntry(userID uint, scope models.LeaderboardScope, referenceID *uint) (*models.LeaderboardEntry, error) {
	for _, e := range m.scopes[scopeKey(scope, referenceID)] {
		if e.UserID == userID {
			entry := e
			return &entry, nil
		}
	}
	return nil, nil
}

type mockEnrollmentRepository struct {
	enrollments []models.Enrollment
}

func (m *mockEnrollmentRepository) GetUserEnrollments(userID uint) ([]models.Enrollment, error) {
	var result []models.Enrollment
	for _, e := range m.enrollments {
		if e.UserID == userID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockEnrollmentRepository) GetCourseEnrollments(courseID uint) ([]models.Enrollment, error) {
	var result []models.Enrollment
	for _, e := range m.enrollments {
		if e.CourseID == courseID {
			result = append(result, e)
		}
	}
	return result, nil
}

func profile(userID uint, points int, createdAt time.Time) models.GamificationProfile {
	return models.GamificationProfile{
		UserID:      userID,
		TotalPoints: points,
		CreatedAt:   createdAt,
		User:        models.User{ID: userID},
	}
}

func setupTestService(profiles []models.GamificationProfile) (*Service, *mockLeaderboardRepository, *mockProfileRepository) {
	profileRepo := &mockProfileRepository{profiles: profiles}
	lbRepo := newMockLeaderboardRepository()
	enrollRepo := &mockEnrollmentRepository{}
	log := logger.New("debug", "text", "stdout")

	service := NewServiceWithInterfaces(profileRepo, lbRepo, enrollRepo, nil, log)
	return service, lbRepo, profileRepo
}

func TestRankUniqueWithTies(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	profiles := []models.GamificationProfile{
		profile(1, 100, base),
		profile(2, 300, base),
		profile(3, 100, base.Add(time.Hour)),
		profile(4, 200, base),
	}

	entries := rank(profiles, nil)

	// Tied totals still get distinct ranks; position decides.
	expected := []struct {
		userID uint
		rank   int
		points int
	}{
		{2, 1, 300},
		{4, 2, 200},
		{1, 3, 100},
		{3, 4, 100},
	}
	if len(entries) != len(expected) {
		t.Fatalf("Expected %d entries, got %d", len(expected), len(entries))
	}
	for i, want := range expected {
		got := entries[i]
		if got.UserID != want.userID || got.Rank != want.rank || got.Points != want.points {
			t.Errorf("Position %d: expected user %d rank %d points %d, got user %d rank %d points %d",
				i, want.userID, want.rank, want.points, got.UserID, got.Rank, got.Points)
		}
	}
}

func TestRankIsPermutationOfPositions(t *testing.T) {
	base := time.Now()
	profiles := []models.GamificationProfile{
		profile(1, 500, base),
		profile(2, 500, base),
		profile(3, 500, base),
		profile(4, 100, base),
	}

	entries := rank(profiles, nil)

	// Ranks are exactly 1..N, no gaps, no duplicates, even with a
	// three-way tie at the top.
	seen := make(map[int]bool)
	for _, e := range entries {
		if e.Rank < 1 || e.Rank > len(entries) {
			t.Errorf("Rank %d out of range 1..%d", e.Rank, len(entries))
		}
		if seen[e.Rank] {
			t.Errorf("Duplicate rank %d", e.Rank)
		}
		seen[e.Rank] = true
	}
	if entries[3].Rank != 4 {
		t.Errorf("Expected rank 4 after three-way tie, got %d", entries[3].Rank)
	}
}

func TestRankTieBreakByCreationThenID(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	profiles := []models.GamificationProfile{
		profile(5, 100, base.Add(time.Hour)),
		profile(9, 100, base),
		profile(2, 100, base),
	}

	entries := rank(profiles, nil)

	// Same points: earlier profile first, then lower user ID.
	if entries[0].UserID != 2 || entries[1].UserID != 9 || entries[2].UserID != 5 {
		t.Errorf("Expected order [2 9 5], got [%d %d %d]", entries[0].UserID, entries[1].UserID, entries[2].UserID)
	}
	// The tie-break is what keeps ranks unique for equal totals.
	for i, e := range entries {
		if e.Rank != i+1 {
			t.Errorf("Expected rank %d at position %d, user %d got %d", i+1, i, e.UserID, e.Rank)
		}
	}
}

func TestRecomputeGlobalPersistsScope(t *testing.T) {
	base := time.Now()
	service, lbRepo, _ := setupTestService([]models.GamificationProfile{
		profile(1, 50, base),
		profile(2, 150, base),
	})

	if err := service.Recompute(context.Background(), models.ScopeGlobal, nil); err != nil {
		t.Fatalf("Recompute failed: %v", err)
	}

	rows := lbRepo.scopes[scopeKey(models.ScopeGlobal, nil)]
	if len(rows) != 2 {
		t.Fatalf("Expected 2 persisted entries, got %d", len(rows))
	}
	if rows[0].UserID != 2 || rows[0].Rank != 1 {
		t.Errorf("Expected user 2 at rank 1, got user %d rank %d", rows[0].UserID, rows[0].Rank)
	}
	if rows[0].Scope != models.ScopeGlobal {
		t.Errorf("Expected GLOBAL scope, got %s", rows[0].Scope)
	}
}

func TestRecomputeCourseScopedToEnrollment(t *testing.T) {
	base := time.Now()
	service, lbRepo, _ := setupTestService([]models.GamificationProfile{
		profile(1, 50, base),
		profile(2, 150, base),
		profile(3, 400, base),
	})
	courseID := uint(10)
	service.enrollRepo = &mockEnrollmentRepository{enrollments: []models.Enrollment{
		{UserID: 1, CourseID: courseID},
		{UserID: 2, CourseID: courseID},
	}}

	if err := service.Recompute(context.Background(), models.ScopeCourse, &courseID); err != nil {
		t.Fatalf("Recompute failed: %v", err)
	}

	rows := lbRepo.scopes[scopeKey(models.ScopeCourse, &courseID)]
	if len(rows) != 2 {
		t.Fatalf("Expected 2 entries for enrolled users only, got %d", len(rows))
	}
	for _, row := range rows {
		if row.UserID == 3 {
			t.Error("User 3 is not enrolled and must not be ranked")
		}
	}
}

func TestRecomputePeriodicUsesWeeklyEarnings(t *testing.T) {
	base := time.Now()
	service, lbRepo, profileRepo := setupTestService([]models.GamificationProfile{
		profile(1, 9000, base), // lifetime points must not matter here
		profile(2, 10, base),
	})
	profileRepo.earned = map[uint]int{1: 20, 2: 80}

	if err := service.Recompute(context.Background(), models.ScopePeriodic, nil); err != nil {
		t.Fatalf("Recompute failed: %v", err)
	}

	rows := lbRepo.scopes[scopeKey(models.ScopePeriodic, nil)]
	if len(rows) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(rows))
	}
	if rows[0].UserID != 2 || rows[0].Points != 80 {
		t.Errorf("Expected user 2 leading with 80 weekly points, got user %d with %d", rows[0].UserID, rows[0].Points)
	}
	if rows[0].PeriodStart == nil || rows[0].PeriodEnd == nil {
		t.Error("Expected period bounds on periodic entries")
	}
}

func TestRecomputeForUserRefreshesEnrolledCourses(t *testing.T) {
	base := time.Now()
	service, lbRepo, _ := setupTestService([]models.GamificationProfile{
		profile(1, 100, base),
	})
	service.enrollRepo = &mockEnrollmentRepository{enrollments: []models.Enrollment{
		{UserID: 1, CourseID: 7},
	}}

	if err := service.RecomputeForUser(context.Background(), 1); err != nil {
		t.Fatalf("RecomputeForUser failed: %v", err)
	}

	courseID := uint(7)
	if _, ok := lbRepo.scopes[scopeKey(models.ScopeGlobal, nil)]; !ok {
		t.Error("Expected global scope recomputed")
	}
	if _, ok := lbRepo.scopes[scopeKey(models.ScopeCourse, &courseID)]; !ok {
		t.Error("Expected course scope recomputed")
	}
	if _, ok := lbRepo.scopes[scopeKey(models.ScopePeriodic, nil)]; !ok {
		t.Error("Expected periodic scope recomputed")
	}
}

func TestIsoWeekBounds(t *testing.T) {
	tests := []struct {
		name  string
		in    time.Time
		start time.Time
	}{
		{
			"Wednesday",
			time.Date(2026, 8, 26, 15, 30, 0, 0, time.UTC),
			time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
		},
		{
			"Monday boundary",
			time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
		},
		{
			"Sunday belongs to the closing week",
			time.Date(2026, 8, 30, 23, 0, 0, 0, time.UTC),
			time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := isoWeekBounds(tt.in)
			if !start.Equal(tt.start) {
				t.Errorf("Expected week start %v, got %v", tt.start, start)
			}
			if !end.Equal(tt.start.AddDate(0, 0, 7)) {
				t.Errorf("Expected week end %v, got %v", tt.start.AddDate(0, 0, 7), end)
			}
		})
	}
}

func TestGetUserRankUnranked(t *testing.T) {
	service, _, _ := setupTestService(nil)

	entry, err := service.GetUserRank(context.Background(), 99, models.ScopeGlobal, nil)
	if err != nil {
		t.Fatalf("GetUserRank failed: %v", err)
	}
	if entry != nil {
		t.Errorf("Expected nil entry for unranked user, got %+v", entry)
	}
}
