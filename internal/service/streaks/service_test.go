package streaks

import (
	"context"
	"testing"
	"time"

	"github.com/aimd54/elearn-gamification/internal/config"
	"github.com/aimd54/elearn-gamification/internal/models"
	"github.com/aimd54/elearn-gamification/pkg/logger"
	"github.com/aimd54/elearn-gamification/pkg/userlock"
)

// Mock repositories for testing
type mockProfileRepository struct {
	profiles map[uint]*models.GamificationProfile
}

func newMockProfileRepository() *mockProfileRepository {
	return &mockProfileRepository{profiles: make(map[uint]*models.GamificationProfile)}
}

func (m *mockProfileRepository) GetOrCreateProfile(userID uint) (*models.GamificationProfile, error) {
	if p, ok := m.profiles[userID]; ok {
		return p, nil
	}
	p := &models.GamificationProfile{UserID: userID}
	m.profiles[userID] = p
	return p, nil
}

func (m *mockProfileRepository) SaveProfile(profile *models.GamificationProfile) error {
	m.profiles[profile.UserID] = profile
	return nil
}

type grantedPoints struct {
	points int
	source models.TransactionSource
	bonus  bool
	mult   float64
	desc   string
}

type mockAwarder struct {
	grants []grantedPoints
}

func (m *mockAwarder) Award(ctx context.Context, userID uint, basePoints int, source models.TransactionSource, sourceID *uint, description string, multiplier float64) (int, error) {
	final := int(float64(basePoints) * multiplier)
	m.grants = append(m.grants, grantedPoints{points: final, source: source, mult: multiplier, desc: description})
	return final, nil
}

func (m *mockAwarder) AwardBonus(ctx context.Context, userID uint, points int, source models.TransactionSource, sourceID *uint, description string) (int, error) {
	m.grants = append(m.grants, grantedPoints{points: points, source: source, bonus: true, desc: description})
	return points, nil
}

func (m *mockAwarder) total() int {
	sum := 0
	for _, g := range m.grants {
		sum += g.points
	}
	return sum
}

func testConfig() *config.GamificationConfig {
	return &config.GamificationConfig{
		DailyLoginPoints:     10,
		QuizPassBasePoints:   100,
		CourseCompletePoints: 500,
		BadgeBonusPoints:     50,
		StreakBonusUnit:      50,
		PassThreshold:        75.0,
	}
}

func setupTestService() (*Service, *mockProfileRepository, *mockAwarder) {
	profiles := newMockProfileRepository()
	ledger := &mockAwarder{}
	log := logger.New("debug", "text", "stdout")

	service := NewService(profiles, ledger, userlock.New(), testConfig(), log)
	return service, profiles, ledger
}

// setClock pins the service's notion of "now" for deterministic streaks.
func setClock(s *Service, t time.Time) {
	s.now = func() time.Time { return t }
}

func day(n int) time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestDailyLoginFirstEver(t *testing.T) {
	service, profiles, ledger := setupTestService()
	setClock(service, day(0))

	if err := service.HandleDailyLogin(context.Background(), 1); err != nil {
		t.Fatalf("HandleDailyLogin failed: %v", err)
	}

	p := profiles.profiles[1]
	if p.CurrentLoginStreak != 1 {
		t.Errorf("Expected streak 1, got %d", p.CurrentLoginStreak)
	}
	if p.LongestLoginStreak != 1 {
		t.Errorf("Expected longest 1, got %d", p.LongestLoginStreak)
	}
	if p.LastLoginDate == nil || !p.LastLoginDate.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected last login date 2026-03-01, got %v", p.LastLoginDate)
	}
	if ledger.total() != 10 {
		t.Errorf("Expected 10 points for first login, got %d", ledger.total())
	}
}

func TestDailyLoginSameDayNoOp(t *testing.T) {
	service, profiles, ledger := setupTestService()
	setClock(service, day(0))

	_ = service.HandleDailyLogin(context.Background(), 1)
	setClock(service, day(0).Add(5*time.Hour))
	_ = service.HandleDailyLogin(context.Background(), 1)

	if profiles.profiles[1].CurrentLoginStreak != 1 {
		t.Errorf("Expected streak 1 after same-day login, got %d", profiles.profiles[1].CurrentLoginStreak)
	}
	if len(ledger.grants) != 1 {
		t.Errorf("Expected single grant, got %d", len(ledger.grants))
	}
}

func TestDailyLoginConsecutiveDays(t *testing.T) {
	service, profiles, _ := setupTestService()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		setClock(service, day(i))
		if err := service.HandleDailyLogin(ctx, 1); err != nil {
			t.Fatalf("Login on day %d failed: %v", i, err)
		}
	}

	if profiles.profiles[1].CurrentLoginStreak != 3 {
		t.Errorf("Expected streak 3, got %d", profiles.profiles[1].CurrentLoginStreak)
	}
}

func TestDailyLoginGapResets(t *testing.T) {
	service, profiles, _ := setupTestService()
	ctx := context.Background()

	setClock(service, day(0))
	_ = service.HandleDailyLogin(ctx, 1)
	setClock(service, day(1))
	_ = service.HandleDailyLogin(ctx, 1)
	setClock(service, day(4))
	_ = service.HandleDailyLogin(ctx, 1)

	p := profiles.profiles[1]
	if p.CurrentLoginStreak != 1 {
		t.Errorf("Expected streak reset to 1 after 3-day gap, got %d", p.CurrentLoginStreak)
	}
	if p.LongestLoginStreak != 2 {
		t.Errorf("Expected longest streak preserved at 2, got %d", p.LongestLoginStreak)
	}
}

func TestDailyLoginFreezeTokenBridgesOneMissedDay(t *testing.T) {
	service, profiles, _ := setupTestService()
	ctx := context.Background()

	setClock(service, day(0))
	_ = service.HandleDailyLogin(ctx, 1)
	profiles.profiles[1].StreakFreezeTokens = 1

	// day(1) missed entirely
	setClock(service, day(2))
	_ = service.HandleDailyLogin(ctx, 1)

	p := profiles.profiles[1]
	if p.CurrentLoginStreak != 2 {
		t.Errorf("Expected streak 2 via freeze token, got %d", p.CurrentLoginStreak)
	}
	if p.StreakFreezeTokens != 0 {
		t.Errorf("Expected freeze token consumed, got %d", p.StreakFreezeTokens)
	}
}

func TestDailyLoginTwoDayGapWithoutToken(t *testing.T) {
	service, profiles, _ := setupTestService()
	ctx := context.Background()

	setClock(service, day(0))
	_ = service.HandleDailyLogin(ctx, 1)
	setClock(service, day(2))
	_ = service.HandleDailyLogin(ctx, 1)

	if profiles.profiles[1].CurrentLoginStreak != 1 {
		t.Errorf("Expected streak reset without freeze token, got %d", profiles.profiles[1].CurrentLoginStreak)
	}
}

func TestDailyLoginWeeklyMilestone(t *testing.T) {
	service, _, ledger := setupTestService()
	ctx := context.Background()

	for i := 0; i < 14; i++ {
		setClock(service, day(i))
		_ = service.HandleDailyLogin(ctx, 1)
	}

	var milestones []grantedPoints
	for _, g := range ledger.grants {
		if g.source == models.SourceLoginStreak {
			milestones = append(milestones, g)
		}
	}
	if len(milestones) != 2 {
		t.Fatalf("Expected 2 milestone bonuses over 14 days, got %d", len(milestones))
	}
	if milestones[0].points != 50 {
		t.Errorf("Expected 50 points at day 7, got %d", milestones[0].points)
	}
	if milestones[1].points != 100 {
		t.Errorf("Expected 100 points at day 14, got %d", milestones[1].points)
	}
	// 14 daily logins + both milestones
	if got := ledger.total(); got != 14*10+50+100 {
		t.Errorf("Expected total 290, got %d", got)
	}
}

func TestQuizResultPassExtendsStreak(t *testing.T) {
	service, profiles, ledger := setupTestService()

	if err := service.OnQuizResult(context.Background(), 1, 9, 85.0, true); err != nil {
		t.Fatalf("OnQuizResult failed: %v", err)
	}

	if profiles.profiles[1].CurrentQuizStreak != 1 {
		t.Errorf("Expected quiz streak 1, got %d", profiles.profiles[1].CurrentQuizStreak)
	}
	if len(ledger.grants) != 1 {
		t.Fatalf("Expected 1 grant, got %d", len(ledger.grants))
	}
	if ledger.grants[0].mult != 1.25 {
		t.Errorf("Expected 1.25 multiplier for 85%%, got %v", ledger.grants[0].mult)
	}
	if ledger.grants[0].points != 125 {
		t.Errorf("Expected 125 points, got %d", ledger.grants[0].points)
	}
}

func TestQuizResultFailResetsStreak(t *testing.T) {
	service, profiles, ledger := setupTestService()
	ctx := context.Background()

	_ = service.OnQuizResult(ctx, 1, 9, 80.0, true)
	_ = service.OnQuizResult(ctx, 1, 9, 80.0, true)
	grantsBefore := len(ledger.grants)

	if err := service.OnQuizResult(ctx, 1, 9, 40.0, false); err != nil {
		t.Fatalf("OnQuizResult failed: %v", err)
	}

	if profiles.profiles[1].CurrentQuizStreak != 0 {
		t.Errorf("Expected quiz streak reset to 0, got %d", profiles.profiles[1].CurrentQuizStreak)
	}
	if len(ledger.grants) != grantsBefore {
		t.Errorf("Expected no points on failure, got %d new grants", len(ledger.grants)-grantsBefore)
	}
}

func TestQuizStreakMilestoneEveryFifthPass(t *testing.T) {
	service, _, ledger := setupTestService()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = service.OnQuizResult(ctx, 1, uint(i+1), 75.0, true)
	}

	var bonuses []grantedPoints
	for _, g := range ledger.grants {
		if g.bonus {
			bonuses = append(bonuses, g)
		}
	}
	if len(bonuses) != 1 {
		t.Fatalf("Expected 1 streak bonus after 5 passes, got %d", len(bonuses))
	}
	if bonuses[0].points != 50 {
		t.Errorf("Expected 50 bonus points, got %d", bonuses[0].points)
	}
}

func TestCourseCompletionNeverResets(t *testing.T) {
	service, profiles, ledger := setupTestService()
	ctx := context.Background()

	_ = service.OnCourseCompletion(ctx, 1, 10, "Go Basics")
	// A failed quiz resets the quiz streak but not the course streak.
	_ = service.OnQuizResult(ctx, 1, 9, 20.0, false)
	_ = service.OnCourseCompletion(ctx, 1, 11, "Advanced Go")

	p := profiles.profiles[1]
	if p.CurrentCourseStreak != 2 {
		t.Errorf("Expected course streak 2, got %d", p.CurrentCourseStreak)
	}
	if ledger.total() != 1000 {
		t.Errorf("Expected 1000 points from two completions, got %d", ledger.total())
	}
}

func TestQualityMultiplier(t *testing.T) {
	tests := []struct {
		percentage float64
		expected   float64
	}{
		{100.0, 2.0},
		{99.9, 1.5},
		{90.0, 1.5},
		{89.9, 1.25},
		{80.0, 1.25},
		{79.9, 1.0},
		{0.0, 1.0},
	}

	for _, tt := range tests {
		if got := QualityMultiplier(tt.percentage); got != tt.expected {
			t.Errorf("QualityMultiplier(%v) = %v, expected %v", tt.percentage, got, tt.expected)
		}
	}
}
