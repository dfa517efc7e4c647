package leaderboard

import (
	"context"
	"fmt"

	"github.com/aimd54/elearn-gamification/internal/models"
)

// BadgeCounter supplies badge counts for user statistics.
type BadgeCounter interface {
	GetUserBadgeCount(userID uint) (int64, error)
}

// ActivityCounter supplies activity counts for user statistics.
type ActivityCounter interface {
	CountPassedQuizzes(userID uint) (int64, error)
}

// CourseCounter supplies completion counts for user statistics.
type CourseCounter interface {
	CountCompletedCourses(userID uint) (int64, error)
}

// ProfileReader loads a single user's profile.
type ProfileReader interface {
	GetOrCreateProfile(userID uint) (*models.GamificationProfile, error)
}

// UserStats is the aggregate gamification summary for one user.
type UserStats struct {
	UserID              uint   `json:"user_id"`
	TotalPoints         int    `json:"total_points"`
	GlobalRank          *int   `json:"global_rank,omitempty"`
	CurrentLoginStreak  int    `json:"current_login_streak"`
	LongestLoginStreak  int    `json:"longest_login_streak"`
	CurrentQuizStreak   int    `json:"current_quiz_streak"`
	CurrentCourseStreak int    `json:"current_course_streak"`
	StreakFreezeTokens  int    `json:"streak_freeze_tokens"`
	BadgeCount          int64  `json:"badge_count"`
	PassedQuizzes       int64  `json:"passed_quizzes"`
	CompletedCourses    int64  `json:"completed_courses"`
	LastLoginDate       string `json:"last_login_date,omitempty"`
}

// statsDeps are attached after construction; stats reads cut across the
// badge and quiz stores, which the ranking paths never touch.
type statsDeps struct {
	profiles ProfileReader
	badges   BadgeCounter
	quizzes  ActivityCounter
	courses  CourseCounter
}

// WithStats attaches the repositories backing GetUserStats.
func (s *Service) WithStats(profiles ProfileReader, badges BadgeCounter, quizzes ActivityCounter, courses CourseCounter) *Service {
	s.stats = &statsDeps{profiles: profiles, badges: badges, quizzes: quizzes, courses: courses}
	return s
}

// GetUserStats assembles the user's gamification summary: points, rank,
// streaks, badge count, and activity counts.
func (s *Service) GetUserStats(ctx context.Context, userID uint) (*UserStats, error) {
	if s.stats == nil {
		return nil, fmt.Errorf("stats repositories not configured")
	}

	profile, err := s.stats.profiles.GetOrCreateProfile(userID)
	if err != nil {
		return nil, fmt.Errorf("loading profile for user %d: %w", userID, err)
	}

	result := &UserStats{
		UserID:              userID,
		TotalPoints:         profile.TotalPoints,
		CurrentLoginStreak:  profile.CurrentLoginStreak,
		LongestLoginStreak:  profile.LongestLoginStreak,
		CurrentQuizStreak:   profile.CurrentQuizStreak,
		CurrentCourseStreak: profile.CurrentCourseStreak,
		StreakFreezeTokens:  profile.StreakFreezeTokens,
	}
	if profile.LastLoginDate != nil {
		result.LastLoginDate = profile.LastLoginDate.Format("2006-01-02")
	}

	if entry, err := s.lbRepo.GetUserEntry(userID, models.ScopeGlobal, nil); err != nil {
		s.log.Warn().Err(err).Uint("user_id", userID).Msg("Failed to read global rank")
	} else if entry != nil {
		rank := entry.Rank
		result.GlobalRank = &rank
	}

	if count, err := s.stats.badges.GetUserBadgeCount(userID); err == nil {
		result.BadgeCount = count
	}
	if count, err := s.stats.quizzes.CountPassedQuizzes(userID); err == nil {
		result.PassedQuizzes = count
	}
	if count, err := s.stats.courses.CountCompletedCourses(userID); err == nil {
		result.CompletedCourses = count
	}
	return result, nil
}
