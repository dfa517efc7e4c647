// Package streaks maintains the per-user consecutive-activity counters:
// daily logins, quiz passes, and course completions. It mutates the
// gamification profile and delegates all point grants to the ledger.
package streaks

import (
	"context"
	"fmt"
	"time"

	"github.com/aimd54/elearn-gamification/internal/config"
	"github.com/aimd54/elearn-gamification/internal/models"
	"github.com/aimd54/elearn-gamification/pkg/logger"
	"github.com/aimd54/elearn-gamification/pkg/userlock"
)

// ProfileRepository is the persistence surface for streak state.
type ProfileRepository interface {
	GetOrCreateProfile(userID uint) (*models.GamificationProfile, error)
	SaveProfile(profile *models.GamificationProfile) error
}

// Awarder grants points through the ledger.
type Awarder interface {
	Award(ctx context.Context, userID uint, basePoints int, source models.TransactionSource, sourceID *uint, description string, multiplier float64) (int, error)
	AwardBonus(ctx context.Context, userID uint, points int, source models.TransactionSource, sourceID *uint, description string) (int, error)
}

// Service implements the streak state machines.
type Service struct {
	profiles ProfileRepository
	ledger   Awarder
	locks    *userlock.KeyedMutex
	cfg      *config.GamificationConfig
	logger   *logger.Logger

	now func() time.Time
}

// NewService creates a streak service.
func NewService(profiles ProfileRepository, ledger Awarder, locks *userlock.KeyedMutex, cfg *config.GamificationConfig, log *logger.Logger) *Service {
	return &Service{
		profiles: profiles,
		ledger:   ledger,
		locks:    locks,
		cfg:      cfg,
		logger:   log,
		now:      time.Now,
	}
}

// HandleDailyLogin advances the user's login streak for today and grants
// the daily login points. A second login on the same calendar day is a
// no-op. A one-day gap continues the streak; a two-day gap continues it
// only by consuming a streak freeze token; anything longer resets to 1.
// Every 7th consecutive day earns a milestone bonus on top.
func (s *Service) HandleDailyLogin(ctx context.Context, userID uint) error {
	key := userlock.UserKey(userID)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	profile, err := s.profiles.GetOrCreateProfile(userID)
	if err != nil {
		return fmt.Errorf("loading profile for user %d: %w", userID, err)
	}

	today := dateOnly(s.now())
	if profile.LastLoginDate != nil && dateOnly(*profile.LastLoginDate).Equal(today) {
		return nil
	}

	usedFreeze := false
	switch {
	case profile.LastLoginDate == nil:
		profile.CurrentLoginStreak = 1
	default:
		gap := daysBetween(dateOnly(*profile.LastLoginDate), today)
		switch {
		case gap == 1:
			profile.CurrentLoginStreak++
		case gap == 2 && profile.StreakFreezeTokens > 0:
			profile.StreakFreezeTokens--
			profile.CurrentLoginStreak++
			usedFreeze = true
		default:
			profile.CurrentLoginStreak = 1
		}
	}

	if profile.CurrentLoginStreak > profile.LongestLoginStreak {
		profile.LongestLoginStreak = profile.CurrentLoginStreak
	}
	profile.LastLoginDate = &today

	if err := s.profiles.SaveProfile(profile); err != nil {
		return fmt.Errorf("saving profile for user %d: %w", userID, err)
	}

	s.logger.Debug().
		Uint("user_id", userID).
		Int("streak", profile.CurrentLoginStreak).
		Bool("freeze_used", usedFreeze).
		Msg("Login streak updated")

	if _, err := s.ledger.Award(ctx, userID, s.cfg.DailyLoginPoints, models.SourceDailyLogin, nil, "Daily login bonus", 1.0); err != nil {
		return fmt.Errorf("awarding daily login points for user %d: %w", userID, err)
	}

	if streak := profile.CurrentLoginStreak; streak%7 == 0 {
		bonus := s.cfg.StreakBonusUnit * (streak / 7)
		desc := fmt.Sprintf("Login streak milestone: %d days", streak)
		if _, err := s.ledger.AwardBonus(ctx, userID, bonus, models.SourceLoginStreak, nil, desc); err != nil {
			return fmt.Errorf("awarding login streak bonus for user %d: %w", userID, err)
		}
	}
	return nil
}

// OnQuizResult updates the quiz streak for a scored attempt. A pass
// grants the base quiz points scaled by score quality and extends the
// streak, with a bonus every 5th consecutive pass. A failure resets the
// streak to zero and grants nothing.
func (s *Service) OnQuizResult(ctx context.Context, userID, quizID uint, percentage float64, passed bool) error {
	key := userlock.UserKey(userID)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	profile, err := s.profiles.GetOrCreateProfile(userID)
	if err != nil {
		return fmt.Errorf("loading profile for user %d: %w", userID, err)
	}

	if !passed {
		if profile.CurrentQuizStreak != 0 {
			profile.CurrentQuizStreak = 0
			if err := s.profiles.SaveProfile(profile); err != nil {
				return fmt.Errorf("saving profile for user %d: %w", userID, err)
			}
			s.logger.Debug().Uint("user_id", userID).Msg("Quiz streak reset")
		}
		return nil
	}

	profile.CurrentQuizStreak++
	if err := s.profiles.SaveProfile(profile); err != nil {
		return fmt.Errorf("saving profile for user %d: %w", userID, err)
	}

	multiplier := QualityMultiplier(percentage)
	desc := fmt.Sprintf("Quiz passed with %.1f%%", percentage)
	if _, err := s.ledger.Award(ctx, userID, s.cfg.QuizPassBasePoints, models.SourceQuizPass, &quizID, desc, multiplier); err != nil {
		return fmt.Errorf("awarding quiz pass points for user %d: %w", userID, err)
	}

	if streak := profile.CurrentQuizStreak; streak%5 == 0 {
		bonus := s.cfg.StreakBonusUnit * (streak / 5)
		desc := fmt.Sprintf("Quiz streak milestone: %d passes in a row", streak)
		if _, err := s.ledger.AwardBonus(ctx, userID, bonus, models.SourceQuizPass, &quizID, desc); err != nil {
			return fmt.Errorf("awarding quiz streak bonus for user %d: %w", userID, err)
		}
	}
	return nil
}

// OnCourseCompletion increments the course streak and grants the course
// completion points. The course streak only ever grows; there is no
// reset condition for it.
func (s *Service) OnCourseCompletion(ctx context.Context, userID, courseID uint, courseTitle string) error {
	key := userlock.UserKey(userID)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	profile, err := s.profiles.GetOrCreateProfile(userID)
	if err != nil {
		return fmt.Errorf("loading profile for user %d: %w", userID, err)
	}
	profile.CurrentCourseStreak++
	if err := s.profiles.SaveProfile(profile); err != nil {
		return fmt.Errorf("saving profile for user %d: %w", userID, err)
	}

	desc := fmt.Sprintf("Course completed: %s", courseTitle)
	if _, err := s.ledger.Award(ctx, userID, s.cfg.CourseCompletePoints, models.SourceCourseComplete, &courseID, desc, 1.0); err != nil {
		return fmt.Errorf("awarding course completion points for user %d: %w", userID, err)
	}
	return nil
}

// QualityMultiplier maps a quiz score percentage to its point multiplier.
func QualityMultiplier(percentage float64) float64 {
	switch {
	case percentage >= 100:
		return 2.0
	case percentage >= 90:
		return 1.5
	case percentage >= 80:
		return 1.25
	default:
		return 1.0
	}
}

// dateOnly truncates a timestamp to midnight UTC.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween returns the whole calendar days from a to b.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
