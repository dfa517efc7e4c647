package badges

import (
	"context"
	"fmt"

	"github.com/aimd54/elearn-gamification/internal/errs"
	"github.com/aimd54/elearn-gamification/internal/models"
)

// isEligible reports whether the user currently satisfies the badge's
// rule. Every rule compares a user statistic against the badge's
// threshold with >=.
func (s *Service) isEligible(ctx context.Context, userID uint, badge *models.Badge) (bool, error) {
	stat, err := s.statistic(ctx, userID, badge.ConditionType)
	if err != nil {
		return false, err
	}
	return stat >= int64(badge.ConditionValue), nil
}

// statistic resolves the user statistic a condition kind is judged on.
// The set of kinds is closed; anything else is a catalog configuration
// error.
func (s *Service) statistic(ctx context.Context, userID uint, kind models.BadgeCondition) (int64, error) {
	switch kind {
	case models.ConditionCourseComplete:
		return s.courseRepo.CountCompletedCourses(userID)
	case models.ConditionQuizPass:
		return s.quizRepo.CountPassedQuizzes(userID)
	case models.ConditionQuizPerfect:
		return s.quizRepo.CountPerfectAttempts(userID)
	case models.ConditionLoginStreak:
		profile, err := s.profileRepo.GetOrCreateProfile(userID)
		if err != nil {
			return 0, err
		}
		return int64(profile.CurrentLoginStreak), nil
	case models.ConditionQuizStreak:
		profile, err := s.profileRepo.GetOrCreateProfile(userID)
		if err != nil {
			return 0, err
		}
		return int64(profile.CurrentQuizStreak), nil
	case models.ConditionPointsEarned:
		profile, err := s.profileRepo.GetOrCreateProfile(userID)
		if err != nil {
			return 0, err
		}
		return int64(profile.TotalPoints), nil
	default:
		return 0, fmt.Errorf("condition %q: %w", kind, errs.ErrUnknownCondition)
	}
}
