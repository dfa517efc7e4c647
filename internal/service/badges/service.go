// Package badges provides badge rule evaluation and awarding.
package badges

import (
	"context"
	"fmt"

	prommetrics "github.com/aimd54/elearn-gamification/internal/metrics"
	"github.com/aimd54/elearn-gamification/internal/models"
	"github.com/aimd54/elearn-gamification/internal/repository"
	"github.com/aimd54/elearn-gamification/pkg/logger"
)

// BadgeRepository interface for badge operations.
type BadgeRepository interface {
	GetAllActive() ([]models.Badge, error)
	GetAll() ([]models.Badge, error)
	UpsertByName(badge *models.Badge) error
	HasUserEarnedBadge(userID, badgeID uint) (bool, error)
	AwardBadge(userID, badgeID uint) (bool, error)
	GetUserBadges(userID uint) ([]models.UserBadge, error)
	GetBadgeHoldersCount(badgeID uint) (int64, error)
}

// ProfileRepository exposes the profile counters badge rules read.
type ProfileRepository interface {
	GetOrCreateProfile(userID uint) (*models.GamificationProfile, error)
}

// QuizStatsRepository exposes quiz statistics badge rules read.
type QuizStatsRepository interface {
	CountPassedQuizzes(userID uint) (int64, error)
	CountPerfectAttempts(userID uint) (int64, error)
}

// CourseStatsRepository exposes course statistics badge rules read.
type CourseStatsRepository interface {
	CountCompletedCourses(userID uint) (int64, error)
}

// BonusGranter appends the bonus points for a newly earned badge. The
// grant must not trigger another eligibility check; this service's own
// loop handles follow-on awards.
type BonusGranter interface {
	GrantBonus(ctx context.Context, userID uint, points int, source models.TransactionSource, sourceID *uint, description string) (int, error)
}

// Service evaluates badge rules and awards badges.
type Service struct {
	badgeRepo   BadgeRepository
	profileRepo ProfileRepository
	quizRepo    QuizStatsRepository
	courseRepo  CourseStatsRepository
	bonusPoints int
	log         *logger.Logger

	// Wired after construction; the ledger depends on this service too.
	bonuses BonusGranter
}

// NewService creates a badge service from concrete repositories.
func NewService(
	badgeRepo *repository.BadgeRepository,
	profileRepo *repository.PointsRepository,
	quizRepo *repository.QuizRepository,
	courseRepo *repository.CatalogRepository,
	bonusPoints int,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(badgeRepo, profileRepo, quizRepo, courseRepo, bonusPoints, log)
}

// NewServiceWithInterfaces creates a badge service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	badgeRepo BadgeRepository,
	profileRepo ProfileRepository,
	quizRepo QuizStatsRepository,
	courseRepo CourseStatsRepository,
	bonusPoints int,
	log *logger.Logger,
) *Service {
	return &Service{
		badgeRepo:   badgeRepo,
		profileRepo: profileRepo,
		quizRepo:    quizRepo,
		courseRepo:  courseRepo,
		bonusPoints: bonusPoints,
		log:         log,
	}
}

// SetBonusGranter attaches the ledger hook used for badge bonus points.
func (s *Service) SetBonusGranter(g BonusGranter) {
	s.bonuses = g
}

// CheckEligibility evaluates every active badge for the user and awards
// the ones whose rules are now satisfied, granting the bonus points for
// each. Because bonus points can themselves satisfy POINTS_EARNED rules,
// evaluation repeats until a full pass awards nothing. Returns the number
// of badges awarded.
func (s *Service) CheckEligibility(ctx context.Context, userID uint) (int, error) {
	badges, err := s.badgeRepo.GetAllActive()
	if err != nil {
		return 0, fmt.Errorf("loading active badges: %w", err)
	}
	if len(badges) == 0 {
		return 0, nil
	}

	total := 0
	// Each productive pass awards at least one badge, so the loop is
	// bounded by the catalog size.
	for pass := 0; pass <= len(badges); pass++ {
		awarded, err := s.evaluateOnce(ctx, userID, badges)
		if err != nil {
			return total, err
		}
		total += awarded
		if awarded == 0 {
			break
		}
	}
	return total, nil
}

// evaluateOnce runs a single pass over the catalog, awarding every badge
// the user newly qualifies for.
func (s *Service) evaluateOnce(ctx context.Context, userID uint, badges []models.Badge) (int, error) {
	awarded := 0
	for i := range badges {
		badge := &badges[i]

		earned, err := s.badgeRepo.HasUserEarnedBadge(userID, badge.ID)
		if err != nil {
			s.log.Error().Err(err).Uint("user_id", userID).Str("badge", badge.Name).Msg("Failed to check badge ownership")
			continue
		}
		if earned {
			continue
		}

		eligible, err := s.isEligible(ctx, userID, badge)
		if err != nil {
			// Unknown condition kinds are configuration errors, not data
			// errors; surface them instead of skipping.
			return awarded, err
		}
		if !eligible {
			continue
		}

		if err := s.awardBadge(ctx, userID, badge); err != nil {
			s.log.Error().Err(err).Uint("user_id", userID).Str("badge", badge.Name).Msg("Failed to award badge")
			continue
		}
		awarded++
	}
	return awarded, nil
}

// awardBadge records the badge and grants its bonus points. Awarding is
// idempotent at the repository level; a concurrent award of the same
// badge results in a single grant.
func (s *Service) awardBadge(ctx context.Context, userID uint, badge *models.Badge) error {
	newly, err := s.badgeRepo.AwardBadge(userID, badge.ID)
	if err != nil {
		return fmt.Errorf("recording badge %q: %w", badge.Name, err)
	}
	if !newly {
		return nil
	}

	prommetrics.RecordBadgeAwarded(badge.Name, string(badge.ConditionType))
	s.log.Info().
		Uint("user_id", userID).
		Str("badge", badge.Name).
		Str("condition", string(badge.ConditionType)).
		Msg("Badge awarded")

	if holders, err := s.badgeRepo.GetBadgeHoldersCount(badge.ID); err == nil {
		prommetrics.SetActiveBadgeHolders(badge.Name, int(holders))
	}

	if s.bonuses != nil && s.bonusPoints > 0 {
		badgeID := badge.ID
		desc := fmt.Sprintf("Badge earned: %s", badge.Name)
		if _, err := s.bonuses.GrantBonus(ctx, userID, s.bonusPoints, models.SourceBadgeEarned, &badgeID, desc); err != nil {
			return fmt.Errorf("granting bonus for badge %q: %w", badge.Name, err)
		}
	}
	return nil
}

// GetUserBadges returns the badges the user has earned, newest first.
func (s *Service) GetUserBadges(ctx context.Context, userID uint) ([]models.UserBadge, error) {
	return s.badgeRepo.GetUserBadges(userID)
}

// GetCatalog returns every badge definition, including inactive ones.
func (s *Service) GetCatalog(ctx context.Context) ([]models.Badge, error) {
	return s.badgeRepo.GetAll()
}
