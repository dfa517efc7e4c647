// Package ledger maintains the append-only points ledger and the derived
// per-user balance. Every change to a user's points flows through this
// service as an immutable transaction; balances are only ever updated
// alongside a ledger append, inside the same database transaction.
package ledger

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/aimd54/elearn-gamification/internal/errs"
	"github.com/aimd54/elearn-gamification/internal/metrics"
	"github.com/aimd54/elearn-gamification/internal/models"
	"github.com/aimd54/elearn-gamification/pkg/logger"
	"github.com/aimd54/elearn-gamification/pkg/userlock"
)

// PointsRepository is the persistence surface the ledger needs.
type PointsRepository interface {
	Append(tx *models.PointsTransaction) error
	GetOrCreateProfile(userID uint) (*models.GamificationProfile, error)
	Balance(userID uint) (int, error)
	LedgerSum(userID uint) (int, error)
	History(userID uint, limit int) ([]models.PointsTransaction, error)
}

// EligibilityChecker re-evaluates badge rules for a user after an award.
type EligibilityChecker interface {
	CheckEligibility(ctx context.Context, userID uint) (int, error)
}

// Ranker refreshes the leaderboards a user appears on.
type Ranker interface {
	RecomputeForUser(ctx context.Context, userID uint) error
}

// Service implements the points ledger operations.
type Service struct {
	repo   PointsRepository
	locks  *userlock.KeyedMutex
	logger *logger.Logger

	// Wired after construction to break the award -> badge -> bonus cycle.
	badges EligibilityChecker
	ranker Ranker
}

// NewService creates a ledger service. The badge checker and ranker are
// attached later via SetBadgeChecker and SetRanker because they themselves
// depend on the ledger.
func NewService(repo PointsRepository, locks *userlock.KeyedMutex, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		locks:  locks,
		logger: log,
	}
}

// SetBadgeChecker attaches the badge engine used for post-award checks.
func (s *Service) SetBadgeChecker(c EligibilityChecker) {
	s.badges = c
}

// SetRanker attaches the leaderboard recomputation hook.
func (s *Service) SetRanker(r Ranker) {
	s.ranker = r
}

// Award appends an EARNED transaction for the user and returns the final
// point amount after applying the multiplier. Badge re-evaluation and
// leaderboard recomputation run afterwards as side effects; their failures
// are logged and counted but never propagated to the caller.
func (s *Service) Award(ctx context.Context, userID uint, basePoints int, source models.TransactionSource, sourceID *uint, description string, multiplier float64) (int, error) {
	return s.award(ctx, userID, basePoints, models.TransactionEarned, source, sourceID, description, multiplier, true)
}

// AwardBonus appends a BONUS transaction (streak milestones and similar
// extras) with full side-effect fan-out.
func (s *Service) AwardBonus(ctx context.Context, userID uint, points int, source models.TransactionSource, sourceID *uint, description string) (int, error) {
	return s.award(ctx, userID, points, models.TransactionBonus, source, sourceID, description, 1.0, true)
}

// GrantBonus appends a BONUS transaction without triggering badge or
// leaderboard side effects. The badge engine calls this from inside its
// own evaluation loop, which re-checks eligibility itself; running the
// fan-out here would re-enter that loop.
func (s *Service) GrantBonus(ctx context.Context, userID uint, points int, source models.TransactionSource, sourceID *uint, description string) (int, error) {
	return s.award(ctx, userID, points, models.TransactionBonus, source, sourceID, description, 1.0, false)
}

func (s *Service) award(ctx context.Context, userID uint, basePoints int, kind models.TransactionKind, source models.TransactionSource, sourceID *uint, description string, multiplier float64, fanOut bool) (int, error) {
	if multiplier <= 0 {
		multiplier = 1.0
	}
	final := int(math.Round(float64(basePoints) * multiplier))

	if _, err := s.repo.GetOrCreateProfile(userID); err != nil {
		return 0, fmt.Errorf("ensuring profile for user %d: %w", userID, err)
	}

	tx := &models.PointsTransaction{
		UserID:      userID,
		Amount:      final,
		Kind:        kind,
		Source:      source,
		SourceID:    sourceID,
		Multiplier:  multiplier,
		Description: description,
		CreatedAt:   time.Now(),
	}
	if err := s.repo.Append(tx); err != nil {
		return 0, fmt.Errorf("appending %s transaction for user %d: %w", kind, userID, err)
	}

	if final > 0 {
		metrics.RecordPointsAwarded(string(source), final)
	}
	s.logger.Debug().
		Uint("user_id", userID).
		Int("points", final).
		Str("source", string(source)).
		Float64("multiplier", multiplier).
		Msg("Points awarded")

	if fanOut {
		s.runSideEffects(ctx, userID)
	}
	return final, nil
}

// Spend appends a negative SPENT transaction if the user's balance covers
// the amount. Returns false with a nil error when the balance is
// insufficient; the ledger is left untouched in that case.
func (s *Service) Spend(ctx context.Context, userID uint, points int, description string) (bool, error) {
	if points <= 0 {
		return false, fmt.Errorf("spend amount must be positive, got %d", points)
	}

	// The balance check and the append must not interleave with another
	// spend for the same user.
	key := userlock.UserKey(userID)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	balance, err := s.repo.Balance(userID)
	if err != nil {
		return false, fmt.Errorf("reading balance for user %d: %w", userID, err)
	}
	if balance < points {
		metrics.RecordSpendRejected()
		s.logger.Info().
			Uint("user_id", userID).
			Int("requested", points).
			Int("balance", balance).
			Msg("Spend rejected: insufficient balance")
		return false, nil
	}

	tx := &models.PointsTransaction{
		UserID:      userID,
		Amount:      -points,
		Kind:        models.TransactionSpent,
		Source:      models.SourcePurchase,
		Multiplier:  1.0,
		Description: description,
		CreatedAt:   time.Now(),
	}
	if err := s.repo.Append(tx); err != nil {
		return false, fmt.Errorf("appending spend transaction for user %d: %w", userID, err)
	}

	metrics.RecordPointsSpent(points)
	s.logger.Info().
		Uint("user_id", userID).
		Int("points", points).
		Msg("Points spent")

	// Spending changes ranks but cannot newly satisfy any badge rule.
	if s.ranker != nil {
		if err := s.ranker.RecomputeForUser(ctx, userID); err != nil {
			metrics.RecordSideEffectFailure("leaderboard")
			s.logger.Error().Err(err).Uint("user_id", userID).Msg("Leaderboard recompute after spend failed")
		}
	}
	return true, nil
}

// Adjust appends a manual correction made by an administrator. Positive
// amounts are recorded as BONUS, negative as PENALTY; unlike Spend, a
// negative adjustment may drive the balance below zero, since corrections
// must always be recordable.
func (s *Service) Adjust(ctx context.Context, userID uint, points int, description string) (int, error) {
	if points == 0 {
		return 0, fmt.Errorf("adjustment amount must be non-zero")
	}
	kind := models.TransactionBonus
	if points < 0 {
		kind = models.TransactionPenalty
	}
	return s.award(ctx, userID, points, kind, models.SourceAdminAdjustment, nil, description, 1.0, true)
}

// Balance returns the user's current point balance.
func (s *Service) Balance(ctx context.Context, userID uint) (int, error) {
	return s.repo.Balance(userID)
}

// History returns the user's most recent transactions, newest first.
func (s *Service) History(ctx context.Context, userID uint, limit int) ([]models.PointsTransaction, error) {
	return s.repo.History(userID, limit)
}

// VerifyBalance recomputes the user's balance from the ledger and compares
// it against the cached profile balance. A mismatch is reported as an
// invariant violation.
func (s *Service) VerifyBalance(ctx context.Context, userID uint) error {
	balance, err := s.repo.Balance(userID)
	if err != nil {
		return fmt.Errorf("reading balance for user %d: %w", userID, err)
	}
	sum, err := s.repo.LedgerSum(userID)
	if err != nil {
		return fmt.Errorf("summing ledger for user %d: %w", userID, err)
	}
	if balance != sum {
		metrics.RecordInvariantViolation()
		s.logger.Error().
			Uint("user_id", userID).
			Int("balance", balance).
			Int("ledger_sum", sum).
			Msg("Balance diverged from ledger")
		return fmt.Errorf("user %d: balance %d != ledger sum %d: %w", userID, balance, sum, errs.ErrInvariant)
	}
	return nil
}

// runSideEffects executes the post-award fan-out: badge re-evaluation
// first (it may append bonus transactions), then leaderboard recompute so
// the ranks include any bonuses. Both are best-effort.
func (s *Service) runSideEffects(ctx context.Context, userID uint) {
	if s.badges != nil {
		if _, err := s.badges.CheckEligibility(ctx, userID); err != nil {
			metrics.RecordSideEffectFailure("badges")
			s.logger.Error().Err(err).Uint("user_id", userID).Msg("Badge eligibility check failed")
		}
	}
	if s.ranker != nil {
		if err := s.ranker.RecomputeForUser(ctx, userID); err != nil {
			metrics.RecordSideEffectFailure("leaderboard")
			s.logger.Error().Err(err).Uint("user_id", userID).Msg("Leaderboard recompute failed")
		}
	}
}
