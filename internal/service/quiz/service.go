// Package quiz scores quiz submissions and drives the downstream
// progression pipeline: attempt persistence, the failure cooldown,
// course progress, and course completion with certificate issuance.
package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/aimd54/elearn-gamification/internal/config"
	"github.com/aimd54/elearn-gamification/internal/errs"
	prommetrics "github.com/aimd54/elearn-gamification/internal/metrics"
	"github.com/aimd54/elearn-gamification/internal/models"
	"github.com/aimd54/elearn-gamification/internal/repository"
	"github.com/aimd54/elearn-gamification/pkg/logger"
	"github.com/aimd54/elearn-gamification/pkg/userlock"
)

// QuizRepository is the persistence surface for quizzes and attempts.
type QuizRepository interface {
	GetByID(quizID uint) (*models.Quiz, error)
	GetByCourse(courseID uint) ([]models.Quiz, error)
	CreateAttempt(attempt *models.QuizAttempt) error
	GetLatestAttempt(quizID, userID uint) (*models.QuizAttempt, error)
	GetUserAttempts(userID uint, limit int) ([]models.QuizAttempt, error)
}

// CatalogRepository supplies enrollment and course progress state.
type CatalogRepository interface {
	IsEnrolled(userID, courseID uint) (bool, error)
	GetCourseByID(id uint) (*models.Course, error)
	GetOrCreateProgress(userID, courseID uint) (*models.CourseProgress, error)
	SaveProgress(progress *models.CourseProgress) error
}

// StreakTracker receives quiz outcomes and course completions.
type StreakTracker interface {
	OnQuizResult(ctx context.Context, userID, quizID uint, percentage float64, passed bool) error
	OnCourseCompletion(ctx context.Context, userID, courseID uint, courseTitle string) error
}

// ScoreResult is the outcome of a scored submission.
type ScoreResult struct {
	AttemptID            uint             `json:"attempt_id"`
	QuizID               uint             `json:"quiz_id"`
	Score                int              `json:"score"`
	TotalQuestions       int              `json:"total_questions"`
	TotalPoints          int              `json:"total_points"`
	Percentage           float64          `json:"percentage"`
	Passed               bool             `json:"passed"`
	CourseProgress       int              `json:"course_progress"`
	CourseCompleted      bool             `json:"course_completed"`
	CertificateURL       string           `json:"certificate_url,omitempty"`
	NextAttemptAllowedAt *time.Time       `json:"next_attempt_allowed_at,omitempty"`
	Questions            []QuestionResult `json:"questions"`
}

// Service handles quiz submission and scoring.
type Service struct {
	quizRepo    QuizRepository
	catalogRepo CatalogRepository
	streaks     StreakTracker
	locks       *userlock.KeyedMutex
	cfg         *config.GamificationConfig
	log         *logger.Logger

	now func() time.Time
}

// NewService creates a quiz service with concrete repository types.
func NewService(
	quizRepo *repository.QuizRepository,
	catalogRepo *repository.CatalogRepository,
	streaks StreakTracker,
	locks *userlock.KeyedMutex,
	cfg *config.GamificationConfig,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(quizRepo, catalogRepo, streaks, locks, cfg, log)
}

// NewServiceWithInterfaces creates a quiz service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	quizRepo QuizRepository,
	catalogRepo CatalogRepository,
	streaks StreakTracker,
	locks *userlock.KeyedMutex,
	cfg *config.GamificationConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		quizRepo:    quizRepo,
		catalogRepo: catalogRepo,
		streaks:     streaks,
		locks:       locks,
		cfg:         cfg,
		log:         log,
		now:         time.Now,
	}
}

// attemptKey serializes submissions per (user, quiz) pair so the
// cooldown check cannot race a concurrent attempt.
func attemptKey(userID, quizID uint) string {
	return fmt.Sprintf("attempt:%d:%d", userID, quizID)
}

// SubmitAttempt scores a submission. The attempt is persisted
// unconditionally once scored; a pass then feeds the streak machine and
// course progress, a failure starts the retry cooldown. A submission
// during an active cooldown is rejected with a CooldownError and leaves
// no attempt record.
func (s *Service) SubmitAttempt(ctx context.Context, userID, quizID uint, answers []int) (*ScoreResult, error) {
	key := attemptKey(userID, quizID)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	quiz, err := s.quizRepo.GetByID(quizID)
	if err != nil {
		prommetrics.RecordQuizSubmission("rejected")
		return nil, err
	}

	enrolled, err := s.catalogRepo.IsEnrolled(userID, quiz.CourseID)
	if err != nil {
		prommetrics.RecordQuizSubmission("rejected")
		return nil, fmt.Errorf("checking enrollment for user %d: %w", userID, err)
	}
	if !enrolled {
		prommetrics.RecordQuizSubmission("rejected")
		return nil, fmt.Errorf("user %d, course %d: %w", userID, quiz.CourseID, errs.ErrNotEnrolled)
	}

	if retryAt, active := s.cooldownActive(userID, quizID); active {
		prommetrics.RecordQuizSubmission("cooldown")
		return nil, &errs.CooldownError{RetryAt: retryAt}
	}

	score, totalPoints, breakdown := scoreSubmission(quiz.Questions, answers, s.cfg.DefaultQuestionPoints)
	pct := percentage(score, totalPoints)
	passed := pct >= s.cfg.PassThreshold

	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return nil, fmt.Errorf("encoding answers: %w", err)
	}
	attempt := &models.QuizAttempt{
		QuizID:         quizID,
		UserID:         userID,
		Answers:        answersJSON,
		Score:          score,
		TotalQuestions: len(quiz.Questions),
		TotalPoints:    totalPoints,
		Percentage:     pct,
		Passed:         passed,
		AttemptedAt:    s.now(),
	}
	if err := s.quizRepo.CreateAttempt(attempt); err != nil {
		return nil, fmt.Errorf("persisting attempt: %w", err)
	}

	prommetrics.ObserveQuizScore(pct)
	s.log.Info().
		Uint("user_id", userID).
		Uint("quiz_id", quizID).
		Int("score", score).
		Float64("percentage", pct).
		Bool("passed", passed).
		Msg("Quiz attempt scored")

	result := &ScoreResult{
		AttemptID:      attempt.ID,
		QuizID:         quizID,
		Score:          score,
		TotalQuestions: len(quiz.Questions),
		TotalPoints:    totalPoints,
		Percentage:     pct,
		Passed:         passed,
		Questions:      breakdown,
	}

	if passed {
		prommetrics.RecordQuizSubmission("passed")
		// The attempt record is authoritative; failures past this point
		// are logged, not propagated.
		if err := s.streaks.OnQuizResult(ctx, userID, quizID, pct, true); err != nil {
			prommetrics.RecordSideEffectFailure("streaks")
			s.log.Error().Err(err).Uint("user_id", userID).Msg("Quiz streak update failed")
		}
		s.updateCourseProgress(ctx, userID, quiz.CourseID, result)
	} else {
		prommetrics.RecordQuizSubmission("failed")
		if err := s.streaks.OnQuizResult(ctx, userID, quizID, pct, false); err != nil {
			prommetrics.RecordSideEffectFailure("streaks")
			s.log.Error().Err(err).Uint("user_id", userID).Msg("Quiz streak reset failed")
		}
		retryAt := attempt.AttemptedAt.Add(s.cfg.Cooldown())
		result.NextAttemptAllowedAt = &retryAt
	}
	return result, nil
}

// cooldownActive reports whether the user's most recent attempt at the
// quiz was a failure inside the cooldown window. The judgment uses the
// persisted percentage, so a later threshold change never reclassifies
// old attempts.
func (s *Service) cooldownActive(userID, quizID uint) (time.Time, bool) {
	latest, err := s.quizRepo.GetLatestAttempt(quizID, userID)
	if err != nil {
		s.log.Error().Err(err).Uint("user_id", userID).Uint("quiz_id", quizID).Msg("Failed to read latest attempt")
		return time.Time{}, false
	}
	if latest == nil || latest.Passed {
		return time.Time{}, false
	}
	retryAt := latest.AttemptedAt.Add(s.cfg.Cooldown())
	if s.now().Before(retryAt) {
		return retryAt, true
	}
	return time.Time{}, false
}

// updateCourseProgress recomputes the course's progress percentage from
// its quizzes' latest attempts and, on reaching 100%, marks the course
// completed once and issues the certificate reference.
func (s *Service) updateCourseProgress(ctx context.Context, userID, courseID uint, result *ScoreResult) {
	quizzes, err := s.quizRepo.GetByCourse(courseID)
	if err != nil {
		s.log.Error().Err(err).Uint("course_id", courseID).Msg("Failed to load course quizzes")
		return
	}
	if len(quizzes) == 0 {
		return
	}

	passedCount := 0
	for _, q := range quizzes {
		latest, err := s.quizRepo.GetLatestAttempt(q.ID, userID)
		if err != nil {
			s.log.Error().Err(err).Uint("quiz_id", q.ID).Msg("Failed to read latest attempt")
			continue
		}
		if latest != nil && latest.Passed {
			passedCount++
		}
	}
	pct := int(math.Round(float64(passedCount) / float64(len(quizzes)) * 100.0))

	progress, err := s.catalogRepo.GetOrCreateProgress(userID, courseID)
	if err != nil {
		s.log.Error().Err(err).Uint("user_id", userID).Uint("course_id", courseID).Msg("Failed to load course progress")
		return
	}
	progress.ProgressPercentage = pct
	progress.LastAccessed = s.now()

	completedNow := pct >= 100 && !progress.IsCompleted
	if completedNow {
		progress.IsCompleted = true
		progress.CertificateURL = fmt.Sprintf("certificates/%d_%d_certificate.pdf", userID, courseID)
	}
	if err := s.catalogRepo.SaveProgress(progress); err != nil {
		s.log.Error().Err(err).Uint("user_id", userID).Uint("course_id", courseID).Msg("Failed to save course progress")
		return
	}

	result.CourseProgress = pct
	result.CourseCompleted = progress.IsCompleted
	result.CertificateURL = progress.CertificateURL

	if completedNow {
		prommetrics.RecordCourseCompleted()
		title := ""
		if course, err := s.catalogRepo.GetCourseByID(courseID); err == nil {
			title = course.Title
		}
		if err := s.streaks.OnCourseCompletion(ctx, userID, courseID, title); err != nil {
			prommetrics.RecordSideEffectFailure("streaks")
			s.log.Error().Err(err).Uint("user_id", userID).Uint("course_id", courseID).Msg("Course completion hook failed")
		}
		s.log.Info().
			Uint("user_id", userID).
			Uint("course_id", courseID).
			Str("certificate", progress.CertificateURL).
			Msg("Course completed")
	}
}

// GetUserAttempts returns the user's recent attempts, newest first.
func (s *Service) GetUserAttempts(ctx context.Context, userID uint, limit int) ([]models.QuizAttempt, error) {
	return s.quizRepo.GetUserAttempts(userID, limit)
}
