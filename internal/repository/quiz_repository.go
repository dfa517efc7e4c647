package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/aimd54/elearn-gamification/internal/errs"
	"github.com/aimd54/elearn-gamification/internal/models"
)

// QuizRepository handles quiz, question, and attempt database operations.
type QuizRepository struct {
	db *DB
}

// NewQuizRepository creates a new quiz repository.
func NewQuizRepository(db *DB) *QuizRepository {
	return &QuizRepository{db: db}
}

// GetByID retrieves a quiz with its questions in order.
func (r *QuizRepository) GetByID(quizID uint) (*models.Quiz, error) {
	var quiz models.Quiz
	err := r.db.
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		}).
		First(&quiz, quizID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("quiz %d: %w", quizID, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz %d: %w", quizID, err)
	}
	return &quiz, nil
}

// GetByCourse retrieves all quizzes of a course.
func (r *QuizRepository) GetByCourse(courseID uint) ([]models.Quiz, error) {
	var quizzes []models.Quiz
	err := r.db.
		Where("course_id = ?", courseID).
		Order("id ASC").
		Find(&quizzes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get quizzes for course %d: %w", courseID, err)
	}
	return quizzes, nil
}

// CreateAttempt persists a scored attempt. Attempts are write-once.
func (r *QuizRepository) CreateAttempt(attempt *models.QuizAttempt) error {
	if err := r.db.Create(attempt).Error; err != nil {
		return fmt.Errorf("failed to create attempt: %w", err)
	}
	return nil
}

// GetLatestAttempt returns the most recent attempt for (user, quiz), or nil
// if none exists.
func (r *QuizRepository) GetLatestAttempt(quizID, userID uint) (*models.QuizAttempt, error) {
	var attempt models.QuizAttempt
	err := r.db.
		Where("quiz_id = ? AND user_id = ?", quizID, userID).
		Order("attempted_at DESC, id DESC").
		First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest attempt: %w", err)
	}
	return &attempt, nil
}

// GetUserAttempts returns a user's attempts, newest first.
func (r *QuizRepository) GetUserAttempts(userID uint, limit int) ([]models.QuizAttempt, error) {
	query := r.db.
		Where("user_id = ?", userID).
		Order("attempted_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var attempts []models.QuizAttempt
	if err := query.Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("failed to get user attempts: %w", err)
	}
	return attempts, nil
}

// CountPassedQuizzes returns the number of distinct quizzes the user has
// passed at least once.
func (r *QuizRepository) CountPassedQuizzes(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.QuizAttempt{}).
		Where("user_id = ? AND passed = ?", userID, true).
		Distinct("quiz_id").
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count passed quizzes: %w", err)
	}
	return count, nil
}

// CountPerfectAttempts returns the number of attempts with a 100% score.
func (r *QuizRepository) CountPerfectAttempts(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.QuizAttempt{}).
		Where("user_id = ? AND percentage >= ?", userID, 100.0).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count perfect attempts: %w", err)
	}
	return count, nil
}
