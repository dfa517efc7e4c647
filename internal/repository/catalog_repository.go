package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/aimd54/elearn-gamification/internal/errs"
	"github.com/aimd54/elearn-gamification/internal/models"
)

// CatalogRepository reads user, course, and enrollment facts owned by other
// subsystems, and maintains the course progress rows the quiz pipeline feeds.
type CatalogRepository struct {
	db *DB
}

// NewCatalogRepository creates a new catalog repository.
func NewCatalogRepository(db *DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// GetUserByID retrieves a user by ID.
func (r *CatalogRepository) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %d: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return &user, nil
}

// GetCourseByID retrieves a course by ID.
func (r *CatalogRepository) GetCourseByID(id uint) (*models.Course, error) {
	var course models.Course
	err := r.db.First(&course, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("course %d: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get course %d: %w", id, err)
	}
	return &course, nil
}

// IsEnrolled checks whether a user is enrolled in a course.
func (r *CatalogRepository) IsEnrolled(userID, courseID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.Enrollment{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check enrollment: %w", err)
	}
	return count > 0, nil
}

// GetUserEnrollments returns all enrollments of a user.
func (r *CatalogRepository) GetUserEnrollments(userID uint) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	err := r.db.Where("user_id = ?", userID).Find(&enrollments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollments: %w", err)
	}
	return enrollments, nil
}

// GetCourseEnrollments returns all enrollments in a course.
func (r *CatalogRepository) GetCourseEnrollments(courseID uint) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	err := r.db.Where("course_id = ?", courseID).Find(&enrollments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get course enrollments: %w", err)
	}
	return enrollments, nil
}

// GetOrCreateProgress returns the progress row for (user, course), creating
// an empty one if missing.
func (r *CatalogRepository) GetOrCreateProgress(userID, courseID uint) (*models.CourseProgress, error) {
	var progress models.CourseProgress
	err := r.db.
		Where(models.CourseProgress{UserID: userID, CourseID: courseID}).
		FirstOrCreate(&progress).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get or create progress: %w", err)
	}
	return &progress, nil
}

// SaveProgress persists a progress row.
func (r *CatalogRepository) SaveProgress(progress *models.CourseProgress) error {
	progress.UpdatedAt = time.Now()
	if err := r.db.Save(progress).Error; err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

// CountCompletedCourses returns the number of courses a user has completed.
func (r *CatalogRepository) CountCompletedCourses(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.CourseProgress{}).
		Where("user_id = ? AND is_completed = ?", userID, true).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count completed courses: %w", err)
	}
	return count, nil
}
