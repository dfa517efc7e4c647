package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/aimd54/elearn-gamification/internal/models"
)

// BadgeRepository handles badge-related database operations.
type BadgeRepository struct {
	db *DB
}

// NewBadgeRepository creates a new badge repository.
func NewBadgeRepository(db *DB) *BadgeRepository {
	return &BadgeRepository{db: db}
}

// Create creates a new badge in the database.
func (r *BadgeRepository) Create(badge *models.Badge) error {
	return r.db.Create(badge).Error
}

// GetByID retrieves a badge by its ID.
func (r *BadgeRepository) GetByID(id uint) (*models.Badge, error) {
	var badge models.Badge
	err := r.db.First(&badge, id).Error
	if err != nil {
		return nil, err
	}
	return &badge, nil
}

// GetByName retrieves a badge by its name.
func (r *BadgeRepository) GetByName(name string) (*models.Badge, error) {
	var badge models.Badge
	err := r.db.Where("name = ?", name).First(&badge).Error
	if err != nil {
		return nil, err
	}
	return &badge, nil
}

// GetAllActive retrieves all active badges, oldest first.
func (r *BadgeRepository) GetAllActive() ([]models.Badge, error) {
	var badges []models.Badge
	err := r.db.
		Where("is_active = ?", true).
		Order("created_at ASC, id ASC").
		Find(&badges).Error
	return badges, err
}

// GetAll retrieves all badges from the database.
func (r *BadgeRepository) GetAll() ([]models.Badge, error) {
	var badges []models.Badge
	err := r.db.Order("created_at ASC, id ASC").Find(&badges).Error
	return badges, err
}

// UpsertByName creates the badge or updates the existing row with the same
// name. Used by catalog seeding; never touches earned user badges.
func (r *BadgeRepository) UpsertByName(badge *models.Badge) error {
	var existing models.Badge
	err := r.db.Where("name = ?", badge.Name).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.Create(badge).Error
	}
	if err != nil {
		return fmt.Errorf("failed to look up badge %q: %w", badge.Name, err)
	}

	existing.Description = badge.Description
	existing.IconURL = badge.IconURL
	existing.BadgeType = badge.BadgeType
	existing.ConditionType = badge.ConditionType
	existing.ConditionValue = badge.ConditionValue
	existing.IsActive = badge.IsActive
	if err := r.db.Save(&existing).Error; err != nil {
		return fmt.Errorf("failed to update badge %q: %w", badge.Name, err)
	}
	badge.ID = existing.ID
	return nil
}

// AwardBadge awards a badge to a user.
// Idempotent: returns (false, nil) if the user already holds the badge.
func (r *BadgeRepository) AwardBadge(userID, badgeID uint) (bool, error) {
	exists, err := r.HasUserEarnedBadge(userID, badgeID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	userBadge := &models.UserBadge{
		UserID:   userID,
		BadgeID:  badgeID,
		EarnedAt: time.Now(),
	}
	if err := r.db.Create(userBadge).Error; err != nil {
		return false, err
	}
	return true, nil
}

// GetUserBadges retrieves all badges earned by a user with badge details preloaded.
func (r *BadgeRepository) GetUserBadges(userID uint) ([]models.UserBadge, error) {
	var userBadges []models.UserBadge
	err := r.db.
		Where("user_id = ?", userID).
		Preload("Badge").
		Order("earned_at DESC").
		Find(&userBadges).Error
	return userBadges, err
}

// HasUserEarnedBadge checks if a user has earned a specific badge.
func (r *BadgeRepository) HasUserEarnedBadge(userID, badgeID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.UserBadge{}).
		Where("user_id = ? AND badge_id = ?", userID, badgeID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetBadgeHoldersCount returns the number of users who have earned a specific badge.
func (r *BadgeRepository) GetBadgeHoldersCount(badgeID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.UserBadge{}).
		Where("badge_id = ?", badgeID).
		Count(&count).Error
	return count, err
}

// GetUserBadgeCount returns the total number of badges a user has earned.
func (r *BadgeRepository) GetUserBadgeCount(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.UserBadge{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}
