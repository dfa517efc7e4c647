// Package repository provides data access layer for the application.
package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/aimd54/elearn-gamification/internal/models"
)

// PointsRepository handles the points ledger and gamification profiles.
type PointsRepository struct {
	db *DB
}

// NewPointsRepository creates a new points repository.
func NewPointsRepository(db *DB) *PointsRepository {
	return &PointsRepository{db: db}
}

// Append inserts a ledger transaction and applies its signed amount to the
// user's profile balance in a single database transaction. The profile row
// must exist; use GetOrCreateProfile first.
func (r *PointsRepository) Append(tx *models.PointsTransaction) error {
	return r.db.Transaction(func(dbtx *gorm.DB) error {
		if err := dbtx.Create(tx).Error; err != nil {
			return fmt.Errorf("failed to append transaction: %w", err)
		}

		res := dbtx.Model(&models.GamificationProfile{}).
			Where("user_id = ?", tx.UserID).
			Updates(map[string]interface{}{
				"total_points": gorm.Expr("total_points + ?", tx.Amount),
				"updated_at":   time.Now(),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update balance: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("no gamification profile for user %d", tx.UserID)
		}
		return nil
	})
}

// GetOrCreateProfile returns the user's profile, creating an empty one on
// first touch.
func (r *PointsRepository) GetOrCreateProfile(userID uint) (*models.GamificationProfile, error) {
	var profile models.GamificationProfile
	err := r.db.
		Where(models.GamificationProfile{UserID: userID}).
		FirstOrCreate(&profile).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get or create profile for user %d: %w", userID, err)
	}
	return &profile, nil
}

// SaveProfile persists streak and token mutations. Balance changes must go
// through Append instead.
func (r *PointsRepository) SaveProfile(profile *models.GamificationProfile) error {
	profile.UpdatedAt = time.Now()
	if err := r.db.Save(profile).Error; err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// Balance returns the user's current profile balance.
func (r *PointsRepository) Balance(userID uint) (int, error) {
	profile, err := r.GetOrCreateProfile(userID)
	if err != nil {
		return 0, err
	}
	return profile.TotalPoints, nil
}

// LedgerSum returns the sum of all transaction amounts for a user. Used to
// verify the balance invariant.
func (r *PointsRepository) LedgerSum(userID uint) (int, error) {
	var sum int64
	err := r.db.Model(&models.PointsTransaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum ledger for user %d: %w", userID, err)
	}
	return int(sum), nil
}

// History returns a user's transactions, newest first.
func (r *PointsRepository) History(userID uint, limit int) ([]models.PointsTransaction, error) {
	query := r.db.
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var transactions []models.PointsTransaction
	if err := query.Find(&transactions).Error; err != nil {
		return nil, fmt.Errorf("failed to get points history: %w", err)
	}
	return transactions, nil
}

// GetAllProfiles returns every gamification profile. The leaderboard ranker
// uses this as its scope snapshot for the global board.
func (r *PointsRepository) GetAllProfiles() ([]models.GamificationProfile, error) {
	var profiles []models.GamificationProfile
	if err := r.db.Preload("User").Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return profiles, nil
}

// GetProfiles returns the profiles for a set of users.
func (r *PointsRepository) GetProfiles(userIDs []uint) ([]models.GamificationProfile, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var profiles []models.GamificationProfile
	if err := r.db.Preload("User").Where("user_id IN ?", userIDs).Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("failed to get profiles: %w", err)
	}
	return profiles, nil
}

// EarnedByUserBetween returns, per user, the sum of positive amounts
// recorded in [start, end). Feeds the periodic leaderboard scope.
func (r *PointsRepository) EarnedByUserBetween(start, end time.Time) (map[uint]int, error) {
	type row struct {
		UserID uint
		Total  int64
	}
	var rows []row
	err := r.db.Model(&models.PointsTransaction{}).
		Select("user_id, COALESCE(SUM(amount), 0) AS total").
		Where("created_at >= ? AND created_at < ? AND amount > 0", start, end).
		Group("user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum earned points: %w", err)
	}

	totals := make(map[uint]int, len(rows))
	for _, r := range rows {
		totals[r.UserID] = int(r.Total)
	}
	return totals, nil
}
