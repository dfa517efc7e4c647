package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/aimd54/elearn-gamification/internal/models"
)

// LeaderboardRepository handles persisted leaderboard entries.
type LeaderboardRepository struct {
	db *DB
}

// NewLeaderboardRepository creates a new leaderboard repository.
func NewLeaderboardRepository(db *DB) *LeaderboardRepository {
	return &LeaderboardRepository{db: db}
}

func scopeQuery(db *gorm.DB, scope models.LeaderboardScope, referenceID *uint) *gorm.DB {
	q := db.Where("scope = ?", scope)
	if referenceID != nil {
		return q.Where("reference_id = ?", *referenceID)
	}
	return q.Where("reference_id IS NULL")
}

// GetByScope returns all entries in a scope, best rank first.
func (r *LeaderboardRepository) GetByScope(scope models.LeaderboardScope, referenceID *uint) ([]models.LeaderboardEntry, error) {
	var entries []models.LeaderboardEntry
	err := scopeQuery(r.db.DB, scope, referenceID).
		Order("rank_position ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard entries: %w", err)
	}
	return entries, nil
}

// GetTop returns the first limit entries in a scope, best rank first.
func (r *LeaderboardRepository) GetTop(scope models.LeaderboardScope, referenceID *uint, limit int) ([]models.LeaderboardEntry, error) {
	query := scopeQuery(r.db.DB, scope, referenceID).
		Preload("User").
		Order("rank_position ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var entries []models.LeaderboardEntry
	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to get top entries: %w", err)
	}
	return entries, nil
}

// GetUserEntry returns one user's entry in a scope, or nil if unranked.
func (r *LeaderboardRepository) GetUserEntry(userID uint, scope models.LeaderboardScope, referenceID *uint) (*models.LeaderboardEntry, error) {
	var entry models.LeaderboardEntry
	err := scopeQuery(r.db.DB, scope, referenceID).
		Where("user_id = ?", userID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user entry: %w", err)
	}
	return &entry, nil
}

// ReplaceScope overwrites a scope's full entry set in one transaction. The
// ranker always writes complete, freshly ranked sets.
func (r *LeaderboardRepository) ReplaceScope(scope models.LeaderboardScope, referenceID *uint, entries []models.LeaderboardEntry) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := scopeQuery(tx, scope, referenceID).
			Delete(&models.LeaderboardEntry{}).Error; err != nil {
			return fmt.Errorf("failed to clear scope: %w", err)
		}

		now := time.Now()
		for i := range entries {
			entries[i].ID = 0
			entries[i].Scope = scope
			entries[i].ReferenceID = referenceID
			entries[i].UpdatedAt = now
		}
		if len(entries) == 0 {
			return nil
		}
		if err := tx.Create(&entries).Error; err != nil {
			return fmt.Errorf("failed to write entries: %w", err)
		}
		return nil
	})
}
