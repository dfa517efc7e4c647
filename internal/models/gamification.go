// Package models defines domain models for the gamification engine.
package models

import (
	"time"
)

// TransactionKind classifies a points transaction.
type TransactionKind string

// Transaction kinds.
const (
	TransactionEarned  TransactionKind = "EARNED"
	TransactionSpent   TransactionKind = "SPENT"
	TransactionBonus   TransactionKind = "BONUS"
	TransactionPenalty TransactionKind = "PENALTY"
)

// TransactionSource identifies what triggered a points transaction.
type TransactionSource string

// Transaction sources.
const (
	SourceCourseComplete  TransactionSource = "COURSE_COMPLETE"
	SourceQuizPass        TransactionSource = "QUIZ_PASS"
	SourceLoginStreak     TransactionSource = "LOGIN_STREAK"
	SourceDailyLogin      TransactionSource = "DAILY_LOGIN"
	SourceBadgeEarned     TransactionSource = "BADGE_EARNED"
	SourcePurchase        TransactionSource = "PURCHASE"
	SourceAdminAdjustment TransactionSource = "ADMIN_ADJUSTMENT"
)

// PointsTransaction is an immutable entry in the append-only points ledger.
// Amount is signed: spends and penalties carry negative amounts so that a
// user's balance is always the plain sum of their transactions.
type PointsTransaction struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	UserID      uint              `gorm:"not null;index" json:"user_id"`
	User        User              `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Amount      int               `gorm:"not null" json:"amount"`
	Kind        TransactionKind   `gorm:"size:20;not null" json:"kind"`
	Source      TransactionSource `gorm:"size:50;not null" json:"source"`
	SourceID    *uint             `json:"source_id"`
	Multiplier  float64           `gorm:"default:1" json:"multiplier"`
	Description string            `gorm:"type:text" json:"description"`
	CreatedAt   time.Time         `json:"created_at"`
}

// TableName specifies the table name for PointsTransaction model.
func (PointsTransaction) TableName() string {
	return "points_transactions"
}

// GamificationProfile holds per-user derived gamification state. One row per
// user, created lazily on first touch. TotalPoints must equal the sum of the
// user's ledger amounts at all times.
type GamificationProfile struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	UserID              uint       `gorm:"uniqueIndex;not null" json:"user_id"`
	User                User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	TotalPoints         int        `gorm:"default:0" json:"total_points"`
	CurrentLoginStreak  int        `gorm:"default:0" json:"current_login_streak"`
	LongestLoginStreak  int        `gorm:"default:0" json:"longest_login_streak"`
	LastLoginDate       *time.Time `gorm:"type:date" json:"last_login_date"`
	CurrentCourseStreak int        `gorm:"default:0" json:"current_course_streak"`
	CurrentQuizStreak   int        `gorm:"default:0" json:"current_quiz_streak"`
	StreakFreezeTokens  int        `gorm:"default:0" json:"streak_freeze_tokens"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// TableName specifies the table name for GamificationProfile model.
func (GamificationProfile) TableName() string {
	return "gamification_profiles"
}

// BadgeCondition is the closed set of badge eligibility condition kinds.
type BadgeCondition string

// Badge condition kinds.
const (
	ConditionCourseComplete BadgeCondition = "COURSE_COMPLETE"
	ConditionQuizPass       BadgeCondition = "QUIZ_PASS"
	ConditionQuizPerfect    BadgeCondition = "QUIZ_PERFECT"
	ConditionLoginStreak    BadgeCondition = "LOGIN_STREAK"
	ConditionQuizStreak     BadgeCondition = "QUIZ_STREAK"
	ConditionPointsEarned   BadgeCondition = "POINTS_EARNED"
)

// Badge is a catalog entry describing an earnable badge. Administrative data,
// read-only to the rule engine.
type Badge struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Name           string         `gorm:"uniqueIndex;not null;size:100" json:"name"`
	Description    string         `gorm:"type:text" json:"description"`
	IconURL        string         `gorm:"size:255" json:"icon_url"`
	BadgeType      string         `gorm:"size:50" json:"badge_type"`
	ConditionType  BadgeCondition `gorm:"size:50;not null" json:"condition_type"`
	ConditionValue int            `gorm:"default:0" json:"condition_value"`
	// No gorm default tag: a default makes gorm omit the field on insert
	// when false, silently storing retired catalog entries as active.
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for Badge model.
func (Badge) TableName() string {
	return "badges"
}

// UserBadge records a badge earned by a user. At most one row per
// (user, badge) pair; awarding is idempotent.
type UserBadge struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	UserID   uint      `gorm:"not null;index:idx_user_badge,unique" json:"user_id"`
	User     User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	BadgeID  uint      `gorm:"not null;index:idx_user_badge,unique" json:"badge_id"`
	Badge    Badge     `gorm:"foreignKey:BadgeID" json:"badge,omitempty"`
	EarnedAt time.Time `gorm:"not null" json:"earned_at"`
}

// TableName specifies the table name for UserBadge model.
func (UserBadge) TableName() string {
	return "user_badges"
}

// LeaderboardScope distinguishes leaderboard kinds.
type LeaderboardScope string

// Leaderboard scopes.
const (
	ScopeGlobal   LeaderboardScope = "GLOBAL"
	ScopeCourse   LeaderboardScope = "COURSE"
	ScopePeriodic LeaderboardScope = "PERIODIC"
)

// LeaderboardEntry is one user's row in a ranked scope. Rank is a dense
// integer 1..N unique within the scope, recomputed wholesale rather than
// incrementally patched.
type LeaderboardEntry struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	UserID      uint             `gorm:"not null;index:idx_scope_user,unique" json:"user_id"`
	User        User             `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Scope       LeaderboardScope `gorm:"size:20;not null;index:idx_scope_user,unique" json:"scope"`
	ReferenceID *uint            `gorm:"index:idx_scope_user,unique" json:"reference_id"` // course id for COURSE scope
	Points      int              `gorm:"not null" json:"points"`
	Rank        int              `gorm:"column:rank_position;not null" json:"rank"`
	PeriodStart *time.Time       `gorm:"type:date" json:"period_start"`
	PeriodEnd   *time.Time       `gorm:"type:date" json:"period_end"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// TableName specifies the table name for LeaderboardEntry model.
func (LeaderboardEntry) TableName() string {
	return "leaderboard_entries"
}
