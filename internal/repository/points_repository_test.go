package repository

import (
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/aimd54/elearn-gamification/internal/models"
)

// setupTestDB creates an in-memory SQLite database with the full schema.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}

	// Enable foreign key constraints (SQLite default is off)
	gdb.Exec("PRAGMA foreign_keys = ON")

	db := &DB{gdb}
	if err := db.AutoMigrate(); err != nil {
		t.Fatalf("Failed to auto-migrate tables: %v", err)
	}
	return db
}

// createTestUser creates a test user in the database.
func createTestUser(t *testing.T, db *DB, name string) *models.User {
	t.Helper()

	user := &models.User{
		Email: name + "@example.com",
		Name:  name,
		Role:  "student",
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func TestPointsRepository_GetOrCreateProfile(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPointsRepository(db)
	user := createTestUser(t, db, "alice")

	profile, err := repo.GetOrCreateProfile(user.ID)
	if err != nil {
		t.Fatalf("GetOrCreateProfile() failed: %v", err)
	}
	if profile.TotalPoints != 0 {
		t.Errorf("Expected new profile with 0 points, got %d", profile.TotalPoints)
	}

	// Second call must return the same row, not create another
	again, err := repo.GetOrCreateProfile(user.ID)
	if err != nil {
		t.Fatalf("Second GetOrCreateProfile() failed: %v", err)
	}
	if again.ID != profile.ID {
		t.Errorf("Expected same profile ID %d, got %d", profile.ID, again.ID)
	}
}

func TestPointsRepository_Append(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPointsRepository(db)
	user := createTestUser(t, db, "bob")

	if _, err := repo.GetOrCreateProfile(user.ID); err != nil {
		t.Fatalf("GetOrCreateProfile() failed: %v", err)
	}

	tx := &models.PointsTransaction{
		UserID:      user.ID,
		Amount:      100,
		Kind:        models.TransactionEarned,
		Source:      models.SourceQuizPass,
		Multiplier:  1.0,
		Description: "Quiz passed",
		CreatedAt:   time.Now(),
	}
	if err := repo.Append(tx); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if tx.ID == 0 {
		t.Error("Expected transaction ID to be set after append")
	}

	balance, err := repo.Balance(user.ID)
	if err != nil {
		t.Fatalf("Balance() failed: %v", err)
	}
	if balance != 100 {
		t.Errorf("Expected balance 100, got %d", balance)
	}
}

func TestPointsRepository_Append_NegativeAmount(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPointsRepository(db)
	user := createTestUser(t, db, "carol")

	if _, err := repo.GetOrCreateProfile(user.ID); err != nil {
		t.Fatalf("GetOrCreateProfile() failed: %v", err)
	}

	earn := &models.PointsTransaction{
		UserID: user.ID, Amount: 200,
		Kind: models.TransactionEarned, Source: models.SourceCourseComplete,
		Multiplier: 1.0, CreatedAt: time.Now(),
	}
	spend := &models.PointsTransaction{
		UserID: user.ID, Amount: -75,
		Kind: models.TransactionSpent, Source: models.SourcePurchase,
		Multiplier: 1.0, CreatedAt: time.Now(),
	}
	if err := repo.Append(earn); err != nil {
		t.Fatalf("Append(earn) failed: %v", err)
	}
	if err := repo.Append(spend); err != nil {
		t.Fatalf("Append(spend) failed: %v", err)
	}

	balance, _ := repo.Balance(user.ID)
	if balance != 125 {
		t.Errorf("Expected balance 125, got %d", balance)
	}
}

func TestPointsRepository_Append_NoProfile(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPointsRepository(db)

	tx := &models.PointsTransaction{
		UserID: 999, Amount: 10,
		Kind: models.TransactionEarned, Source: models.SourceDailyLogin,
		Multiplier: 1.0, CreatedAt: time.Now(),
	}
	if err := repo.Append(tx); err == nil {
		t.Error("Expected error appending for a user without a profile")
	}

	// The failed append must not leave a transaction row behind
	sum, err := repo.LedgerSum(999)
	if err != nil {
		t.Fatalf("LedgerSum() failed: %v", err)
	}
	if sum != 0 {
		t.Errorf("Expected empty ledger after rollback, got sum %d", sum)
	}
}

func TestPointsRepository_LedgerSum_MatchesBalance(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPointsRepository(db)
	user := createTestUser(t, db, "dave")

	if _, err := repo.GetOrCreateProfile(user.ID); err != nil {
		t.Fatalf("GetOrCreateProfile() failed: %v", err)
	}

	amounts := []int{100, 50, -30, 500}
	for _, amount := range amounts {
		tx := &models.PointsTransaction{
			UserID: user.ID, Amount: amount,
			Kind: models.TransactionEarned, Source: models.SourceQuizPass,
			Multiplier: 1.0, CreatedAt: time.Now(),
		}
		if err := repo.Append(tx); err != nil {
			t.Fatalf("Append(%d) failed: %v", amount, err)
		}
	}

	balance, err := repo.Balance(user.ID)
	if err != nil {
		t.Fatalf("Balance() failed: %v", err)
	}
	sum, err := repo.LedgerSum(user.ID)
	if err != nil {
		t.Fatalf("LedgerSum() failed: %v", err)
	}
	if balance != sum {
		t.Errorf("Balance %d diverged from ledger sum %d", balance, sum)
	}
	if sum != 620 {
		t.Errorf("Expected ledger sum 620, got %d", sum)
	}
}

func TestPointsRepository_History(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPointsRepository(db)
	user := createTestUser(t, db, "erin")

	if _, err := repo.GetOrCreateProfile(user.ID); err != nil {
		t.Fatalf("GetOrCreateProfile() failed: %v", err)
	}

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		tx := &models.PointsTransaction{
			UserID: user.ID, Amount: (i + 1) * 10,
			Kind: models.TransactionEarned, Source: models.SourceDailyLogin,
			Multiplier: 1.0, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Append(tx); err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
	}

	history, err := repo.History(user.ID, 3)
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(history))
	}
	// Newest first
	if history[0].Amount != 50 {
		t.Errorf("Expected newest entry amount 50, got %d", history[0].Amount)
	}
	if history[2].Amount != 30 {
		t.Errorf("Expected third entry amount 30, got %d", history[2].Amount)
	}
}

func TestPointsRepository_SaveProfile(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPointsRepository(db)
	user := createTestUser(t, db, "frank")

	profile, err := repo.GetOrCreateProfile(user.ID)
	if err != nil {
		t.Fatalf("GetOrCreateProfile() failed: %v", err)
	}

	profile.CurrentLoginStreak = 7
	profile.LongestLoginStreak = 12
	profile.StreakFreezeTokens = 2
	if err := repo.SaveProfile(profile); err != nil {
		t.Fatalf("SaveProfile() failed: %v", err)
	}

	reloaded, err := repo.GetOrCreateProfile(user.ID)
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if reloaded.CurrentLoginStreak != 7 {
		t.Errorf("Expected login streak 7, got %d", reloaded.CurrentLoginStreak)
	}
	if reloaded.LongestLoginStreak != 12 {
		t.Errorf("Expected longest streak 12, got %d", reloaded.LongestLoginStreak)
	}
	if reloaded.StreakFreezeTokens != 2 {
		t.Errorf("Expected 2 freeze tokens, got %d", reloaded.StreakFreezeTokens)
	}
}

func TestPointsRepository_GetAllProfiles_PreloadsUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPointsRepository(db)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	for _, id := range []uint{alice.ID, bob.ID} {
		if _, err := repo.GetOrCreateProfile(id); err != nil {
			t.Fatalf("GetOrCreateProfile(%d) failed: %v", id, err)
		}
	}

	profiles, err := repo.GetAllProfiles()
	if err != nil {
		t.Fatalf("GetAllProfiles() failed: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("Expected 2 profiles, got %d", len(profiles))
	}
	for _, p := range profiles {
		if p.User.Name == "" {
			t.Errorf("Expected user preloaded for profile %d", p.ID)
		}
	}
}

func TestPointsRepository_EarnedByUserBetween(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPointsRepository(db)
	user := createTestUser(t, db, "grace")

	if _, err := repo.GetOrCreateProfile(user.ID); err != nil {
		t.Fatalf("GetOrCreateProfile() failed: %v", err)
	}

	weekStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	inWindow := weekStart.Add(24 * time.Hour)
	beforeWindow := weekStart.Add(-time.Hour)

	entries := []struct {
		amount int
		at     time.Time
	}{
		{100, inWindow},
		{50, inWindow.Add(time.Hour)},
		{-30, inWindow.Add(2 * time.Hour)}, // spends never count as earned
		{200, beforeWindow},                // outside the window
	}
	for _, e := range entries {
		tx := &models.PointsTransaction{
			UserID: user.ID, Amount: e.amount,
			Kind: models.TransactionEarned, Source: models.SourceQuizPass,
			Multiplier: 1.0, CreatedAt: e.at,
		}
		if err := repo.Append(tx); err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
	}

	totals, err := repo.EarnedByUserBetween(weekStart, weekStart.Add(7*24*time.Hour))
	if err != nil {
		t.Fatalf("EarnedByUserBetween() failed: %v", err)
	}
	if totals[user.ID] != 150 {
		t.Errorf("Expected 150 earned in window, got %d", totals[user.ID])
	}
}
