// Package scheduler runs the background maintenance jobs: the daily
// leaderboard refresh that rolls the weekly board over at week boundaries,
// and the nightly ledger balance audit.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aimd54/elearn-gamification/internal/config"
	"github.com/aimd54/elearn-gamification/internal/errs"
	prommetrics "github.com/aimd54/elearn-gamification/internal/metrics"
	"github.com/aimd54/elearn-gamification/internal/models"
	"github.com/aimd54/elearn-gamification/pkg/logger"
)

// ProfileLister enumerates the users the balance audit covers.
type ProfileLister interface {
	GetAllProfiles() ([]models.GamificationProfile, error)
}

// Auditor checks one user's balance against their ledger.
type Auditor interface {
	VerifyBalance(ctx context.Context, userID uint) error
}

// Recomputer rebuilds a leaderboard scope.
type Recomputer interface {
	Recompute(ctx context.Context, scope models.LeaderboardScope, referenceID *uint) error
}

// Service handles scheduled maintenance jobs.
type Service struct {
	config   *config.SchedulerConfig
	profiles ProfileLister
	ledger   Auditor
	boards   Recomputer
	log      *logger.Logger
	cron     *cron.Cron
}

// NewService creates a new scheduler service.
func NewService(
	cfg *config.SchedulerConfig,
	profiles ProfileLister,
	ledger Auditor,
	boards Recomputer,
	log *logger.Logger,
) *Service {
	return &Service{
		config:   cfg,
		profiles: profiles,
		ledger:   ledger,
		boards:   boards,
		log:      log,
	}
}

// Start initializes and starts the cron scheduler.
func (s *Service) Start() error {
	if !s.config.Enabled {
		s.log.Info().Msg("Scheduler is disabled in configuration")
		return nil
	}

	location, err := time.LoadLocation(s.config.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.config.Timezone, err)
	}

	s.cron = cron.New(cron.WithLocation(location))

	cronExpr, err := s.buildCronExpression()
	if err != nil {
		return fmt.Errorf("failed to build cron expression: %w", err)
	}

	_, err = s.cron.AddFunc(cronExpr, func() {
		s.runLeaderboardRefresh(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to register leaderboard refresh job: %w", err)
	}

	// Register balance audit job if configured
	if s.config.BalanceAuditSchedule != "" && s.ledger != nil {
		_, err = s.cron.AddFunc(s.config.BalanceAuditSchedule, func() {
			s.runBalanceAudit(context.Background())
		})
		if err != nil {
			return fmt.Errorf("failed to register balance audit job: %w", err)
		}
		s.log.Info().
			Str("schedule", s.config.BalanceAuditSchedule).
			Msg("Balance audit job registered")
	}

	s.cron.Start()

	entries := s.cron.Entries()
	nextRun := ""
	if len(entries) > 0 {
		nextRun = entries[0].Next.Format(time.RFC3339)
	}

	s.log.Info().
		Str("schedule", cronExpr).
		Str("timezone", s.config.Timezone).
		Str("time", s.config.LeaderboardRefreshTime).
		Str("next_run", nextRun).
		Msg("Scheduler started successfully")

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.log.Info().Msg("Scheduler stopped")
	}
}

// buildCronExpression generates a cron expression from the configured
// "HH:MM" refresh time.
func (s *Service) buildCronExpression() (string, error) {
	parts := strings.Split(s.config.LeaderboardRefreshTime, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time format %q, expected HH:MM", s.config.LeaderboardRefreshTime)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour %q", parts[0])
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute %q", parts[1])
	}

	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// runLeaderboardRefresh rebuilds the global and weekly scopes. Award
// fan-out keeps boards fresh during the day; this job exists so the weekly
// board starts empty after the Monday rollover even if nobody has earned
// points yet.
func (s *Service) runLeaderboardRefresh(ctx context.Context) {
	start := time.Now()
	defer func() {
		prommetrics.ObserveMaintenanceJobDuration("leaderboard_refresh", time.Since(start).Seconds())
	}()

	s.log.Info().Msg("Running leaderboard refresh job")

	failed := false
	for _, scope := range []models.LeaderboardScope{models.ScopeGlobal, models.ScopePeriodic} {
		if err := s.boards.Recompute(ctx, scope, nil); err != nil {
			failed = true
			s.log.Error().
				Err(err).
				Str("scope", string(scope)).
				Msg("Failed to recompute leaderboard scope")
		}
	}

	if failed {
		prommetrics.RecordMaintenanceJobRun("leaderboard_refresh", "error")
		return
	}
	prommetrics.RecordMaintenanceJobRun("leaderboard_refresh", "success")
	s.log.Info().
		Dur("duration", time.Since(start)).
		Msg("Leaderboard refresh completed")
}

// runBalanceAudit verifies every user's profile balance against the sum of
// their ledger. Violations are logged and counted; the audit never mutates
// anything.
func (s *Service) runBalanceAudit(ctx context.Context) {
	start := time.Now()
	defer func() {
		prommetrics.ObserveMaintenanceJobDuration("balance_audit", time.Since(start).Seconds())
	}()

	s.log.Info().Msg("Running balance audit job")

	profiles, err := s.profiles.GetAllProfiles()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list profiles for balance audit")
		prommetrics.RecordMaintenanceJobRun("balance_audit", "error")
		return
	}

	violations := 0
	for _, profile := range profiles {
		err := s.ledger.VerifyBalance(ctx, profile.UserID)
		if err == nil {
			continue
		}
		if errors.Is(err, errs.ErrInvariant) {
			violations++
			continue
		}
		s.log.Error().
			Err(err).
			Uint("user_id", profile.UserID).
			Msg("Balance audit check failed")
		prommetrics.RecordMaintenanceJobRun("balance_audit", "error")
		return
	}

	if violations > 0 {
		prommetrics.RecordMaintenanceJobRun("balance_audit", "violations")
	} else {
		prommetrics.RecordMaintenanceJobRun("balance_audit", "success")
	}

	s.log.Info().
		Int("users_checked", len(profiles)).
		Int("violations", violations).
		Dur("duration", time.Since(start)).
		Msg("Balance audit completed")
}
