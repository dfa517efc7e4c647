// Package gamification provides the REST API for the progress-scoring
// engine: leaderboards, user statistics, badges, the points ledger, and
// quiz submission.
package gamification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aimd54/elearn-gamification/internal/errs"
	"github.com/aimd54/elearn-gamification/internal/models"
	"github.com/aimd54/elearn-gamification/internal/service/badges"
	"github.com/aimd54/elearn-gamification/internal/service/leaderboard"
	"github.com/aimd54/elearn-gamification/internal/service/ledger"
	"github.com/aimd54/elearn-gamification/internal/service/quiz"
	"github.com/aimd54/elearn-gamification/internal/service/streaks"
	"github.com/aimd54/elearn-gamification/pkg/logger"
)

// LedgerService interface for points ledger operations.
type LedgerService interface {
	Spend(ctx context.Context, userID uint, points int, description string) (bool, error)
	Balance(ctx context.Context, userID uint) (int, error)
	History(ctx context.Context, userID uint, limit int) ([]models.PointsTransaction, error)
}

// StreakService interface for login streak operations.
type StreakService interface {
	HandleDailyLogin(ctx context.Context, userID uint) error
}

// BadgeService interface for badge operations.
type BadgeService interface {
	GetUserBadges(ctx context.Context, userID uint) ([]models.UserBadge, error)
	GetCatalog(ctx context.Context) ([]models.Badge, error)
}

// LeaderboardService interface for leaderboard operations.
type LeaderboardService interface {
	GetGlobal(ctx context.Context, limit int) ([]leaderboard.Entry, error)
	GetCourse(ctx context.Context, courseID uint, limit int) ([]leaderboard.Entry, error)
	GetWeekly(ctx context.Context, limit int) ([]leaderboard.Entry, error)
	GetUserStats(ctx context.Context, userID uint) (*leaderboard.UserStats, error)
}

// QuizService interface for quiz operations.
type QuizService interface {
	SubmitAttempt(ctx context.Context, userID, quizID uint, answers []int) (*quiz.ScoreResult, error)
	GetUserAttempts(ctx context.Context, userID uint, limit int) ([]models.QuizAttempt, error)
}

// Handler handles gamification API requests.
type Handler struct {
	ledgerService      LedgerService
	streakService      StreakService
	badgeService       BadgeService
	leaderboardService LeaderboardService
	quizService        QuizService
	log                *logger.Logger
}

// NewHandler creates a new gamification handler.
func NewHandler(
	ledgerService *ledger.Service,
	streakService *streaks.Service,
	badgeService *badges.Service,
	leaderboardService *leaderboard.Service,
	quizService *quiz.Service,
	log *logger.Logger,
) *Handler {
	return NewHandlerWithInterfaces(ledgerService, streakService, badgeService, leaderboardService, quizService, log)
}

// NewHandlerWithInterfaces creates a new gamification handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(
	ledgerService LedgerService,
	streakService StreakService,
	badgeService BadgeService,
	leaderboardService LeaderboardService,
	quizService QuizService,
	log *logger.Logger,
) *Handler {
	return &Handler{
		ledgerService:      ledgerService,
		streakService:      streakService,
		badgeService:       badgeService,
		leaderboardService: leaderboardService,
		quizService:        quizService,
		log:                log,
	}
}

// RegisterRoutes mounts the API under /api/v1.
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	v1 := router.Group("/api/v1")
	{
		v1.GET("/leaderboard", h.GetGlobalLeaderboard)
		v1.GET("/leaderboard/weekly", h.GetWeeklyLeaderboard)
		v1.GET("/courses/:id/leaderboard", h.GetCourseLeaderboard)

		v1.GET("/users/:id/stats", h.GetUserStats)
		v1.GET("/users/:id/badges", h.GetUserBadges)
		v1.GET("/users/:id/points/history", h.GetPointsHistory)
		v1.GET("/users/:id/attempts", h.GetUserAttempts)
		v1.POST("/users/:id/points/spend", h.SpendPoints)
		v1.POST("/users/:id/login", h.RecordLogin)

		v1.POST("/quizzes/:id/attempts", h.SubmitQuizAttempt)

		v1.GET("/badges", h.GetBadgeCatalog)
	}
}

// GetGlobalLeaderboard returns the global leaderboard.
// GET /api/v1/leaderboard?limit=10.
func (h *Handler) GetGlobalLeaderboard(c *gin.Context) {
	limit, err := h.parseLimit(c, 10)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.leaderboardService.GetGlobal(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get global leaderboard")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve leaderboard")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"leaderboard":   entries,
		"scope":         models.ScopeGlobal,
		"total_entries": len(entries),
		"generated_at":  time.Now().UTC(),
	})
}

// GetWeeklyLeaderboard returns the current week's leaderboard.
// GET /api/v1/leaderboard/weekly?limit=10.
func (h *Handler) GetWeeklyLeaderboard(c *gin.Context) {
	limit, err := h.parseLimit(c, 10)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.leaderboardService.GetWeekly(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get weekly leaderboard")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve leaderboard")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"leaderboard":   entries,
		"scope":         models.ScopePeriodic,
		"total_entries": len(entries),
		"generated_at":  time.Now().UTC(),
	})
}

// GetCourseLeaderboard returns the leaderboard for one course.
// GET /api/v1/courses/:id/leaderboard?limit=10.
func (h *Handler) GetCourseLeaderboard(c *gin.Context) {
	courseID, err := h.parseIDParam(c, "id")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := h.parseLimit(c, 10)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.leaderboardService.GetCourse(c.Request.Context(), courseID, limit)
	if err != nil {
		h.log.Error().Err(err).Uint("course_id", courseID).Msg("Failed to get course leaderboard")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve leaderboard")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"leaderboard":   entries,
		"scope":         models.ScopeCourse,
		"course_id":     courseID,
		"total_entries": len(entries),
		"generated_at":  time.Now().UTC(),
	})
}

// GetUserStats returns a user's gamification summary.
// GET /api/v1/users/:id/stats.
func (h *Handler) GetUserStats(c *gin.Context) {
	userID, err := h.parseIDParam(c, "id")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := h.leaderboardService.GetUserStats(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to get user stats")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve user statistics")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetUserBadges returns the badges a user has earned.
// GET /api/v1/users/:id/badges.
func (h *Handler) GetUserBadges(c *gin.Context) {
	userID, err := h.parseIDParam(c, "id")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	userBadges, err := h.badgeService.GetUserBadges(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to get user badges")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve user badges")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"badges":  userBadges,
		"count":   len(userBadges),
	})
}

// GetPointsHistory returns a user's recent ledger entries, newest first.
// GET /api/v1/users/:id/points/history?limit=50.
func (h *Handler) GetPointsHistory(c *gin.Context) {
	userID, err := h.parseIDParam(c, "id")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := h.parseLimit(c, 50)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	history, err := h.ledgerService.History(c.Request.Context(), userID, limit)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to get points history")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve points history")
		return
	}
	balance, err := h.ledgerService.Balance(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to get balance")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve points history")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":      userID,
		"balance":      balance,
		"transactions": history,
	})
}

// GetUserAttempts returns a user's recent quiz attempts.
// GET /api/v1/users/:id/attempts?limit=20.
func (h *Handler) GetUserAttempts(c *gin.Context) {
	userID, err := h.parseIDParam(c, "id")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := h.parseLimit(c, 20)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	attempts, err := h.quizService.GetUserAttempts(c.Request.Context(), userID, limit)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to get user attempts")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve attempts")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":  userID,
		"attempts": attempts,
		"count":    len(attempts),
	})
}

// spendRequest is the body for POST /users/:id/points/spend.
type spendRequest struct {
	Points      int    `json:"points" binding:"required,gt=0"`
	Description string `json:"description"`
}

// SpendPoints deducts points from a user's balance.
// POST /api/v1/users/:id/points/spend.
func (h *Handler) SpendPoints(c *gin.Context) {
	userID, err := h.parseIDParam(c, "id")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var req spendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "points must be a positive integer")
		return
	}

	ok, err := h.ledgerService.Spend(c.Request.Context(), userID, req.Points, req.Description)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to spend points")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to spend points")
		return
	}
	if !ok {
		h.errorResponse(c, http.StatusConflict, "Insufficient balance")
		return
	}

	balance, err := h.ledgerService.Balance(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to read balance after spend")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to spend points")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"spent":   req.Points,
		"balance": balance,
	})
}

// RecordLogin processes a daily login event for streak tracking.
// POST /api/v1/users/:id/login.
func (h *Handler) RecordLogin(c *gin.Context) {
	userID, err := h.parseIDParam(c, "id")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.streakService.HandleDailyLogin(c.Request.Context(), userID); err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to handle daily login")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to record login")
		return
	}

	stats, err := h.leaderboardService.GetUserStats(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to load stats after login")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to record login")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// submitRequest is the body for POST /quizzes/:id/attempts.
type submitRequest struct {
	UserID  uint  `json:"user_id" binding:"required"`
	Answers []int `json:"answers" binding:"required"`
}

// SubmitQuizAttempt scores a quiz submission.
// POST /api/v1/quizzes/:id/attempts.
func (h *Handler) SubmitQuizAttempt(c *gin.Context) {
	quizID, err := h.parseIDParam(c, "id")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "user_id and answers are required")
		return
	}

	result, err := h.quizService.SubmitAttempt(c.Request.Context(), req.UserID, quizID, req.Answers)
	if err != nil {
		if ce, ok := errs.IsCooldown(err); ok {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":    "Retry cooldown active",
				"retry_at": ce.RetryAt.UTC(),
			})
			return
		}
		if errors.Is(err, errs.ErrNotEnrolled) {
			h.errorResponse(c, http.StatusForbidden, "User is not enrolled in this course")
			return
		}
		if errors.Is(err, errs.ErrNotFound) {
			h.errorResponse(c, http.StatusNotFound, "Quiz not found")
			return
		}
		h.log.Error().Err(err).Uint("quiz_id", quizID).Uint("user_id", req.UserID).Msg("Failed to submit quiz attempt")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to submit attempt")
		return
	}

	c.JSON(http.StatusCreated, result)
}

// GetBadgeCatalog returns every badge definition.
// GET /api/v1/badges.
func (h *Handler) GetBadgeCatalog(c *gin.Context) {
	catalog, err := h.badgeService.GetCatalog(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get badge catalog")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve badge catalog")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"badges": catalog,
		"count":  len(catalog),
	})
}

// parseIDParam extracts and validates a positive integer URL parameter.
func (h *Handler) parseIDParam(c *gin.Context, name string) (uint, error) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s parameter: %q", name, raw)
	}
	return uint(id), nil
}

// parseLimit extracts and validates the limit query parameter.
func (h *Handler) parseLimit(c *gin.Context, defaultLimit int) (int, error) {
	raw := c.DefaultQuery("limit", strconv.Itoa(defaultLimit))
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > 100 {
		return 0, fmt.Errorf("limit must be an integer between 1 and 100")
	}
	return limit, nil
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
