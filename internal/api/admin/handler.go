// Package admin provides the administrative REST API: manual point
// adjustments, ledger consistency checks, leaderboard rebuilds, and badge
// catalog reloads.
package admin

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
	"github.com/aimd54/elearn-gamification/pkg/logger"
)

// LedgerService interface for administrative ledger operations.
type LedgerService interface {
	Adjust(ctx context.Context, userID uint, points int, description string) (int, error)
	Balance(ctx context.Context, userID uint) (int, error)
	VerifyBalance(ctx context.Context, userID uint) error
}

// LeaderboardService interface for leaderboard rebuild operations.
type LeaderboardService interface {
	Recompute(ctx context.Context, scope models.LeaderboardScope, referenceID *uint) error
}

// BadgeService interface for badge catalog operations.
type BadgeService interface {
	SeedCatalog(path string) (int, error)
}

// Handler handles administrative API requests.
type Handler struct {
	ledgerService      LedgerService
	leaderboardService LeaderboardService
	badgeService       BadgeService
	catalogPath        string
	log                *logger.Logger
}

// NewHandler creates a new admin handler.
func NewHandler(
	ledgerService *ledger.Service,
	leaderboardService *leaderboard.Service,
	badgeService *badges.Service,
	catalogPath string,
	log *logger.Logger,
) *Handler {
	return NewHandlerWithInterfaces(ledgerService, leaderboardService, badgeService, catalogPath, log)
}

// NewHandlerWithInterfaces creates a new admin handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(
	ledgerService LedgerService,
	leaderboardService LeaderboardService,
	badgeService BadgeService,
	catalogPath string,
	log *logger.Logger,
) *Handler {
	return &Handler{
		ledgerService:      ledgerService,
		leaderboardService: leaderboardService,
		badgeService:       badgeService,
		catalogPath:        catalogPath,
		log:                log,
	}
}

// RegisterRoutes mounts the admin API under /api/v1/admin.
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	admin := router.Group("/api/v1/admin")
	{
		admin.POST("/users/:id/points/adjust", h.AdjustPoints)
		admin.GET("/users/:id/ledger/verify", h.VerifyLedger)
		admin.POST("/leaderboard/recompute", h.RecomputeLeaderboards)
		admin.POST("/badges/reload", h.ReloadBadgeCatalog)
	}
}

// adjustRequest is the body for POST /admin/users/:id/points/adjust.
type adjustRequest struct {
	Points      int    `json:"points" binding:"required"`
	Description string `json:"description" binding:"required"`
}

// AdjustPoints applies a manual point correction to a user.
// POST /api/v1/admin/users/:id/points/adjust.
func (h *Handler) AdjustPoints(c *gin.Context) {
	userID, err := h.parseIDParam(c, "id")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "points (non-zero) and description are required")
		return
	}

	adjusted, err := h.ledgerService.Adjust(c.Request.Context(), userID, req.Points, req.Description)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to adjust points")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to adjust points")
		return
	}

	balance, err := h.ledgerService.Balance(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to read balance after adjustment")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to adjust points")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":  userID,
		"adjusted": adjusted,
		"balance":  balance,
	})
}

// VerifyLedger checks a user's profile balance against their ledger sum.
// GET /api/v1/admin/users/:id/ledger/verify.
func (h *Handler) VerifyLedger(c *gin.Context) {
	userID, err := h.parseIDParam(c, "id")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	err = h.ledgerService.VerifyBalance(c.Request.Context(), userID)
	if err == nil {
		c.JSON(http.StatusOK, gin.H{
			"user_id":    userID,
			"consistent": true,
		})
		return
	}
	if errors.Is(err, errs.ErrInvariant) {
		c.JSON(http.StatusConflict, gin.H{
			"user_id":    userID,
			"consistent": false,
			"detail":     err.Error(),
		})
		return
	}

	h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to verify ledger")
	h.errorResponse(c, http.StatusInternalServerError, "Failed to verify ledger")
}

// RecomputeLeaderboards rebuilds leaderboard scopes on demand. Without a
// scope parameter the global and weekly boards are rebuilt; scope=COURSE
// rebuilds one course board and requires course_id.
// POST /api/v1/admin/leaderboard/recompute?scope=COURSE&course_id=7.
func (h *Handler) RecomputeLeaderboards(c *gin.Context) {
	scope := models.LeaderboardScope(c.Query("scope"))

	var rebuilt []models.LeaderboardScope
	switch scope {
	case "":
		rebuilt = []models.LeaderboardScope{models.ScopeGlobal, models.ScopePeriodic}
		for _, sc := range rebuilt {
			if err := h.leaderboardService.Recompute(c.Request.Context(), sc, nil); err != nil {
				h.log.Error().Err(err).Str("scope", string(sc)).Msg("Failed to recompute leaderboard")
				h.errorResponse(c, http.StatusInternalServerError, "Failed to recompute leaderboard")
				return
			}
		}
	case models.ScopeGlobal, models.ScopePeriodic:
		if err := h.leaderboardService.Recompute(c.Request.Context(), scope, nil); err != nil {
			h.log.Error().Err(err).Str("scope", string(scope)).Msg("Failed to recompute leaderboard")
			h.errorResponse(c, http.StatusInternalServerError, "Failed to recompute leaderboard")
			return
		}
		rebuilt = []models.LeaderboardScope{scope}
	case models.ScopeCourse:
		raw := c.Query("course_id")
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || id == 0 {
			h.errorResponse(c, http.StatusBadRequest, "scope=COURSE requires a valid course_id")
			return
		}
		courseID := uint(id)
		if err := h.leaderboardService.Recompute(c.Request.Context(), scope, &courseID); err != nil {
			h.log.Error().Err(err).Uint("course_id", courseID).Msg("Failed to recompute course leaderboard")
			h.errorResponse(c, http.StatusInternalServerError, "Failed to recompute leaderboard")
			return
		}
		rebuilt = []models.LeaderboardScope{scope}
	default:
		h.errorResponse(c, http.StatusBadRequest, fmt.Sprintf("unknown scope %q", scope))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"recomputed": rebuilt,
	})
}

// ReloadBadgeCatalog re-reads the badge catalog file and upserts its
// definitions. POST /api/v1/admin/badges/reload.
func (h *Handler) ReloadBadgeCatalog(c *gin.Context) {
	if h.catalogPath == "" {
		h.errorResponse(c, http.StatusConflict, "No badge catalog path configured")
		return
	}

	count, err := h.badgeService.SeedCatalog(h.catalogPath)
	if err != nil {
		h.log.Error().Err(err).Str("path", h.catalogPath).Msg("Failed to reload badge catalog")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to reload badge catalog")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"badges_loaded": count,
		"path":          h.catalogPath,
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

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
