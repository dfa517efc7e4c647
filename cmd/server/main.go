// The server command runs the gamification HTTP API: points ledger,
// streaks, badges, leaderboards, and quiz scoring.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/aimd54/elearn-gamification/internal/api/admin"
	"github.com/aimd54/elearn-gamification/internal/api/gamification"
	"github.com/aimd54/elearn-gamification/internal/config"
	"github.com/aimd54/elearn-gamification/internal/repository"
	"github.com/aimd54/elearn-gamification/internal/service/badges"
	"github.com/aimd54/elearn-gamification/internal/service/leaderboard"
	"github.com/aimd54/elearn-gamification/internal/service/ledger"
	"github.com/aimd54/elearn-gamification/internal/service/quiz"
	"github.com/aimd54/elearn-gamification/internal/service/scheduler"
	"github.com/aimd54/elearn-gamification/internal/service/streaks"
	"github.com/aimd54/elearn-gamification/pkg/logger"
	"github.com/aimd54/elearn-gamification/pkg/userlock"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	log.Info().
		Str("environment", cfg.Server.Environment).
		Int("port", cfg.Server.Port).
		Msg("Starting gamification server")

	// Database
	db, err := repository.NewDB(&cfg.Database.Postgres, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Database.Redis.Host, cfg.Database.Redis.Port),
		Password: cfg.Database.Redis.Password,
		DB:       cfg.Database.Redis.DB,
		PoolSize: cfg.Database.Redis.PoolSize,
	})
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	cancelPing()
	defer redisClient.Close()

	// Repositories
	pointsRepo := repository.NewPointsRepository(db)
	badgeRepo := repository.NewBadgeRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	lbRepo := repository.NewLeaderboardRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)

	// Services. The ledger, badge engine, and leaderboard reference each
	// other, so the cyclic edges are attached after construction.
	locks := userlock.New()
	ledgerService := ledger.NewService(pointsRepo, locks, log)
	badgeService := badges.NewService(badgeRepo, pointsRepo, quizRepo, catalogRepo, cfg.Gamification.BadgeBonusPoints, log)
	lbCache := leaderboard.NewCache(redisClient)
	lbService := leaderboard.NewService(pointsRepo, lbRepo, catalogRepo, lbCache, log).
		WithStats(pointsRepo, badgeRepo, quizRepo, catalogRepo)
	streakService := streaks.NewService(pointsRepo, ledgerService, locks, &cfg.Gamification, log)
	quizService := quiz.NewService(quizRepo, catalogRepo, streakService, locks, &cfg.Gamification, log)

	ledgerService.SetBadgeChecker(badgeService)
	ledgerService.SetRanker(lbService)
	badgeService.SetBonusGranter(ledgerService)

	if path := cfg.Gamification.BadgeCatalogPath; path != "" {
		count, err := badgeService.SeedCatalog(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("Failed to seed badge catalog")
		}
		log.Info().Int("badges", count).Str("path", path).Msg("Badge catalog seeded")
	}

	// Background maintenance jobs
	maintenance := scheduler.NewService(&cfg.Scheduler, pointsRepo, ledgerService, lbService, log)
	if err := maintenance.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}
	defer maintenance.Stop()

	// HTTP server
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	handler := gamification.NewHandler(ledgerService, streakService, badgeService, lbService, quizService, log)
	handler.RegisterRoutes(router)

	adminHandler := admin.NewHandler(ledgerService, lbService, badgeService, cfg.Gamification.BadgeCatalogPath, log)
	adminHandler.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		if err := db.Health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quitCh := make(chan os.Signal, 1)
	signal.Notify(quitCh, syscall.SIGINT, syscall.SIGTERM)
	<-quitCh
	log.Info().Msg("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Forced shutdown")
	}
	log.Info().Msg("Server stopped")
}
