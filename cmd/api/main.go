// cmd/api/main.go
// Main entry point for the matching API
// This file bootstraps all components and starts the server

package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imadgeboyega/fitmatch-backend/internal/auth"
	"github.com/imadgeboyega/fitmatch-backend/internal/common/logging"
	"github.com/imadgeboyega/fitmatch-backend/internal/common/utils"
	"github.com/imadgeboyega/fitmatch-backend/internal/config"
	"github.com/imadgeboyega/fitmatch-backend/internal/matching"
)

func main() {
	// 1. Load environment variables
	envErr := godotenv.Load()

	// 2. Load configuration and logging
	cfg := config.Load()
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if envErr != nil {
		logging.Warn().Err(envErr).Msg("No .env file found, using environment variables")
	}

	// 3. Validate configuration
	if err := cfg.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("Configuration validation failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. Connect stores
	startupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	st, err := openStores(startupCtx, cfg)
	cancel()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open stores")
	}
	defer st.Close()

	// 5. Matching core
	seed := cfg.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	engine := matching.NewRecommendationEngine(rand.NewSource(seed), time.Now)

	hub := matching.NewHub()
	go hub.Run(ctx)

	processor := matching.NewFeedbackProcessor(st.profiles, st.preferences, st.matches, matching.FeedbackConfig{
		MaxConflictRetries: cfg.ConflictRetries,
		Notifier:           hub,
	})

	service := matching.NewService(st.profiles, st.preferences, st.matches, engine, processor, matching.Options{
		Limit:                matching.Int(cfg.DefaultLimit),
		DiversityFactor:      matching.Float(cfg.DiversityFactor),
		ActivityWeight:       matching.Float(cfg.ActivityWeight),
		ProfileQualityWeight: matching.Float(cfg.QualityWeight),
		CompatibilityWeight:  matching.Float(cfg.CompatibilityWeight),
		MaxDistance:          matching.Float(cfg.MaxDistanceMiles),
	})

	// 6. Routes
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(logging.RequestID)
	router.Use(loggingMiddleware)
	router.Use(corsMiddleware)

	router.Get("/health", healthCheck(st))
	router.Handle("/metrics", promhttp.Handler())

	matching.RegisterRoutes(router, matching.NewHandler(service), hub, auth.NewMiddleware(cfg.JWTSecret), matching.RateLimit{
		Requests: cfg.FeedbackRateLimit,
		Window:   cfg.FeedbackRateWindow,
	})

	// 7. Create and start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logging.Info().
			Str("addr", srv.Addr).
			Str("environment", cfg.Environment).
			Int64("random_seed", seed).
			Msg("Server starting")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()
	logging.Info().Msg("Shutdown signal received")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Server forced to shutdown")
		os.Exit(1)
	}

	logging.Info().Msg("Server exited gracefully")
}

func healthCheck(st *stores) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{}
		healthy := true
		for name, check := range st.checks {
			if err := check(ctx); err != nil {
				status[name] = err.Error()
				healthy = false
				continue
			}
			status[name] = "ok"
		}

		if !healthy {
			utils.ErrorResponse(w, "unhealthy", http.StatusServiceUnavailable)
			logging.Ctx(r.Context()).Warn().Interface("checks", status).Msg("Health check failed")
			return
		}
		utils.SuccessResponse(w, status, http.StatusOK)
	}
}
