package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/callpulse/backend/internal/api"
	"github.com/callpulse/backend/internal/auth"
	"github.com/callpulse/backend/internal/config"
	"github.com/callpulse/backend/internal/metrics"
	"github.com/callpulse/backend/internal/notify"
	"github.com/callpulse/backend/internal/report"
	"github.com/callpulse/backend/internal/schedule"
	"github.com/callpulse/backend/internal/upstream"
	"github.com/callpulse/backend/internal/window"
	"github.com/callpulse/backend/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Str("timezone", cfg.Timezone).
		Str("upstream", cfg.UpstreamBaseURL).
		Int("excluded_agents", len(cfg.ExcludedAgents)).
		Msg("starting callpulse backend server")

	// One pacing limiter shared by all upstream requests: page fetches
	// and per-agent fetches alike stay under the upstream rate limit
	limiter := rate.NewLimiter(rate.Every(cfg.PacingInterval), 1)

	client := upstream.NewClient(cfg, limiter, log.Logger)
	resolver := window.NewResolver(cfg)
	generator := report.NewGenerator(client, resolver, cfg.ExcludedAgents, log.Logger)
	notifier := notify.NewNotifier(cfg, log.Logger)

	// Scheduled report runs
	scheduler := schedule.NewScheduler(cfg, generator, notifier, log.Logger)
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}

	// Create report handler
	reportHandler := api.NewReportHandler(generator, notifier, log.Logger)

	// Create router
	r := chi.NewRouter()

	// Add middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Register public routes (no auth required)
	r.Get("/health", healthHandler)
	r.Get("/metrics", metrics.Get().Handler())

	// Add auth middleware for report routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)
		r.Get("/reports/{period}", reportHandler.HandleGet)
		r.Post("/reports/{period}", reportHandler.HandleTrigger)
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Stop scheduled runs first so nothing new starts mid-shutdown
	scheduler.Stop()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"callpulse-backend"}`)
}
