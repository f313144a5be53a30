// Socratic tutor server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/socratic-tutor/internal/api"
	"github.com/ashureev/socratic-tutor/internal/config"
	"github.com/ashureev/socratic-tutor/internal/gateway"
	"github.com/ashureev/socratic-tutor/internal/identity"
	"github.com/ashureev/socratic-tutor/internal/middleware"
	"github.com/ashureev/socratic-tutor/internal/store"
	"github.com/ashureev/socratic-tutor/internal/transcript"
	"github.com/ashureev/socratic-tutor/internal/tutor"
	"github.com/ashureev/socratic-tutor/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "model", cfg.Model.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	gen := newGenerator(ctx, cfg.Model)
	engine := tutor.NewEngine(gen, logger)
	transcripts := transcript.NewStore()
	hub := api.NewHub()

	limiter := api.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)
	defer limiter.Stop()

	apiHandler := api.NewHandler(engine, transcripts, repo, api.Options{
		MaxBodySize:    cfg.MaxRequestBodySize,
		Model:          cfg.Model.Name,
		Limiter:        limiter,
		Hub:            hub,
		AllowedOrigins: cfg.AllowedOrigins(),
		IsDev:          cfg.IsDevelopment(),
	})

	var provider identity.Provider
	if cfg.Auth.Enabled() {
		provider = identity.NewGoogleProvider(cfg.Auth.GoogleClientID, cfg.Auth.GoogleClientSecret, cfg.Auth.RedirectURL)
		slog.Info("Google sign-in enabled")
	} else {
		slog.Warn("Google sign-in not configured", "anonymous", cfg.Auth.AllowAnonymous)
	}
	afterSignIn := "/"
	if !cfg.IsDevelopment() {
		afterSignIn = cfg.AllowedOrigins()[0]
	}
	authHandler := identity.NewHandler(repo, provider, identity.HandlerConfig{
		SessionTTL:  cfg.SessionTTL,
		Secure:      !cfg.IsDevelopment(),
		AfterSignIn: afterSignIn,
	}, hub.CloseUser)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(identity.Middleware(repo, identity.Options{
		AllowAnonymous: cfg.Auth.AllowAnonymous,
		Secure:         !cfg.IsDevelopment(),
	}))

	authHandler.RegisterRoutes(r)
	apiHandler.RegisterRoutes(r)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// WriteTimeout stays 0: model calls and WebSocket streams outlive any fixed deadline.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	identity.StartSweeper(ctx, repo, cfg.SweepInterval, func(_ context.Context, res identity.SweepResult) {
		for _, userID := range res.ExpiredUsers {
			hub.CloseUser(userID)
		}
		if evicted := transcripts.EvictIdle(res.Now.Add(-cfg.TranscriptTTL)); len(evicted) > 0 {
			slog.Info("Evicted idle transcripts", "owners", len(evicted))
			for _, owner := range evicted {
				hub.CloseUser(owner)
			}
		}
	})

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

// newGenerator connects to Gemini. Without a usable client the server still
// starts and every turn is answered with fallback content.
func newGenerator(ctx context.Context, cfg config.ModelConfig) gateway.Generator {
	g, err := gateway.NewGemini(ctx, gateway.GeminiConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.Name,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		slog.Warn("Model client unavailable, replies will use fallback content", "error", err)
		return gateway.Offline(err)
	}

	if cfg.ListModels {
		listCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		names, err := g.ListModels(listCtx)
		if err != nil {
			slog.Warn("Failed to list models", "error", err)
		} else {
			slog.Info("Available models", "count", len(names), "models", names)
		}
	}
	return g
}
