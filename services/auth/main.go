package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/accueilpro/accueilpro/pkg/cache"
	"github.com/accueilpro/accueilpro/pkg/config"
	"github.com/accueilpro/accueilpro/pkg/database"
	"github.com/accueilpro/accueilpro/pkg/logger"
	mw "github.com/accueilpro/accueilpro/pkg/middleware"
	"github.com/accueilpro/accueilpro/services/auth/internal/handlers"
	"github.com/accueilpro/accueilpro/services/auth/internal/mailer"
	"github.com/accueilpro/accueilpro/services/auth/internal/repository"
	"github.com/accueilpro/accueilpro/services/auth/internal/service"
	"github.com/go-chi/chi/v5"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	rdb, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	userRepo := repository.NewUserRepository(pool)
	tokenRepo := repository.NewTokenRepository(rdb)

	authService := service.NewAuthService(userRepo, tokenRepo, mailer.New(cfg.Email), cfg)

	signInLimit := mw.NewRateLimiter(rdb, mw.RateLimitConfig{
		Requests: cfg.Auth.SignInRequests,
		Window:   cfg.Auth.SignInWindow,
		Prefix:   "ratelimit:signin",
	})
	h := handlers.New(authService, signInLimit, cfg)

	trusted, err := mw.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		logger.Error("Invalid TRUSTED_PROXIES", "error", err)
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(mw.TrustedRealIP(trusted))
	r.Use(mw.Standard("auth", cfg.App.AllowOrigins)...)
	h.Routes(r)

	port := os.Getenv("AUTH_PORT")
	if port == "" {
		port = "8081"
	}
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down auth service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Auth service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting auth service", "port", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Auth service error", "error", err)
		os.Exit(1)
	}
}
