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
	"github.com/accueilpro/accueilpro/pkg/client"
	"github.com/accueilpro/accueilpro/pkg/config"
	"github.com/accueilpro/accueilpro/pkg/logger"
	mw "github.com/accueilpro/accueilpro/pkg/middleware"
	"github.com/accueilpro/accueilpro/services/gateway/internal/handlers"
	"github.com/accueilpro/accueilpro/services/gateway/internal/proxy"
	"github.com/accueilpro/accueilpro/services/gateway/internal/session"
	"github.com/go-chi/chi/v5"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	rdb, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	api := client.New(cfg.Services.AuthURL, cfg.Services.VisitorsURL)
	sessions := session.NewStore(rdb, cfg.Auth.RefreshTokenTTL)

	h := handlers.New(
		api,
		sessions,
		proxy.NewServiceProxy(cfg.Services.AuthURL),
		proxy.NewServiceProxy(cfg.Services.VisitorsURL),
		cfg,
	)

	trusted, err := mw.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		logger.Error("Invalid TRUSTED_PROXIES", "error", err)
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(mw.TrustedRealIP(trusted))
	r.Use(mw.Standard("gateway", cfg.App.AllowOrigins)...)
	h.Routes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down gateway service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Gateway shutdown error", "error", err)
		}
	}()

	logger.Info("Starting gateway service", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Gateway server error", "error", err)
		os.Exit(1)
	}
}
