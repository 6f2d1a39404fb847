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
	"github.com/accueilpro/accueilpro/pkg/events"
	"github.com/accueilpro/accueilpro/pkg/logger"
	mw "github.com/accueilpro/accueilpro/pkg/middleware"
	"github.com/accueilpro/accueilpro/services/visitors/internal/handlers"
	"github.com/accueilpro/accueilpro/services/visitors/internal/realtime"
	"github.com/accueilpro/accueilpro/services/visitors/internal/repository"
	"github.com/accueilpro/accueilpro/services/visitors/internal/service"
	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL, "visitors")
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	visitorRepo := repository.NewVisitorRepository(pool)
	visitorService := service.NewVisitorService(visitorRepo, rdb, eventBus, cfg)

	// Every replica hears every change so each can drop its cache and
	// notify its own stream subscribers.
	hub := realtime.NewHub()
	if err := hub.Listen(eventBus, visitorService.InvalidateList); err != nil {
		logger.Error("Failed to subscribe to visitor changes", "error", err)
		os.Exit(1)
	}

	h := handlers.New(visitorService, hub, rdb, cfg)

	trusted, err := mw.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		logger.Error("Invalid TRUSTED_PROXIES", "error", err)
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(mw.TrustedRealIP(trusted))
	r.Use(mw.Standard("visitors", cfg.App.AllowOrigins)...)
	h.Routes(r)

	port := os.Getenv("VISITORS_PORT")
	if port == "" {
		port = "8082"
	}
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting visitors service", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return hub.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down visitors service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Visitors service error", "error", err)
		os.Exit(1)
	}
}
