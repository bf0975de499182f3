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

	"dialer-platform/internal/audit"
	"dialer-platform/internal/calls"
	"dialer-platform/internal/campaigns"
	"dialer-platform/internal/config"
	"dialer-platform/internal/dispatch"
	"dialer-platform/internal/httpapi"
	"dialer-platform/internal/provisioning"
	"dialer-platform/internal/reconcile"
	"dialer-platform/internal/settings"
	"dialer-platform/pkg/logger"
	"dialer-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	lk, err := provisioning.NewLiveKitClient(cfg.LiveKit.URL, cfg.LiveKit.APIKey, cfg.LiveKit.APISecret)
	if err != nil {
		log.Error("livekit init failed", "err", err)
		os.Exit(1)
	}
	tokens, err := provisioning.NewTokenIssuer(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, time.Hour)
	if err != nil {
		log.Error("token issuer init failed", "err", err)
		os.Exit(1)
	}

	// Storage
	callRepo := calls.NewPostgresRepo(db)
	campaignRepo := campaigns.NewPostgresRepo(db)
	settingsStore := settings.NewStore(settings.NewPostgresRepo(db), rdb)
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))

	// Services and engines
	campaignSvc := campaigns.NewService(campaignRepo, callRepo)
	campaignSvc.Audit = auditSvc

	dispatcher := dispatch.NewEngine(campaignRepo, callRepo, lk, settingsStore)
	dispatcher.Locks = dispatch.NewRedisLocker(rdb, 0)
	dispatcher.Audit = auditSvc

	reconciler := reconcile.NewEngine(callRepo, campaignRepo)
	reconciler.Audit = auditSvc

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, httpapi.Handlers{
		Campaigns: campaignSvc,
		Dispatch:  dispatcher,
		Reconcile: reconciler,
		Settings:  settingsStore,
		Tokens:    tokens,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
