package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fixmate/technician-scheduling/internal/api"
	"github.com/fixmate/technician-scheduling/internal/config"
	"github.com/fixmate/technician-scheduling/internal/db"
	"github.com/fixmate/technician-scheduling/internal/directory"
	"github.com/fixmate/technician-scheduling/internal/locker"
	"github.com/fixmate/technician-scheduling/internal/logger"
	"github.com/fixmate/technician-scheduling/internal/rating"
	"github.com/fixmate/technician-scheduling/internal/redisconn"
	"github.com/fixmate/technician-scheduling/internal/schedule"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	zl, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer zl.Sync()

	zl.Info("api-server starting up", "env", cfg.Env, "http_port", cfg.HTTPPort)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		zl.Fatal("postgres connection error", "error", err)
	}
	defer pgPool.Close()
	zl.Info("connected to Postgres")

	rdb, err := redisconn.New(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		zl.Fatal("redis connection error", "error", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			zl.Error("error closing redis", "error", err)
		}
	}()
	zl.Info("connected to Redis")

	apptRepo := schedule.NewPgRepository(pgPool)
	ratingRepo := rating.NewPgRepository(pgPool)
	dir := directory.NewPgDirectory(pgPool)
	locks := locker.NewRedisLocker(rdb, cfg.LockTTL)

	reconciler := rating.NewReconciler(ratingRepo, apptRepo, dir, zl)

	engine := schedule.NewEngine(apptRepo, locks, dir, zl)
	engine.SetCompletionListener(reconciler)

	rebuildCtx, cancelRebuild := context.WithTimeout(rootCtx, 30*time.Second)
	err = engine.RebuildIndex(rebuildCtx)
	cancelRebuild()
	if err != nil {
		zl.Fatal("conflict index rebuild error", "error", err)
	}

	router := api.NewRouter(api.RouterConfig{
		Engine:     engine,
		Reconciler: reconciler,
		PgPool:     pgPool,
		Redis:      rdb,
		Log:        zl,
		Env:        cfg.Env,
		Version:    version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		zl.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("http server error", "error", err)
		}
	}()

	<-rootCtx.Done()
	zl.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("graceful shutdown failed", "error", err)
	}
}
