package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oggyb/muzz-matchmaking/internal/app"
	"github.com/oggyb/muzz-matchmaking/internal/cache"
	"github.com/oggyb/muzz-matchmaking/internal/config"
	"github.com/oggyb/muzz-matchmaking/internal/db"
	"github.com/oggyb/muzz-matchmaking/internal/jobs"
	"github.com/oggyb/muzz-matchmaking/internal/logger"
	"github.com/oggyb/muzz-matchmaking/internal/metrics"
	"github.com/oggyb/muzz-matchmaking/internal/server"
	"github.com/oggyb/muzz-matchmaking/internal/transport/grpcapi"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(ctx); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}
	defer redisCache.Close()

	if cfg.App.ENV == "development" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	m := metrics.New()
	appCtx := app.New(cfg, database, redisCache, log, m)
	api := grpcapi.NewServer(appCtx)

	if _, err := api.Discovery().RebuildIndex(ctx); err != nil {
		log.Warn("geo index rebuild failed, discovery will use the fallback list", "err", err)
	}

	sched, err := jobs.NewScheduler(cfg.Premium.SweepSpec, api.Premium(), log)
	if err != nil {
		log.Error("invalid premium sweep schedule", "spec", cfg.Premium.SweepSpec, "err", err)
		return
	}
	sched.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		sched.Stop(stopCtx)
	}()

	metricsSrv := &http.Server{Addr: cfg.Metrics.Addr, Handler: metricsMux(m), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("serving metrics", "addr", cfg.Metrics.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", "err", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	addr := cfg.GRPC.Host + ":" + cfg.GRPC.Port
	log.Info("starting gRPC server", "addr", addr)

	if err := server.StartGRPCServer(ctx, cfg, log,
		grpcapi.NewRegistrar(api),
		server.Health(grpcapi.ServiceName),
	); err != nil {
		log.Error("failed to start gRPC server", "err", err)
	}
}

func metricsMux(m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return mux
}
