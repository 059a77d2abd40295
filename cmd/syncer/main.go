package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"review_sync/internal/adapters/observability"
	redisad "review_sync/internal/adapters/redis"
	"review_sync/internal/bootstrap"
	"review_sync/internal/scheduler"
	"review_sync/internal/shared"
	mysqlrepo "review_sync/internal/storage/mysql"
)

func main() {
	once := flag.Bool("once", false, "run a single pass over all connections and exit")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := shared.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	log.Logger = observability.NewLogger(cfg.AppEnv, "review-sync-syncer", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("schedule", cfg.SyncSchedule).
		Int("workers", cfg.SyncWorkers).
		Bool("once", *once).
		Msg("syncer starting")

	db, err := bootstrap.OpenMySQL(ctx, cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("database unavailable")
	}
	defer db.Close()

	rdb := redisad.NewClient(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer rdb.Close()
	if err := redisad.Ping(ctx, rdb); err != nil {
		log.Warn().Err(err).Msg("redis ping failed, syncs run without a lease")
	}

	repo := mysqlrepo.New(db)
	syncer := bootstrap.SyncService(cfg, repo, redisad.NewCache(rdb), redisad.NewLease(rdb))
	svc := scheduler.NewService(repo, syncer, cfg.SyncSchedule, cfg.SyncWorkers)

	if *once {
		sum, err := svc.RunOnce(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("sync pass failed")
		}
		log.Info().Int("total", sum.Total).Int("ok", sum.Succeeded).Int("failed", sum.Failed).
			Int("skipped", sum.Skipped).Msg("sync pass completed")
		return
	}

	observability.Serve(cfg.MetricsAddr, observability.InitRegistry())
	if err := svc.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("scheduler start failed")
	}
	<-ctx.Done()
	svc.Stop(cfg.SyncTimeout)
}
