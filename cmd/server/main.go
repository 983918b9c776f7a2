// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal service
// packages.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"geoset/internal/algebra"
	algebrahandler "geoset/internal/algebra/handler"
	"geoset/internal/audit"
	"geoset/internal/backup"
	backuphandler "geoset/internal/backup/handler"
	"geoset/internal/platform/config"
	"geoset/internal/platform/httpserver"
	"geoset/internal/platform/logger"
	"geoset/internal/platform/postgres"
	platformredis "geoset/internal/platform/redis"
	"geoset/internal/regions"
	setshandler "geoset/internal/sets/handler"
	"geoset/internal/sets/metrics"
	setservice "geoset/internal/sets/service"
	setstore "geoset/internal/sets/store"
	transport "geoset/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		log.Error("schema migration failed", "error", err)
		os.Exit(1)
	}

	var store setstore.Store = setstore.NewPostgres(db)

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		store = setstore.NewMemberCache(store, redisClient.Client, 24*time.Hour, log)
		log.Info("member cache enabled", "redis", cfg.Redis.URL)
	}

	var publisher audit.Publisher = audit.Noop{}
	if cfg.KafkaBrokers != "" {
		kafkaPub, err := audit.NewKafkaPublisher(cfg.KafkaBrokers, cfg.AuditTopic, log)
		if err != nil {
			log.Error("kafka unavailable", "error", err)
			os.Exit(1)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := kafkaPub.Close(flushCtx); err != nil {
				log.Error("audit publisher close failed", "error", err)
			}
		}()
		publisher = kafkaPub
		log.Info("audit events enabled", "topic", cfg.AuditTopic)
	}

	opts := []setservice.Option{
		setservice.WithPublisher(publisher),
		setservice.WithMetrics(metrics.New()),
	}
	if cfg.EnforceUniverse {
		opts = append(opts, setservice.WithUniverse(regions.NewPostgresStore(db)))
		log.Info("identifier universe enforcement enabled")
	}
	setSvc := setservice.New(store, opts...)
	algebraSvc := algebra.New(setSvc)
	backupSvc := backup.New(store, publisher)

	router := transport.NewRouter(log, db.PingContext,
		setshandler.New(setSvc, log),
		algebrahandler.New(algebraSvc, log),
		backuphandler.New(backupSvc, log),
	)
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting geoset", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
