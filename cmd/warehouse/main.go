package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/leejamie-42/online-store/internal/config"
	"github.com/leejamie-42/online-store/internal/events"
	"github.com/leejamie-42/online-store/internal/httpx"
	"github.com/leejamie-42/online-store/internal/idempotency"
	"github.com/leejamie-42/online-store/internal/inventory"
	"github.com/leejamie-42/online-store/internal/kafkax"
	"github.com/leejamie-42/online-store/internal/logging"
	"github.com/leejamie-42/online-store/internal/postgres"
	"github.com/leejamie-42/online-store/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.ServiceName, cfg.LogLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	if err := postgres.Migrate(cfg.PostgresDSN, inventory.Migrations); err != nil {
		log.WithError(err).Fatal("migrate")
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.WithError(err).Fatal("db connect")
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Producers
	updatesPub := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicProductUpdates, 1024, log)
	updatesPub.Start(ctx)
	rollbackDLQ := kafkax.NewProducer(cfg.KafkaBrokers, events.DLQ(events.TopicInventoryRollback), 256, log)
	rollbackDLQ.Start(ctx)

	// Engine
	repo := &inventory.Repo{DB: db}
	svc := &inventory.Service{
		Repo:        repo,
		Producer:    updatesPub,
		ServiceName: cfg.ServiceName,
		Log:         log,
	}

	// Seed demo stock and announce it so the store's read model fills up.
	warehouses, products, stock := inventory.DefaultSeed()
	if err := repo.Seed(ctx, warehouses, products, stock); err != nil {
		log.WithError(err).Fatal("seed")
	}
	for _, p := range products {
		snap, err := repo.ProductSnapshot(ctx, p.ID)
		if err != nil {
			log.WithError(err).WithField("product_id", p.ID).Warn("seed snapshot")
			continue
		}
		svc.PublishSnapshot(snap)
	}

	// HTTP RPC
	router := httpx.NewRouter()
	(&inventory.Handler{Svc: svc}).Register(router)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// Compensation consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ServiceName+"-rollback",
		events.TopicInventoryRollback, 4, cfg.KafkaMaxAttempts, rollbackDLQ, log)
	go func() {
		h := &inventory.RollbackConsumer{
			Svc:   svc,
			Guard: idempotency.New(rdb, cfg.ServiceName),
			Log:   log,
		}
		if err := cons.Start(ctx, h.Handle); err != nil {
			log.WithError(err).Error("rollback consumer exit")
			cancel()
		}
	}()

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("listen")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	cancel()
	updatesPub.Close()
	rollbackDLQ.Close()
	updatesPub.WaitClosed()
	rollbackDLQ.WaitClosed()
}
