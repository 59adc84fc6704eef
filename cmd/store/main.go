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
	"github.com/leejamie-42/online-store/internal/orders"
	"github.com/leejamie-42/online-store/internal/payments"
	"github.com/leejamie-42/online-store/internal/postgres"
	"github.com/leejamie-42/online-store/internal/redisx"
	"github.com/leejamie-42/online-store/internal/shipping"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.ServiceName, cfg.LogLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	if err := postgres.Migrate(cfg.PostgresDSN, orders.Migrations); err != nil {
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

	// Kafka producers: compensation topics + email, plus the DLQs for
	// the two consumers this service runs.
	rollbackPub := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicInventoryRollback, 1024, log)
	refundPub := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicPaymentRefund, 1024, log)
	emailPub := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicEmail, 1024, log)
	catalogDLQ := kafkax.NewProducer(cfg.KafkaBrokers, events.DLQ(events.TopicProductUpdates), 256, log)
	refundDLQ := kafkax.NewProducer(cfg.KafkaBrokers, events.DLQ(events.TopicPaymentRefund), 256, log)
	producers := []*kafkax.Producer{rollbackPub, refundPub, emailPub, catalogDLQ, refundDLQ}
	for _, p := range producers {
		p.Start(ctx)
	}

	// Components
	repo := &orders.Repo{DB: db}
	payRepo := &payments.Repo{DB: db}
	legRepo := &shipping.Repo{DB: db}
	coordinator := &payments.Coordinator{
		Repo: payRepo,
		Bank: payments.NewBankClient(cfg.BankURL),
		Log:  log,
	}
	saga := &orders.Saga{
		Orders:      repo,
		Warehouse:   inventory.NewClient(cfg.WarehouseURL),
		Payments:    coordinator,
		Legs:        legRepo,
		Delivery:    shipping.NewClient(cfg.DeliveryURL),
		Guard:       idempotency.New(rdb, cfg.ServiceName),
		RollbackPub: rollbackPub,
		RefundPub:   refundPub,
		EmailPub:    emailPub,
		ServiceName: cfg.ServiceName,
		Log:         log,
	}

	// HTTP
	router := httpx.NewRouter()
	(&httpx.OrdersHandler{Saga: saga, Repo: repo, Log: log}).Register(router)
	(&httpx.WebhooksHandler{Saga: saga, Log: log}).Register(router)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// Consumers: catalog read model + queued refund retries
	catalogConsumer := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ServiceName+"-catalog",
		events.TopicProductUpdates, 4, cfg.KafkaMaxAttempts, catalogDLQ, log)
	go func() {
		h := &orders.ProductUpdateConsumer{Repo: repo, Log: log}
		if err := catalogConsumer.Start(ctx, h.Handle); err != nil {
			log.WithError(err).Error("catalog consumer exit")
			cancel()
		}
	}()
	refundConsumer := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ServiceName+"-refunds",
		events.TopicPaymentRefund, 4, cfg.KafkaMaxAttempts, refundDLQ, log)
	go func() {
		h := &orders.RefundRetryConsumer{
			Payments: coordinator,
			Guard:    idempotency.New(rdb, cfg.ServiceName+"-refunds"),
			Log:      log,
		}
		if err := refundConsumer.Start(ctx, h.Handle); err != nil {
			log.WithError(err).Error("refund consumer exit")
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
	for _, p := range producers {
		p.Close()
	}
	for _, p := range producers {
		p.WaitClosed()
	}
}
