package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/leejamie-42/online-store/internal/bank"
	"github.com/leejamie-42/online-store/internal/config"
	"github.com/leejamie-42/online-store/internal/httpx"
	"github.com/leejamie-42/online-store/internal/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.ServiceName, cfg.LogLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proc := bank.NewProcessor(cfg.BankSettleDelay)

	router := httpx.NewRouter()
	(&bank.Handler{Proc: proc}).Register(router)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	settler := bank.NewSettler(proc, cfg.PaymentWebhookURL, log)
	go settler.Run(ctx)

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
}
