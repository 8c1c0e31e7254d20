package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-bookstore-checkout/internal/cart"
	"github.com/ariefcatur/go-bookstore-checkout/internal/checkout"
	"github.com/ariefcatur/go-bookstore-checkout/internal/config"
	"github.com/ariefcatur/go-bookstore-checkout/internal/httpx"
	"github.com/ariefcatur/go-bookstore-checkout/internal/inventory"
	kafkax "github.com/ariefcatur/go-bookstore-checkout/internal/kafka"
	"github.com/ariefcatur/go-bookstore-checkout/internal/logging"
	"github.com/ariefcatur/go-bookstore-checkout/internal/orders"
	"github.com/ariefcatur/go-bookstore-checkout/internal/postgres"
	"github.com/ariefcatur/go-bookstore-checkout/internal/redisx"
	"github.com/ariefcatur/go-bookstore-checkout/internal/tracing"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// logger belum ada
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	log := logging.New(cfg.ServiceName, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Setup(ctx, cfg.ServiceName, cfg.OtelEndpoint)
	if err != nil {
		log.Fatal("tracing", zap.Error(err))
	}

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb, err := redisx.New(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, cfg.OrderCreatedTopic, cfg.PublishBuffer, log)
	prod.Start(ctx)

	// Stores, collaborators & orchestrator
	carts := &cart.Repo{DB: db}
	orderRepo := &orders.Repo{DB: db}
	svc := checkout.NewService(
		carts,
		inventory.NewClient(cfg.InventoryURL, cfg.InventoryAuthToken, cfg.InventoryTimeout, log),
		orderRepo,
		&orders.EventPublisher{Producer: prod, Service: cfg.ServiceName, Log: log},
		redisx.NewOwnerLocker(rdb, cfg.CheckoutLockTTL),
		log,
	)

	router := httpx.NewRouter(log)
	(&httpx.OrdersHandler{Checkout: svc, Orders: orderRepo, Redis: rdb, Log: log}).Register(router)
	(&httpx.CartHandler{Carts: carts, Log: log}).Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	prod.Close()      // tutup inbox -> flush & close writer
	prod.WaitClosed() // drain
	cancel()
	if err := shutdownTracing(ctx2); err != nil {
		log.Warn("tracing shutdown", zap.Error(err))
	}
}
