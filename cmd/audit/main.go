package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-bookstore-checkout/internal/audit"
	"github.com/ariefcatur/go-bookstore-checkout/internal/config"
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
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	service := cfg.ServiceName + "-audit"
	log := logging.New(service, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Setup(ctx, service, cfg.OtelEndpoint)
	if err != nil {
		log.Fatal("tracing", zap.Error(err))
	}

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb, err := redisx.New(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	svc := &audit.Service{
		Orders: &orders.Repo{DB: db},
		Redis:  rdb,
		Log:    log,
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.AuditGroup, cfg.OrderCreatedTopic, cfg.AuditWorkers, log)

	var consumeErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("audit consumer started",
			zap.String("group", cfg.AuditGroup),
			zap.String("topic", cfg.OrderCreatedTopic),
			zap.Int("workers", cfg.AuditWorkers),
		)
		// a handler failure stops the consumer; exit non-zero so the
		// supervisor restarts it from the last committed offset
		if err := cons.Start(ctx, svc.HandleOrderCreated); err != nil {
			consumeErr = err
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Info("shutting down consumer")
	case <-ctx.Done():
	}
	cancel()
	<-done

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := shutdownTracing(ctx2); err != nil {
		log.Warn("tracing shutdown", zap.Error(err))
	}
	if consumeErr != nil {
		_ = log.Sync()
		rdb.Close()
		db.Close()
		os.Exit(1)
	}
}
