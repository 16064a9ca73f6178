package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-commerce.git/internal/config"
	kafkax "github.com/ariefcatur/go-commerce.git/internal/kafka"
	"github.com/ariefcatur/go-commerce.git/internal/logx"
	"github.com/ariefcatur/go-commerce.git/internal/orders"
	"github.com/ariefcatur/go-commerce.git/internal/redisx"
	"github.com/ariefcatur/go-commerce.git/internal/worker"
)

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log, err := logx.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		log.Fatal("redis connect", "err", err)
	}

	svc := &worker.Service{
		Redis: rdb,
		Log:   log.With("component", "order-worker"),
	}

	group := getenv("WORKER_GROUP", "order-worker")
	workers := mustAtoi(os.Getenv("WORKER_CONCURRENCY"), "8")

	topics := []string{
		orders.TopicOrderCreated,
		orders.TopicOrderCancelled,
		orders.TopicOrderStatusChanged,
		orders.TopicPaymentUpdated,
	}
	for _, topic := range topics {
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, topic, workers, log)
		go func(topic string) {
			log.Info("consumer started", "group", group, "topic", topic, "workers", workers)
			if err := cons.Start(ctx, svc.Handle); err != nil {
				log.Error("consumer exit", "topic", topic, "err", err)
				cancel()
			}
		}(topic)
	}

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down consumers")
	cancel()
	time.Sleep(500 * time.Millisecond)
}
