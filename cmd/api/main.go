package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-commerce.git/internal/auth"
	"github.com/ariefcatur/go-commerce.git/internal/cart"
	"github.com/ariefcatur/go-commerce.git/internal/catalog"
	"github.com/ariefcatur/go-commerce.git/internal/checkout"
	"github.com/ariefcatur/go-commerce.git/internal/config"
	"github.com/ariefcatur/go-commerce.git/internal/httpx"
	kafkax "github.com/ariefcatur/go-commerce.git/internal/kafka"
	"github.com/ariefcatur/go-commerce.git/internal/logx"
	"github.com/ariefcatur/go-commerce.git/internal/orders"
	"github.com/ariefcatur/go-commerce.git/internal/payments"
	"github.com/ariefcatur/go-commerce.git/internal/postgres"
	"github.com/ariefcatur/go-commerce.git/internal/redisx"
)

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

	// DB
	if err := postgres.Migrate(cfg.PostgresDSN, cfg.MigrationsDir); err != nil {
		log.Fatal("migrate", "err", err)
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", "err", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		log.Fatal("redis connect", "err", err)
	}

	// Kafka producers, one per topic
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024)
	pCancelled := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCancelled, 1024)
	pStatus := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 1024)
	pPayment := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicPaymentUpdated, 1024)
	producers := []*kafkax.Producer{pCreated, pCancelled, pStatus, pPayment}
	for _, p := range producers {
		p.Start(ctx)
	}
	events := &httpx.EventPublisher{
		Service:       cfg.ServiceName,
		Created:       pCreated,
		Cancelled:     pCancelled,
		StatusChanged: pStatus,
		Payment:       pPayment,
	}

	// Repos & services
	catalogRepo := &catalog.Repo{DB: db}
	cartSvc := &cart.Service{Store: &cart.Repo{DB: db}, Products: catalogRepo}
	ordersRepo := &orders.Repo{DB: db}
	checkoutSvc := &checkout.Service{
		Carts:       &cart.Repo{DB: db},
		Orders:      &checkout.Repo{DB: db},
		TaxRate:     cfg.TaxRate,
		ShippingFee: cfg.ShippingFee,
	}
	authSvc := &auth.Service{Store: &auth.Repo{DB: db}, Secret: []byte(cfg.JWTSecret)}
	paySvc := &payments.Service{
		Gateway: payments.NewClient(payments.Config{
			Mode:      cfg.PayPalMode,
			ClientID:  cfg.PayPalClientID,
			Secret:    cfg.PayPalSecret,
			WebhookID: cfg.PayPalWebhookID,
			BaseURL:   cfg.PayPalBaseURL,
		}, log),
		Orders: ordersRepo,
		Log:    log,
	}

	// Router & handlers
	mw := &httpx.AuthMiddleware{Auth: authSvc}
	router := httpx.NewRouter()
	(&httpx.AuthHandler{Auth: authSvc}).Register(router)
	(&httpx.CatalogHandler{Repo: catalogRepo, Mw: mw}).Register(router)
	(&httpx.CartHandler{Service: cartSvc, Redis: rdb, Mw: mw}).Register(router)
	(&httpx.OrdersHandler{Checkout: checkoutSvc, Repo: ordersRepo, Redis: rdb, Events: events, Mw: mw}).Register(router)
	(&httpx.PaymentsHandler{Service: paySvc, Orders: ordersRepo, Redis: rdb, Events: events, Mw: mw}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("HTTP listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", "err", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	cancel() // stop producer loops; they flush what is queued
	for _, p := range producers {
		p.WaitClosed()
	}
}
