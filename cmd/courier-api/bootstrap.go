package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/CourierSync/config"
	"github.com/BearBump/CourierSync/internal/bootstrap"
	"github.com/BearBump/CourierSync/internal/broker/kafka"
	"github.com/BearBump/CourierSync/internal/cache/rediscache"
	"github.com/BearBump/CourierSync/internal/integrations/courier"
	"github.com/BearBump/CourierSync/internal/logger"
	"github.com/BearBump/CourierSync/internal/services/reconcile"
	"github.com/BearBump/CourierSync/internal/storage/pgorders"
)

type courierAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     courierAPIOpts
	svc      *reconcile.Service
	couriers *courier.Registry

	store    *pgorders.Storage
	cache    *rediscache.RedisCache
	producer *kafka.Producer
}

func mustBootstrapCourierAPI() *courierAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}
	if err := logger.Init(cfg.App.Env, cfg.App.LogLevel); err != nil {
		panic(fmt.Sprintf("init logger: %v", err))
	}

	httpAddr := cfg.App.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	st, err := bootstrap.OpenPostgresWithRetry(ctx, cfg.Database.ConnString(), 60*time.Second)
	if err != nil {
		cancel()
		panic(err)
	}

	rc := rediscache.New(bootstrap.RedisOptions(cfg.Redis))
	producer := kafka.NewProducer(cfg.Kafka.BrokerList())
	couriers := bootstrap.NewCourierRegistry(cfg.Couriers)
	svc := bootstrap.NewService(cfg, st, couriers, rc, producer)

	return &courierAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: courierAPIOpts{
			httpAddr:       httpAddr,
			swaggerPath:    swaggerPath,
			webhookSecrets: bootstrap.WebhookSecrets(cfg.Couriers),
			ready:          st.Ping,
			refreshQueue:   producer,
			refreshTopic:   bootstrap.RefreshTopic(cfg.Kafka),
		},
		svc:      svc,
		couriers: couriers,
		store:    st,
		cache:    rc,
		producer: producer,
	}
}

func (a *courierAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.producer != nil {
		_ = a.producer.Close()
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
	logger.Sync()
}

func (a *courierAPIApp) Run() error {
	return runCourierAPI(a.ctx, a.opts, a.svc, a.couriers)
}
