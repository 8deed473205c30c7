package main

import (
	"context"
	"io"
	"time"

	"github.com/BearBump/CourierSync/config"
	"github.com/BearBump/CourierSync/internal/bootstrap"
	"github.com/BearBump/CourierSync/internal/broker/kafka"
	"github.com/BearBump/CourierSync/internal/cache/rediscache"
	"github.com/BearBump/CourierSync/internal/integrations/courier"
	"github.com/BearBump/CourierSync/internal/logger"
	"github.com/BearBump/CourierSync/internal/services/reconcile"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type messageConsumer interface {
	Consume(ctx context.Context, handler kafka.Handler) error
	Close() error
}

type workerFactories struct {
	newStorage  func(ctx context.Context, cfg *config.Config) (repo reconcile.Repository, closeFn func(), err error)
	newCache    func(cfg *config.Config) *rediscache.RedisCache
	newProducer func(cfg *config.Config) reconcile.Publisher
	newConsumer func(cfg *config.Config) messageConsumer
	newCouriers func(cfg *config.Config) *courier.Registry
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(ctx context.Context, cfg *config.Config) (reconcile.Repository, func(), error) {
			st, err := bootstrap.OpenPostgresWithRetry(ctx, cfg.Database.ConnString(), 60*time.Second)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newCache: func(cfg *config.Config) *rediscache.RedisCache {
			return rediscache.New(bootstrap.RedisOptions(cfg.Redis))
		},
		newProducer: func(cfg *config.Config) reconcile.Publisher {
			return kafka.NewProducer(cfg.Kafka.BrokerList())
		},
		newConsumer: func(cfg *config.Config) messageConsumer {
			return kafka.NewConsumer(cfg.Kafka.BrokerList(), bootstrap.RefreshTopic(cfg.Kafka), consumerGroup(cfg))
		},
		newCouriers: func(cfg *config.Config) *courier.Registry {
			return bootstrap.NewCourierRegistry(cfg.Couriers)
		},
	}
}

func consumerGroup(cfg *config.Config) string {
	if cfg.Worker.ConsumerGroup == "" {
		return "refresh-worker"
	}
	return cfg.Worker.ConsumerGroup
}

// RunRefreshWorker крутит consumer и admin HTTP, пока не отменён ctx
// или consumer не остановился на ошибке хранилища.
func RunRefreshWorker(ctx context.Context, cfg *config.Config, f workerFactories, httpOpts workerHTTPOpts) error {
	repo, closeFn, err := f.newStorage(ctx, cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	var rc *rediscache.RedisCache
	if f.newCache != nil {
		rc = f.newCache(cfg)
	}
	if rc != nil {
		defer func() { _ = rc.Close() }()
	}
	var pub reconcile.Publisher
	if f.newProducer != nil {
		pub = f.newProducer(cfg)
	}
	if c, ok := pub.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	svc := bootstrap.NewService(cfg, repo, f.newCouriers(cfg), rc, pub)
	w := newRefreshWorker(svc)

	consumer := f.newConsumer(cfg)
	defer func() { _ = consumer.Close() }()

	httpOpts.worker = w
	httpOpts.cfg = cfg

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Get().Info("refresh consumer started",
			zap.String("topic", bootstrap.RefreshTopic(cfg.Kafka)),
			zap.String("group", consumerGroup(cfg)),
		)
		return consumer.Consume(gctx, w.Handle)
	})
	if !httpOpts.disabled {
		g.Go(func() error {
			return runWorkerHTTPServer(gctx, httpOpts)
		})
	}
	return g.Wait()
}
