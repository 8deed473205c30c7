// Package bootstrap собирает зависимости из конфига; общий для courier-api и refresh-worker.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/BearBump/CourierSync/config"
	"github.com/BearBump/CourierSync/internal/cache/rediscache"
	"github.com/BearBump/CourierSync/internal/integrations/courier"
	"github.com/BearBump/CourierSync/internal/integrations/courier/fake"
	"github.com/BearBump/CourierSync/internal/integrations/courier/pathao"
	"github.com/BearBump/CourierSync/internal/integrations/courier/steadfast"
	"github.com/BearBump/CourierSync/internal/logger"
	"github.com/BearBump/CourierSync/internal/services/reconcile"
	"github.com/BearBump/CourierSync/internal/storage/pgorders"
	"go.uber.org/zap"
)

const (
	defaultHTTPTimeout    = 10 * time.Second
	defaultRateLimit      = 60
	defaultTrackingTopic  = "order.tracking.updated"
	defaultRefreshTopic   = "order.tracking.refresh"
	defaultPathaoBaseURL  = "https://api-hermes.pathao.com"
	defaultSteadfastURL   = "https://portal.packzy.com/api/v1"
	defaultCacheTTL       = 5 * time.Minute
	postgresRetryInterval = time.Second
)

// NewCourierRegistry регистрирует только курьеров с заполненными ключами.
func NewCourierRegistry(cfg config.CouriersConfig) *courier.Registry {
	timeout := time.Duration(cfg.HTTPTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	httpc := courier.NewHTTPClient(timeout)

	var clients []courier.Client
	if cfg.Pathao.Enabled() {
		base := cfg.Pathao.BaseURL
		if base == "" {
			base = defaultPathaoBaseURL
		}
		clients = append(clients, pathao.New(base, pathao.Credentials{
			ClientID:     cfg.Pathao.ClientID,
			ClientSecret: cfg.Pathao.ClientSecret,
			Username:     cfg.Pathao.Username,
			Password:     cfg.Pathao.Password,
			StoreID:      cfg.Pathao.StoreID,
		}, httpc))
	}
	if cfg.Steadfast.Enabled() {
		base := cfg.Steadfast.BaseURL
		if base == "" {
			base = defaultSteadfastURL
		}
		clients = append(clients, steadfast.New(base, cfg.Steadfast.APIKey, cfg.Steadfast.SecretKey, httpc))
	}
	if cfg.FakeEnabled {
		clients = append(clients, fake.New())
	}

	reg := courier.NewRegistry(clients...)
	logger.Get().Info("couriers registered", zap.Strings("codes", reg.Codes()))
	return reg
}

func WebhookSecrets(cfg config.CouriersConfig) map[string]string {
	return map[string]string{
		courier.CodePathao:    cfg.Pathao.WebhookSecret,
		courier.CodeSteadfast: cfg.Steadfast.WebhookSecret,
	}
}

func TrackingTopic(cfg config.KafkaConfig) string {
	if cfg.TrackingUpdatedTopic == "" {
		return defaultTrackingTopic
	}
	return cfg.TrackingUpdatedTopic
}

func RefreshTopic(cfg config.KafkaConfig) string {
	if cfg.RefreshRequestsTopic == "" {
		return defaultRefreshTopic
	}
	return cfg.RefreshRequestsTopic
}

func RedisOptions(cfg config.RedisConfig) rediscache.Options {
	return rediscache.Options{Addr: cfg.Addr(), Password: cfg.Password, DB: cfg.DB}
}

// NewService собирает reconcile.Service; cache и publisher опциональны.
func NewService(cfg *config.Config, repo reconcile.Repository, reg *courier.Registry, rc *rediscache.RedisCache, pub reconcile.Publisher) *reconcile.Service {
	svc := reconcile.New(repo, reg)
	if rc != nil {
		ttl := time.Duration(cfg.App.TrackingCacheTTLSeconds) * time.Second
		if ttl <= 0 {
			ttl = defaultCacheTTL
		}
		perMinute := int64(cfg.Couriers.RateLimitPerMinute)
		if perMinute <= 0 {
			perMinute = defaultRateLimit
		}
		svc = svc.WithCache(rc, ttl).
			WithRateLimit(rediscache.NewRateLimiter(rc.Client()), perMinute)
	}
	if pub != nil {
		svc = svc.WithPublisher(pub, TrackingTopic(cfg.Kafka))
	}
	return svc
}

// OpenPostgresWithRetry ждёт, пока поднимется postgres (docker-compose стартует всё разом).
func OpenPostgresWithRetry(ctx context.Context, connString string, wait time.Duration) (*pgorders.Storage, error) {
	deadline := time.Now().Add(wait)
	var lastErr error
	for {
		st, err := pgorders.New(ctx, connString)
		if err == nil {
			return st, nil
		}
		lastErr = err
		logger.Get().Warn("postgres not ready", zap.Error(err))
		if time.Now().Add(postgresRetryInterval).After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(postgresRetryInterval):
		}
	}
	return nil, fmt.Errorf("postgres is not ready after %s: %w", wait, lastErr)
}
