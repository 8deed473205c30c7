package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/caarlos0/env"
	"go.yaml.in/yaml/v4"
)

type Config struct {
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Couriers CouriersConfig `yaml:"couriers"`
	Worker   WorkerConfig   `yaml:"worker"`
}

type AppConfig struct {
	Env                     string `yaml:"env"`
	LogLevel                string `yaml:"log_level"`
	HTTPAddr                string `yaml:"http_addr"`
	TrackingCacheTTLSeconds int    `yaml:"tracking_cache_ttl_seconds"`
}

type DatabaseConfig struct {
	// DSN, если задан, важнее host/port/...
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                 string   `yaml:"host"`
	Port                 int      `yaml:"port"`
	Brokers              []string `yaml:"brokers"`
	TrackingUpdatedTopic string   `yaml:"tracking_updated_topic"`
	RefreshRequestsTopic string   `yaml:"refresh_requests_topic"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type CouriersConfig struct {
	HTTPTimeoutSeconds int             `yaml:"http_timeout_seconds"`
	RateLimitPerMinute int             `yaml:"rate_limit_per_minute"`
	FakeEnabled        bool            `yaml:"fake_enabled"`
	Pathao             PathaoConfig    `yaml:"pathao"`
	Steadfast          SteadfastConfig `yaml:"steadfast"`
}

type PathaoConfig struct {
	BaseURL       string `yaml:"base_url"`
	ClientID      string `yaml:"client_id"`
	ClientSecret  string `yaml:"client_secret"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	StoreID       int    `yaml:"store_id"`
	WebhookSecret string `yaml:"webhook_secret"`
}

// Enabled: без client_id клиент не регистрируется.
func (p PathaoConfig) Enabled() bool { return p.ClientID != "" }

type SteadfastConfig struct {
	BaseURL       string `yaml:"base_url"`
	APIKey        string `yaml:"api_key"`
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
}

func (s SteadfastConfig) Enabled() bool { return s.APIKey != "" }

type WorkerConfig struct {
	HTTPAddr      string `yaml:"http_addr"`
	ConsumerGroup string `yaml:"consumer_group"`
}

// envOverrides: секреты и адреса, которые удобнее передавать через окружение.
type envOverrides struct {
	AppEnv   string `env:"APP_ENV"`
	LogLevel string `env:"LOG_LEVEL"`
	HTTPAddr string `env:"HTTP_ADDR"`

	DatabaseURI string `env:"DATABASE_URI"`
	DBPassword  string `env:"DB_PASSWORD"`

	KafkaBrokers  string `env:"KAFKA_BROKERS"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	PathaoClientID      string `env:"PATHAO_CLIENT_ID"`
	PathaoClientSecret  string `env:"PATHAO_CLIENT_SECRET"`
	PathaoUsername      string `env:"PATHAO_USERNAME"`
	PathaoPassword      string `env:"PATHAO_PASSWORD"`
	PathaoWebhookSecret string `env:"PATHAO_WEBHOOK_SECRET"`

	SteadfastAPIKey        string `env:"STEADFAST_API_KEY"`
	SteadfastSecretKey     string `env:"STEADFAST_SECRET_KEY"`
	SteadfastWebhookSecret string `env:"STEADFAST_WEBHOOK_SECRET"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	if err := config.applyEnv(); err != nil {
		return nil, fmt.Errorf("failed to parse env: %w", err)
	}
	return &config, nil
}

func (c *Config) applyEnv() error {
	var ov envOverrides
	if err := env.Parse(&ov); err != nil {
		return err
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.App.Env, ov.AppEnv)
	set(&c.App.LogLevel, ov.LogLevel)
	set(&c.App.HTTPAddr, ov.HTTPAddr)
	set(&c.Database.DSN, ov.DatabaseURI)
	set(&c.Database.Password, ov.DBPassword)
	set(&c.Redis.Password, ov.RedisPassword)
	set(&c.Couriers.Pathao.ClientID, ov.PathaoClientID)
	set(&c.Couriers.Pathao.ClientSecret, ov.PathaoClientSecret)
	set(&c.Couriers.Pathao.Username, ov.PathaoUsername)
	set(&c.Couriers.Pathao.Password, ov.PathaoPassword)
	set(&c.Couriers.Pathao.WebhookSecret, ov.PathaoWebhookSecret)
	set(&c.Couriers.Steadfast.APIKey, ov.SteadfastAPIKey)
	set(&c.Couriers.Steadfast.SecretKey, ov.SteadfastSecretKey)
	set(&c.Couriers.Steadfast.WebhookSecret, ov.SteadfastWebhookSecret)

	if ov.KafkaBrokers != "" {
		c.Kafka.Brokers = splitList(ov.KafkaBrokers)
	}
	if ov.RedisAddr != "" {
		host, port, ok := strings.Cut(ov.RedisAddr, ":")
		c.Redis.Host = host
		if ok {
			var p int
			if _, err := fmt.Sscanf(port, "%d", &p); err != nil {
				return fmt.Errorf("REDIS_ADDR: bad port %q", port)
			}
			c.Redis.Port = p
		}
	}
	return nil
}

// ConnString собирает DSN для pgx.
func (d DatabaseConfig) ConnString() string {
	if d.DSN != "" {
		return d.DSN
	}
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.Username, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.DBName,
		RawQuery: "sslmode=" + sslMode,
	}
	return u.String()
}

func (k KafkaConfig) BrokerList() []string {
	if len(k.Brokers) > 0 {
		return k.Brokers
	}
	return []string{fmt.Sprintf("%s:%d", k.Host, k.Port)}
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
