package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Redis        RedisConfig
	JWT          JWTConfig
	OrderService OrderServiceConfig
	Budget       BudgetConfig
	Inflight     InflightConfig
	HRSync       HRSyncConfig
	Orders       OrdersConfig
	Currency     CurrencyConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.OrderService.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Inflight.validate(cfg.OrderService.Timeout); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PERKSHOP_APP_ENV" required:"true"`
	Port         string `envconfig:"PERKSHOP_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PERKSHOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PERKSHOP_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"PERKSHOP_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type RedisConfig struct {
	URL          string        `envconfig:"PERKSHOP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PERKSHOP_REDIS_ADDR"`
	Password     string        `envconfig:"PERKSHOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"PERKSHOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PERKSHOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PERKSHOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PERKSHOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PERKSHOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PERKSHOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies the access tokens minted by the identity provider.
type JWTConfig struct {
	Secret            string `envconfig:"PERKSHOP_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PERKSHOP_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PERKSHOP_JWT_EXPIRATION_MINUTES" default:"60"`
}

// OrderServiceConfig points at the upstream order-service that owns carts, orders and budgets.
type OrderServiceConfig struct {
	BaseURL string        `envconfig:"PERKSHOP_ORDER_SERVICE_URL" required:"true"`
	Timeout time.Duration `envconfig:"PERKSHOP_ORDER_SERVICE_TIMEOUT" default:"10s"`

	BreakerMaxRequests  uint32        `envconfig:"PERKSHOP_ORDER_SERVICE_BREAKER_MAX_REQUESTS" default:"3"`
	BreakerInterval     time.Duration `envconfig:"PERKSHOP_ORDER_SERVICE_BREAKER_INTERVAL" default:"60s"`
	BreakerOpenTimeout  time.Duration `envconfig:"PERKSHOP_ORDER_SERVICE_BREAKER_OPEN_TIMEOUT" default:"30s"`
	BreakerFailureRatio float64       `envconfig:"PERKSHOP_ORDER_SERVICE_BREAKER_FAILURE_RATIO" default:"0.6"`
	BreakerMinRequests  uint32        `envconfig:"PERKSHOP_ORDER_SERVICE_BREAKER_MIN_REQUESTS" default:"10"`
}

func (o OrderServiceConfig) validate() error {
	parsed, err := url.Parse(strings.TrimSpace(o.BaseURL))
	if err != nil {
		return fmt.Errorf("parsing %s: %w", EnvOrderServiceURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) url", EnvOrderServiceURL)
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvOrderServiceTimeout)
	}
	return nil
}

type BudgetConfig struct {
	CacheTTL time.Duration `envconfig:"PERKSHOP_BUDGET_CACHE_TTL" default:"30s"`
}

// guardedUpstreamCalls is the most order-service calls made while one busy flag is
// held (checkout: cart, budget, create order).
const guardedUpstreamCalls = 3

type InflightConfig struct {
	GuardTTL time.Duration `envconfig:"PERKSHOP_INFLIGHT_GUARD_TTL" default:"45s"`
}

// validate keeps a busy flag alive for longer than the guarded work can take, so a
// slow holder cannot lose its flag to a second request mid-flight.
func (i InflightConfig) validate(upstreamTimeout time.Duration) error {
	if floor := guardedUpstreamCalls * upstreamTimeout; i.GuardTTL <= floor {
		return fmt.Errorf("%s (%s) must exceed %d x %s (%s)",
			EnvInflightGuardTTL, i.GuardTTL, guardedUpstreamCalls, EnvOrderServiceTimeout, floor)
	}
	return nil
}

// HRSyncConfig gates the external HR-system sync actions.
type HRSyncConfig struct {
	Enabled bool `envconfig:"PERKSHOP_HRSYNC_ENABLED" default:"true"`
	// RemovalRequiresAdmin restricts sync removal to the strict admin role.
	RemovalRequiresAdmin bool `envconfig:"PERKSHOP_HRSYNC_REMOVAL_REQUIRES_ADMIN" default:"true"`
}

// OrdersConfig lists the operations that require the strict admin role
// rather than admin-or-manager (e.g. "cancel,approve_return").
type OrdersConfig struct {
	StrictAdminActions []string `envconfig:"PERKSHOP_STRICT_ADMIN_ACTIONS"`
}

type CurrencyConfig struct {
	Code string `envconfig:"PERKSHOP_CURRENCY" default:"EUR"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"PERKSHOP_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"PERKSHOP_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	AuditTopic string `envconfig:"PERKSHOP_PUBSUB_AUDIT_TOPIC" default:"perkshop-order-audit"`
}

// AuditEnabled reports whether transitions should be published to Pub/Sub.
func (c *Config) AuditEnabled() bool {
	return strings.TrimSpace(c.GCP.ProjectID) != "" && strings.TrimSpace(c.PubSub.AuditTopic) != ""
}
