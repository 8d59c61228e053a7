// Package config reads every service setting from FARMLABOR_* environment
// variables. Load fails on the first pass with all problems it found.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Assignment   AssignmentConfig
	Notifier     NotifierConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.resolve(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) resolve() error {
	return multierr.Combine(
		c.DB.resolveDSN(),
		c.JWT.validate(c.App.IsProd()),
		c.Assignment.validate(),
		c.Outbox.validate(),
		c.Cron.validate(),
	)
}

type AppConfig struct {
	Env          string   `envconfig:"FARMLABOR_APP_ENV" required:"true"`
	Port         string   `envconfig:"FARMLABOR_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"FARMLABOR_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"FARMLABOR_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"FARMLABOR_CORS_ORIGINS" default:"http://localhost:3000,https://app.farmlabor.in,https://admin.farmlabor.in"`
}

func (a AppConfig) IsDev() bool  { return strings.EqualFold(a.Env, AppEnvDev) }
func (a AppConfig) IsProd() bool { return strings.EqualFold(a.Env, AppEnvProd) }

// ServiceConfig.Kind is overwritten by each binary at startup.
type ServiceConfig struct {
	Kind string `envconfig:"FARMLABOR_SERVICE_KIND" default:"api"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FARMLABOR_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FARMLABOR_REDIS_ADDR"`
	Password     string        `envconfig:"FARMLABOR_REDIS_PASSWORD"`
	DB           int           `envconfig:"FARMLABOR_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FARMLABOR_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FARMLABOR_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FARMLABOR_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FARMLABOR_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FARMLABOR_REDIS_WRITE_TIMEOUT" default:"5s"`
}

const minProdSecretBytes = 32

type JWTConfig struct {
	Secret            string `envconfig:"FARMLABOR_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"FARMLABOR_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"FARMLABOR_JWT_EXPIRATION_MINUTES" default:"60"`
}

func (j JWTConfig) validate(prod bool) error {
	var errs error
	if j.ExpirationMinutes <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%s must be positive", EnvJWTExpMins))
	}
	if prod && len(j.Secret) < minProdSecretBytes {
		errs = multierr.Append(errs, fmt.Errorf("%s must be at least %d bytes in prod", EnvJWTSecret, minProdSecretBytes))
	}
	return errs
}

// RateLimitConfig bounds how often a single caller can post offer decisions.
type RateLimitConfig struct {
	DecisionWindow    time.Duration `envconfig:"FARMLABOR_RATE_LIMIT_DECISION_WINDOW" default:"1m"`
	DecisionUserLimit int           `envconfig:"FARMLABOR_RATE_LIMIT_DECISION_USER_LIMIT" default:"30"`
	DecisionIPLimit   int           `envconfig:"FARMLABOR_RATE_LIMIT_DECISION_IP_LIMIT" default:"120"`
}

type FeatureFlagsConfig struct {
	AutoMigrate      bool `envconfig:"FARMLABOR_AUTO_MIGRATE" default:"false"`
	InProcessMonitor bool `envconfig:"FARMLABOR_IN_PROCESS_TIMEOUT_MONITOR" default:"true"`
}

// AssignmentConfig holds the decision windows. Orders use one window for
// auto and manual assignment; transport jobs use their own.
type AssignmentConfig struct {
	OrderOfferWindow     time.Duration `envconfig:"FARMLABOR_ASSIGNMENT_ORDER_WINDOW" default:"10m"`
	TransportOfferWindow time.Duration `envconfig:"FARMLABOR_ASSIGNMENT_TRANSPORT_WINDOW" default:"5m"`
	TimeoutGrace         time.Duration `envconfig:"FARMLABOR_ASSIGNMENT_TIMEOUT_GRACE" default:"2s"`
}

func (a AssignmentConfig) validate() error {
	var errs error
	if a.OrderOfferWindow <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%s must be positive", EnvOrderOfferWindow))
	}
	if a.TransportOfferWindow <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%s must be positive", EnvTransportOfferWindow))
	}
	if a.TimeoutGrace < 0 {
		errs = multierr.Append(errs, fmt.Errorf("%s must not be negative", EnvTimeoutGrace))
	}
	return errs
}

type NotifierConfig struct {
	BaseURL    string        `envconfig:"FARMLABOR_NOTIFIER_BASE_URL"`
	APIKey     string        `envconfig:"FARMLABOR_NOTIFIER_API_KEY"`
	SenderName string        `envconfig:"FARMLABOR_NOTIFIER_SENDER" default:"FarmLabor"`
	Timeout    time.Duration `envconfig:"FARMLABOR_NOTIFIER_TIMEOUT" default:"10s"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"FARMLABOR_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"FARMLABOR_GCP_PROJECT_ID" required:"true"`
}

type PubSubConfig struct {
	AssignmentTopic          string `envconfig:"FARMLABOR_PUBSUB_ASSIGNMENT_TOPIC" default:"fl-assignment-events"`
	NotificationSubscription string `envconfig:"FARMLABOR_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"FARMLABOR_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"FARMLABOR_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"FARMLABOR_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"FARMLABOR_OUTBOX_RETENTION" default:"720h"`
}

func (o OutboxConfig) validate() error {
	if o.BatchSize <= 0 || o.MaxAttempts <= 0 {
		return fmt.Errorf("%s and %s must be positive", EnvOutboxBatchSize, EnvOutboxMaxAttempts)
	}
	return nil
}

type CronConfig struct {
	Interval time.Duration `envconfig:"FARMLABOR_CRON_INTERVAL" default:"1m"`
	LockTTL  time.Duration `envconfig:"FARMLABOR_CRON_LOCK_TTL" default:"5m"`
}

// validate requires the lock to outlive one cycle so a slow run is not
// joined by a second replica.
func (c CronConfig) validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%s must be positive", EnvCronInterval)
	}
	if c.LockTTL < c.Interval {
		return fmt.Errorf("%s must be at least %s", EnvCronLockTTL, EnvCronInterval)
	}
	return nil
}
