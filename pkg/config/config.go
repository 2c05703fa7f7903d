package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "MELDAVIS"

	AppEnvDev  = "dev"
	AppEnvProd = "production"

	EnvAppEnv     = "MELDAVIS_APP_ENV"
	EnvPort       = "MELDAVIS_APP_PORT"
	EnvDBDSN      = "MELDAVIS_DB_DSN"
	EnvDBHost     = "MELDAVIS_DB_HOST"
	EnvDBUser     = "MELDAVIS_DB_USER"
	EnvDBName     = "MELDAVIS_DB_NAME"
	EnvRedisURL   = "MELDAVIS_REDIS_URL"
	EnvJWTSecret  = "MELDAVIS_JWT_SECRET"
	EnvJWTIssuer  = "MELDAVIS_JWT_ISSUER"
	EnvJWTExpMins = "MELDAVIS_JWT_EXPIRATION_MINUTES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	Webhook      WebhookConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MELDAVIS_APP_ENV" required:"true"`
	Port         string `envconfig:"MELDAVIS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MELDAVIS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MELDAVIS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"MELDAVIS_DB_DSN"`
	Driver string `envconfig:"MELDAVIS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MELDAVIS_DB_HOST"`
	LegacyPort     int    `envconfig:"MELDAVIS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MELDAVIS_DB_USER"`
	LegacyPassword string `envconfig:"MELDAVIS_DB_PASSWORD"`
	LegacyName     string `envconfig:"MELDAVIS_DB_NAME"`
	LegacySSLMode  string `envconfig:"MELDAVIS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MELDAVIS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MELDAVIS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MELDAVIS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MELDAVIS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MELDAVIS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MELDAVIS_REDIS_ADDR"`
	Password     string        `envconfig:"MELDAVIS_REDIS_PASSWORD"`
	DB           int           `envconfig:"MELDAVIS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MELDAVIS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MELDAVIS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MELDAVIS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MELDAVIS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MELDAVIS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MELDAVIS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MELDAVIS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MELDAVIS_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MELDAVIS_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey string `envconfig:"MELDAVIS_STRIPE_API_KEY"`
	// Secret is the webhook signing secret. When empty the webhook endpoint
	// falls back to parsing unverified JSON (local development only).
	Secret string `envconfig:"MELDAVIS_STRIPE_SECRET"`
	Env    string `envconfig:"MELDAVIS_STRIPE_ENV" default:"test"`

	LineItemFetchLimit int64 `envconfig:"MELDAVIS_STRIPE_LINE_ITEM_LIMIT" default:"100"`
}

type WebhookConfig struct {
	IdempotencyTTL time.Duration `envconfig:"MELDAVIS_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`

	// Per-IP fixed window on the public webhook route. A zero limit disables
	// throttling.
	RateLimitPerIP  int           `envconfig:"MELDAVIS_WEBHOOK_RATE_LIMIT_PER_IP" default:"300"`
	RateLimitWindow time.Duration `envconfig:"MELDAVIS_WEBHOOK_RATE_LIMIT_WINDOW" default:"1m"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
