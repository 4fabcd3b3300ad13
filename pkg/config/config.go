package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App       AppConfig
	Commerce  CommerceConfig
	Redis     RedisConfig
	Journal   JournalConfig
	JWT       JWTConfig
	GuestCart GuestCartConfig
	Square    SquareConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Journal.validate(); err != nil {
		return nil, err
	}
	if err := cfg.GuestCart.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// CommerceConfig points the gateway at the remote commerce backend.
type CommerceConfig struct {
	BaseURL        string        `envconfig:"STOREFRONT_COMMERCE_BASE_URL" required:"true"`
	RequestTimeout time.Duration `envconfig:"STOREFRONT_COMMERCE_TIMEOUT" default:"10s"`
	// Retries apply to idempotent reads only; mutations are never retried.
	ReadRetries      int           `envconfig:"STOREFRONT_COMMERCE_READ_RETRIES" default:"2"`
	ReadRetryBackoff time.Duration `envconfig:"STOREFRONT_COMMERCE_READ_BACKOFF" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JournalConfig configures the local payment journal database.
type JournalConfig struct {
	Driver          string        `envconfig:"STOREFRONT_JOURNAL_DRIVER" default:"sqlite"`
	DSN             string        `envconfig:"STOREFRONT_JOURNAL_DSN" default:"storefront-journal.db"`
	MaxOpenConns    int           `envconfig:"STOREFRONT_JOURNAL_MAX_OPEN_CONNS" default:"5"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_JOURNAL_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_JOURNAL_CONN_MAX_LIFETIME" default:"1h"`
}

func (j JournalConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(j.Driver)) {
	case "sqlite", "postgres":
		return nil
	default:
		return fmt.Errorf("journal driver must be sqlite or postgres, got %q", j.Driver)
	}
}

type JWTConfig struct {
	Secret string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"STOREFRONT_JWT_ISSUER" required:"true"`
}

// GuestCartConfig selects where anonymous cart snapshots persist.
type GuestCartConfig struct {
	Storage string        `envconfig:"STOREFRONT_GUEST_CART_STORAGE" default:"redis"`
	TTL     time.Duration `envconfig:"STOREFRONT_GUEST_CART_TTL" default:"720h"`
	// FileDir holds one JSON file per guest token when Storage is "file".
	FileDir string `envconfig:"STOREFRONT_GUEST_CART_DIR" default:"guest-carts"`
}

func (g GuestCartConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(g.Storage)) {
	case "redis", "file":
		return nil
	default:
		return fmt.Errorf("guest cart storage must be redis or file, got %q", g.Storage)
	}
}

type SquareConfig struct {
	AccessToken string `envconfig:"STOREFRONT_SQUARE_ACCESS_TOKEN"`
	Environment string `envconfig:"STOREFRONT_SQUARE_ENV" default:"sandbox"`
	LocationID  string `envconfig:"STOREFRONT_SQUARE_LOCATION_ID"`
	Currency    string `envconfig:"STOREFRONT_SQUARE_CURRENCY" default:"KRW"`
}
