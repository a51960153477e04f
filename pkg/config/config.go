package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Payment      PaymentConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Payment.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SHOPBOT_APP_ENV" required:"true"`
	Port         string `envconfig:"SHOPBOT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"SHOPBOT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHOPBOT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SHOPBOT_DB_DSN"`
	Driver string `envconfig:"SHOPBOT_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"SHOPBOT_DB_HOST"`
	Port     int    `envconfig:"SHOPBOT_DB_PORT" default:"5432"`
	User     string `envconfig:"SHOPBOT_DB_USER"`
	Password string `envconfig:"SHOPBOT_DB_PASSWORD"`
	Name     string `envconfig:"SHOPBOT_DB_NAME"`
	SSLMode  string `envconfig:"SHOPBOT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHOPBOT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHOPBOT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHOPBOT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOPBOT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHOPBOT_REDIS_URL"`
	Address      string        `envconfig:"SHOPBOT_REDIS_ADDR"`
	Password     string        `envconfig:"SHOPBOT_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOPBOT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOPBOT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOPBOT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOPBOT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOPBOT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHOPBOT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SHOPBOT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SHOPBOT_JWT_ISSUER" default:"shopbot"`
	ExpirationMinutes int    `envconfig:"SHOPBOT_JWT_EXPIRATION_MINUTES" default:"60"`
}

// PaymentConfig carries the settings the payment verifier and the chain
// oracle receive at construction time. Nothing in the core reads these
// from ambient globals.
type PaymentConfig struct {
	ReceiveAddress     string        `envconfig:"SHOPBOT_CRYPTO_WALLET" required:"true"`
	NodeURL            string        `envconfig:"SHOPBOT_TRON_NODE_URL" default:"https://api.trongrid.io"`
	AmountTolerance    string        `envconfig:"SHOPBOT_CRYPTO_AMOUNT_TOLERANCE" default:"0.01"`
	FreshnessWindow    time.Duration `envconfig:"SHOPBOT_CRYPTO_FRESHNESS_WINDOW" default:"1h"`
	NodeRequestTimeout time.Duration `envconfig:"SHOPBOT_TRON_REQUEST_TIMEOUT" default:"10s"`
	CardNumber         string        `envconfig:"SHOPBOT_CARD_NUMBER"`
	AdminIDs           []int64       `envconfig:"SHOPBOT_ADMIN_IDS"`
}

// Tolerance parses the configured amount tolerance.
func (p PaymentConfig) Tolerance() decimal.Decimal {
	tol, err := decimal.NewFromString(strings.TrimSpace(p.AmountTolerance))
	if err != nil {
		return decimal.NewFromFloat(0.01)
	}
	return tol
}

// IsAdmin reports whether the given user id belongs to the configured admin set.
func (p PaymentConfig) IsAdmin(userID int64) bool {
	for _, id := range p.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (p PaymentConfig) validate() error {
	if strings.TrimSpace(p.ReceiveAddress) == "" {
		return fmt.Errorf("SHOPBOT_CRYPTO_WALLET is required")
	}
	if _, err := decimal.NewFromString(strings.TrimSpace(p.AmountTolerance)); err != nil {
		return fmt.Errorf("invalid SHOPBOT_CRYPTO_AMOUNT_TOLERANCE: %w", err)
	}
	return nil
}

// RateLimitConfig throttles the money-moving endpoints per user. A zero
// window or limit disables the corresponding policy.
type RateLimitConfig struct {
	PayWindow     time.Duration `envconfig:"SHOPBOT_RATE_LIMIT_PAY_WINDOW" default:"1m"`
	PayLimit      int           `envconfig:"SHOPBOT_RATE_LIMIT_PAY_LIMIT" default:"10"`
	DepositWindow time.Duration `envconfig:"SHOPBOT_RATE_LIMIT_DEPOSIT_WINDOW" default:"1m"`
	DepositLimit  int           `envconfig:"SHOPBOT_RATE_LIMIT_DEPOSIT_LIMIT" default:"5"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SHOPBOT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SHOPBOT_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"SHOPBOT_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	NotificationTopic        string `envconfig:"SHOPBOT_PUBSUB_NOTIFICATION_TOPIC" default:"shopbot-notification-events"`
	NotificationSubscription string `envconfig:"SHOPBOT_PUBSUB_NOTIFICATION_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SHOPBOT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SHOPBOT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SHOPBOT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	for envName, value := range map[string]string{
		"SHOPBOT_DB_HOST": db.Host,
		"SHOPBOT_DB_USER": db.User,
		"SHOPBOT_DB_NAME": db.Name,
	} {
		if value == "" {
			missing = append(missing, envName)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either SHOPBOT_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
