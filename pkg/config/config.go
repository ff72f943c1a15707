package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "AUDIOMART"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "AUDIOMART_DB_DSN"
	EnvDBHost = "AUDIOMART_DB_HOST"
	EnvDBUser = "AUDIOMART_DB_USER"
	EnvDBName = "AUDIOMART_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Pricing      PricingConfig
	Cart         CartConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"AUDIOMART_APP_ENV" required:"true"`
	Port         string `envconfig:"AUDIOMART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"AUDIOMART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"AUDIOMART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"AUDIOMART_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"AUDIOMART_DB_DSN"`
	Driver string `envconfig:"AUDIOMART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"AUDIOMART_DB_HOST"`
	LegacyPort     int    `envconfig:"AUDIOMART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"AUDIOMART_DB_USER"`
	LegacyPassword string `envconfig:"AUDIOMART_DB_PASSWORD"`
	LegacyName     string `envconfig:"AUDIOMART_DB_NAME"`
	LegacySSLMode  string `envconfig:"AUDIOMART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AUDIOMART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AUDIOMART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AUDIOMART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AUDIOMART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AUDIOMART_REDIS_URL" required:"true"`
	Password     string        `envconfig:"AUDIOMART_REDIS_PASSWORD"`
	DB           int           `envconfig:"AUDIOMART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AUDIOMART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AUDIOMART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AUDIOMART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AUDIOMART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AUDIOMART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"AUDIOMART_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"AUDIOMART_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"AUDIOMART_JWT_EXPIRATION_MINUTES" default:"60"`
}

// AccessTokenTTL returns the access token lifetime configured in minutes.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PricingConfig struct {
	TaxRateBps             int    `envconfig:"AUDIOMART_PRICING_TAX_RATE_BPS" default:"1000"`
	FreeShippingThreshold  int64  `envconfig:"AUDIOMART_PRICING_FREE_SHIPPING_THRESHOLD" default:"500000"`
	FlatShippingFee        int64  `envconfig:"AUDIOMART_PRICING_FLAT_SHIPPING_FEE" default:"30000"`
	Currency               string `envconfig:"AUDIOMART_PRICING_CURRENCY" default:"VND"`
	LowStockDefaultMinimum int    `envconfig:"AUDIOMART_PRICING_LOW_STOCK_THRESHOLD" default:"5"`
}

type CartConfig struct {
	GuestTTL time.Duration `envconfig:"AUDIOMART_CART_GUEST_TTL" default:"168h"`
	PurgeAge time.Duration `envconfig:"AUDIOMART_CART_PURGE_AGE" default:"720h"`
}

type CronConfig struct {
	TickInterval time.Duration `envconfig:"AUDIOMART_CRON_TICK_INTERVAL" default:"1m"`
	LockTTL      time.Duration `envconfig:"AUDIOMART_CRON_LOCK_TTL" default:"5m"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"AUDIOMART_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"AUDIOMART_AUTO_MIGRATE" default:"false"`
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
