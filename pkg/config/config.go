package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Checkout  CheckoutConfig
	GuestCart GuestCartConfig
	Geocoding GeocodingConfig
	Delivery  DeliveryConfig
	Square    SquareConfig
	CORS      CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FROSTLINE_APP_ENV" required:"true"`
	Port         string `envconfig:"FROSTLINE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FROSTLINE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FROSTLINE_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"FROSTLINE_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"FROSTLINE_DB_DSN"`
	Driver string `envconfig:"FROSTLINE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FROSTLINE_DB_HOST"`
	LegacyPort     int    `envconfig:"FROSTLINE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FROSTLINE_DB_USER"`
	LegacyPassword string `envconfig:"FROSTLINE_DB_PASSWORD"`
	LegacyName     string `envconfig:"FROSTLINE_DB_NAME"`
	LegacySSLMode  string `envconfig:"FROSTLINE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FROSTLINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FROSTLINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FROSTLINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FROSTLINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FROSTLINE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FROSTLINE_REDIS_ADDR"`
	Password     string        `envconfig:"FROSTLINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"FROSTLINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FROSTLINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FROSTLINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FROSTLINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FROSTLINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FROSTLINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"FROSTLINE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"FROSTLINE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"FROSTLINE_JWT_EXPIRATION_MINUTES" required:"true"`
}

// CheckoutConfig tunes the saga: money policy plus the lifetimes of the
// ephemeral stage payloads and the completion latch.
type CheckoutConfig struct {
	TaxRate            string        `envconfig:"FROSTLINE_CHECKOUT_TAX_RATE" default:"0"`
	Currency           string        `envconfig:"FROSTLINE_CHECKOUT_CURRENCY" default:"USD"`
	HandoffTTL         time.Duration `envconfig:"FROSTLINE_CHECKOUT_HANDOFF_TTL" default:"24h"`
	QuoteMaxAge        time.Duration `envconfig:"FROSTLINE_CHECKOUT_QUOTE_MAX_AGE" default:"10m"`
	CompletionLatchTTL time.Duration `envconfig:"FROSTLINE_CHECKOUT_COMPLETION_LATCH_TTL" default:"168h"`
	SuccessRedirectURL string        `envconfig:"FROSTLINE_CHECKOUT_SUCCESS_REDIRECT_URL"`
	CancelRedirectURL  string        `envconfig:"FROSTLINE_CHECKOUT_CANCEL_REDIRECT_URL"`
}

func (c CheckoutConfig) validate() error {
	rate := strings.TrimSpace(c.TaxRate)
	if rate == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(rate, 64)
	if err != nil {
		return fmt.Errorf("invalid tax rate %q: %w", c.TaxRate, err)
	}
	if parsed < 0 || parsed >= 1 {
		return fmt.Errorf("tax rate %q must be in [0, 1)", c.TaxRate)
	}
	return nil
}

type GuestCartConfig struct {
	TTL time.Duration `envconfig:"FROSTLINE_GUEST_CART_TTL" default:"720h"`
}

type GeocodingConfig struct {
	APIKey  string `envconfig:"FROSTLINE_GEOCODING_API_KEY"`
	BaseURL string `envconfig:"FROSTLINE_GEOCODING_BASE_URL"`
	Region  string `envconfig:"FROSTLINE_GEOCODING_REGION"`
}

type DeliveryConfig struct {
	BaseURL string `envconfig:"FROSTLINE_DELIVERY_BASE_URL"`
	APIKey  string `envconfig:"FROSTLINE_DELIVERY_API_KEY"`
}

type SquareConfig struct {
	AccessToken string `envconfig:"FROSTLINE_SQUARE_ACCESS_TOKEN"`
	Env         string `envconfig:"FROSTLINE_SQUARE_ENV" default:"sandbox"`
	LocationID  string `envconfig:"FROSTLINE_SQUARE_LOCATION_ID"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"FROSTLINE_CORS_ALLOWED_ORIGINS" default:"*"`
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
