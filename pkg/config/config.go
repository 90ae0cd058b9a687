package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	Guest         GuestConfig
	Stripe        StripeConfig
	Checkout      CheckoutConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
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
	Env          string `envconfig:"STRIDE_APP_ENV" required:"true"`
	Port         string `envconfig:"STRIDE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STRIDE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STRIDE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"STRIDE_DB_DSN"`
	Driver string `envconfig:"STRIDE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STRIDE_DB_HOST"`
	LegacyPort     int    `envconfig:"STRIDE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STRIDE_DB_USER"`
	LegacyPassword string `envconfig:"STRIDE_DB_PASSWORD"`
	LegacyName     string `envconfig:"STRIDE_DB_NAME"`
	LegacySSLMode  string `envconfig:"STRIDE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STRIDE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STRIDE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STRIDE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STRIDE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STRIDE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STRIDE_REDIS_ADDR"`
	Password     string        `envconfig:"STRIDE_REDIS_PASSWORD"`
	DB           int           `envconfig:"STRIDE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STRIDE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STRIDE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STRIDE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STRIDE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STRIDE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"STRIDE_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"STRIDE_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"STRIDE_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"STRIDE_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"STRIDE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"STRIDE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"STRIDE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"STRIDE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"STRIDE_ARGON_KEY_LEN" default:"32"`
}

// GuestConfig controls anonymous shopper sessions.
type GuestConfig struct {
	CookieName string        `envconfig:"STRIDE_GUEST_COOKIE_NAME" default:"guest_session"`
	TTL        time.Duration `envconfig:"STRIDE_GUEST_TTL" default:"168h"`
}

type StripeConfig struct {
	APIKey      string        `envconfig:"STRIDE_STRIPE_API_KEY"`
	Secret      string        `envconfig:"STRIDE_STRIPE_SECRET"`
	Env         string        `envconfig:"STRIDE_STRIPE_ENV" default:"test"`
	CallTimeout time.Duration `envconfig:"STRIDE_STRIPE_CALL_TIMEOUT" default:"15s"`
}

// CheckoutConfig shapes the hosted checkout session request.
type CheckoutConfig struct {
	AppBaseURL       string   `envconfig:"STRIDE_CHECKOUT_APP_BASE_URL" required:"true"`
	AllowedCountries []string `envconfig:"STRIDE_CHECKOUT_ALLOWED_COUNTRIES" default:"US,CA,GB,AU"`
	Currency         string   `envconfig:"STRIDE_CHECKOUT_CURRENCY" default:"usd"`
}

// SuccessURL embeds the provider's session id placeholder so the
// order finalizer can correlate the redirect back to the session.
func (c CheckoutConfig) SuccessURL() string {
	return strings.TrimSuffix(c.AppBaseURL, "/") + "/checkout/success?session_id={CHECKOUT_SESSION_ID}"
}

func (c CheckoutConfig) CancelURL() string {
	return strings.TrimSuffix(c.AppBaseURL, "/") + "/cart"
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"STRIDE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"STRIDE_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"STRIDE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"STRIDE_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"STRIDE_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"STRIDE_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STRIDE_AUTO_MIGRATE" default:"false"`
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
