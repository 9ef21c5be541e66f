package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// State store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Config is the gateway configuration. Defaults are listed in LoadConfig.
type Config struct {
	Env                  string        `validate:"required"`
	LogLevel             string        `validate:"oneof=debug info warn error"`
	LogFormat            string        `validate:"oneof=json text"`
	Port                 int           `validate:"min=1,max=65535"`
	ShutdownGracePeriod  time.Duration `validate:"gt=0"`
	HousekeepingInterval time.Duration `validate:"gt=0"`

	// JWTSecret is the HMAC secret shared by every instance. Required.
	JWTSecret       string        `validate:"required,min=32"`
	JWTIssuer       string        `validate:"required"`
	AccessTokenTTL  time.Duration `validate:"gt=0"`
	RefreshTokenTTL time.Duration `validate:"gtfield=AccessTokenTTL"`
	DecisionTimeout time.Duration `validate:"gt=0"`

	// ServiceAuthSecret enables X-Service-Auth. Empty disables it.
	ServiceAuthSecret string `validate:"omitempty,min=16"`

	// DatabaseFile holds the credential store, and the state store when
	// StateStore is sqlite.
	StateStore    string `validate:"oneof=memory sqlite redis"`
	DatabaseFile  string `validate:"required"`
	RedisAddr     string `validate:"required_if=StateStore redis"`
	RedisPassword string `validate:"-"`
	RedisDB       int    `validate:"min=0"`

	// PepperFile optionally holds the password pepper.
	PepperFile string

	LoginMaxAttempts    int           `validate:"min=1"`
	LoginWindow         time.Duration `validate:"gt=0"`
	LockoutThreshold    int           `validate:"min=1"`
	LockoutDuration     time.Duration `validate:"gt=0"`
	MaxProgressiveDelay time.Duration `validate:"gte=0"`

	CookieSecure bool
	CookieDomain string

	// UpstreamURL is the business service behind the gateway. Empty answers
	// unmatched routes with 404.
	UpstreamURL string `validate:"omitempty,url"`

	// TrustedProxies lists the addresses or CIDR ranges whose
	// X-Forwarded-For is believed. Empty keys every request by its peer.
	TrustedProxies string

	CriticalLimit httpx.RateLimitConfig
	StandardLimit httpx.RateLimitConfig

	// The bootstrap admin is created on startup when its account does not
	// exist yet.
	BootstrapAdminAccount  string `validate:"required_with=BootstrapAdminPassword"`
	BootstrapAdminPassword string `validate:"required_with=BootstrapAdminAccount"`
}

// LoadConfig reads the environment, after merging an optional .env file, and
// validates the result.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Config{
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		LogFormat:            strings.ToLower(getEnvOrDefault("LOG_FORMAT", "json")),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 10*time.Minute),

		JWTSecret:       os.Getenv("JWT_SECRET"),
		JWTIssuer:       getEnvOrDefault("JWT_ISSUER", "gatekeeper"),
		AccessTokenTTL:  getEnvDurationOrDefault("ACCESS_TOKEN_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTokenTTL: getEnvDurationOrDefault("REFRESH_TOKEN_TTL", jwtx.DefaultRefreshTokenTTL),
		DecisionTimeout: getEnvDurationOrDefault("AUTH_DECISION_TIMEOUT", 5*time.Second),

		ServiceAuthSecret: os.Getenv("SERVICE_AUTH_SECRET"),

		StateStore:    strings.ToLower(getEnvOrDefault("STATE_STORE", StoreMemory)),
		DatabaseFile:  getEnvOrDefault("DATABASE_FILE", "gatekeeper.db"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvIntOrDefault("REDIS_DB", 0),
		PepperFile:    os.Getenv("PEPPER_FILE"),

		LoginMaxAttempts:    getEnvIntOrDefault("LOGIN_MAX_ATTEMPTS", 5),
		LoginWindow:         getEnvDurationOrDefault("LOGIN_WINDOW", 15*time.Minute),
		LockoutThreshold:    getEnvIntOrDefault("LOCKOUT_THRESHOLD", 10),
		LockoutDuration:     getEnvDurationOrDefault("LOCKOUT_DURATION", 15*time.Minute),
		MaxProgressiveDelay: getEnvDurationOrDefault("MAX_PROGRESSIVE_DELAY", 30*time.Second),

		CookieSecure: getEnvBoolOrDefault("COOKIE_SECURE", true),
		CookieDomain: os.Getenv("COOKIE_DOMAIN"),
		UpstreamURL:  os.Getenv("UPSTREAM_URL"),

		TrustedProxies: os.Getenv("TRUSTED_PROXIES"),

		CriticalLimit: httpx.ParseRateLimitFromEnv("CRITICAL", httpx.CriticalLimit),
		StandardLimit: httpx.ParseRateLimitFromEnv("STANDARD", httpx.StandardLimit),

		BootstrapAdminAccount:  os.Getenv("BOOTSTRAP_ADMIN_ACCOUNT"),
		BootstrapAdminPassword: os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("config validation failed: %w", err)
		}

		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("config validation failed: %s", strings.Join(msgs, "; "))
	}
	if _, err := httpx.ParseTrustedProxies(c.TrustedProxies); err != nil {
		return fmt.Errorf("config validation failed: TrustedProxies: %w", err)
	}
	return nil
}

// IsProduction reports whether error details must be withheld from clients.
func (c Config) IsProduction() bool {
	switch strings.ToLower(c.Env) {
	case "prod", "production":
		return true
	}
	return false
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
