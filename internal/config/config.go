// Package config loads application configuration from environment variables,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/iliyamo/opla-backend/internal/model"
	"github.com/iliyamo/opla-backend/internal/otp"
	"github.com/iliyamo/opla-backend/internal/token"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable.
type Config struct {
	Env      string `env:"APP_ENV" envDefault:"production"` // production or development
	Port     string `env:"APP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DBUser string `env:"DB_USER,required,notEmpty"`
	DBPass string `env:"DB_PASS"` // empty allowed
	DBHost string `env:"DB_HOST,required,notEmpty"`
	DBPort string `env:"DB_PORT" envDefault:"3306"`
	DBName string `env:"DB_NAME,required,notEmpty"`

	JWTAccessSecret  string `env:"JWT_ACCESS_SECRET,required,notEmpty"`
	JWTRefreshSecret string `env:"JWT_REFRESH_SECRET,required,notEmpty"`
	JWTAlgorithm     string `env:"JWT_ALGORITHM" envDefault:"HS256"`
	JWTIssuer        string `env:"JWT_ISSUER" envDefault:"opla"`
	AccessTTLMin     int    `env:"ACCESS_TOKEN_TTL_MIN" envDefault:"15"`
	RefreshTTLDays   int    `env:"REFRESH_TOKEN_TTL_DAYS" envDefault:"7"`
	BcryptCost       int    `env:"BCRYPT_COST" envDefault:"12"`

	OTPTTLMin          int           `env:"OTP_TTL_MIN" envDefault:"5"`
	OTPLength          int           `env:"OTP_LENGTH" envDefault:"6"`
	OTPRateLimitMax    int           `env:"OTP_RATE_LIMIT_MAX" envDefault:"3"`
	OTPRateLimitWindow int           `env:"OTP_RATE_LIMIT_WINDOW_SEC" envDefault:"900"`
	OTPStoreTimeout    time.Duration `env:"OTP_STORE_TIMEOUT" envDefault:"500ms"`

	// AMQPURL enables SMS dispatch over RabbitMQ when set.
	AMQPURL string `env:"AMQP_URL"`

	Redis RedisConfig
}

// Load reads .env when present, parses the environment and validates the
// result.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values env tags cannot express.
func (c Config) Validate() error {
	var errs []error
	if _, ok := model.ParseMode(c.Env); !ok {
		errs = append(errs, fmt.Errorf("APP_ENV must be production or development, got %q", c.Env))
	}
	if c.JWTAccessSecret == c.JWTRefreshSecret {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ"))
	}
	switch strings.ToUpper(c.JWTAlgorithm) {
	case "HS256", "HS384", "HS512":
	default:
		errs = append(errs, fmt.Errorf("unsupported JWT_ALGORITHM %q", c.JWTAlgorithm))
	}
	if c.AccessTTLMin <= 0 || c.RefreshTTLDays <= 0 || c.OTPTTLMin <= 0 {
		errs = append(errs, errors.New("token and OTP lifetimes must be positive"))
	}
	if c.OTPLength < 4 || c.OTPLength > 10 {
		errs = append(errs, fmt.Errorf("OTP_LENGTH must be 4-10, got %d", c.OTPLength))
	}
	if c.OTPRateLimitMax < 1 || c.OTPRateLimitWindow < 1 {
		errs = append(errs, errors.New("OTP rate limit values must be positive"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be 4-31, got %d", c.BcryptCost))
	}
	return errors.Join(errs...)
}

// Mode is the validated operating mode.
func (c Config) Mode() model.Mode {
	m, _ := model.ParseMode(c.Env)
	return m
}

func (c Config) TokenConfig() token.Config {
	return token.Config{
		AccessSecret:  c.JWTAccessSecret,
		RefreshSecret: c.JWTRefreshSecret,
		Algorithm:     strings.ToUpper(c.JWTAlgorithm),
		AccessTTL:     time.Duration(c.AccessTTLMin) * time.Minute,
		RefreshTTL:    time.Duration(c.RefreshTTLDays) * 24 * time.Hour,
		Issuer:        c.JWTIssuer,
	}
}

func (c Config) OTPConfig() otp.Config {
	return otp.Config{
		CodeLength:   c.OTPLength,
		TTL:          time.Duration(c.OTPTTLMin) * time.Minute,
		MaxRequests:  c.OTPRateLimitMax,
		Window:       time.Duration(c.OTPRateLimitWindow) * time.Second,
		StoreTimeout: c.OTPStoreTimeout,
		Mode:         c.Mode(),
	}
}
