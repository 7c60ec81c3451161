package config

import (
	"context"
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig locates the Redis server backing OTP challenges and the HTTP
// rate limiter. REDIS_HOST and REDIS_PORT take precedence over REDIS_ADDR.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Host     string `env:"REDIS_HOST"`
	Port     string `env:"REDIS_PORT"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	TLS      bool   `env:"REDIS_TLS" envDefault:"false"`
}

// Address resolves the host:port to dial.
func (r RedisConfig) Address() string {
	if r.Host != "" && r.Port != "" {
		return r.Host + ":" + r.Port
	}
	if r.Addr == "" {
		return "localhost:6379"
	}
	return r.Addr
}

// Options builds client options with short timeouts so an unreachable
// server surfaces as an error instead of a hung request.
func (r RedisConfig) Options() *redis.Options {
	opts := &redis.Options{
		Addr:         r.Address(),
		Password:     r.Password,
		DB:           r.DB,
		DialTimeout:  time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		MaxRetries:   1,
	}
	if r.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// NewRedisClient connects and pings the server. It returns nil when the
// server is unreachable; callers degrade (the OTP service reports
// unavailability, the rate limiter falls back to memory).
func NewRedisClient(cfg RedisConfig, log *slog.Logger) *redis.Client {
	if log == nil {
		log = slog.Default()
	}
	client := redis.NewClient(cfg.Options())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable", "addr", cfg.Address(), "error", err)
		_ = client.Close()
		return nil
	}
	return client
}
