// Package otp implements the phone one-time-code challenge: issuance with a
// per-phone rate limit, storage in an expiring store, and single-use
// verification.
package otp

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/opla-backend/internal/metrics"
	"github.com/iliyamo/opla-backend/internal/model"
)

// FallbackCode is accepted in development mode whatever the store holds.
const FallbackCode = "123456"

const (
	challengePrefix = "otp:"
	counterPrefix   = "otp_rate_limit:"
)

// Config controls code shape, lifetimes and the rate-limit ceiling.
type Config struct {
	CodeLength   int
	TTL          time.Duration
	MaxRequests  int
	Window       time.Duration
	StoreTimeout time.Duration
	Mode         model.Mode
}

func (c *Config) setDefaults() {
	if c.CodeLength <= 0 {
		c.CodeLength = 6
	}
	if c.TTL <= 0 {
		c.TTL = 5 * time.Minute
	}
	if c.MaxRequests <= 0 {
		c.MaxRequests = 3
	}
	if c.Window <= 0 {
		c.Window = 15 * time.Minute
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 500 * time.Millisecond
	}
	if c.Mode == "" {
		c.Mode = model.ModeProduction
	}
}

// Notifier delivers an issued code out of band (SMS).
type Notifier interface {
	NotifyOTP(ctx context.Context, phone, code string, expiresAt time.Time) error
}

// Issued describes a freshly issued challenge. Code is only populated in
// development mode.
type Issued struct {
	Phone     string
	ExpiresAt time.Time
	Code      string
	Fallback  bool
}

type challenge struct {
	Hash      string `json:"h"`
	CreatedAt int64  `json:"c"`
}

// Service issues and verifies challenges. Safe for concurrent use.
type Service struct {
	store    Store
	cfg      Config
	notifier Notifier
	log      *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

type Option func(*Service)

func WithNotifier(n Notifier) Option       { return func(s *Service) { s.notifier = n } }
func WithLogger(l *slog.Logger) Option      { return func(s *Service) { s.log = l } }
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(store Store, cfg Config, opts ...Option) *Service {
	cfg.setDefaults()
	s := &Service{
		store: store,
		cfg:   cfg,
		log:   slog.Default(),
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func challengeKey(phone string) string { return challengePrefix + phone }
func counterKey(phone string) string   { return counterPrefix + phone }

// RequestChallenge issues a new code for phone, replacing any live one.
// Errors are *model.RateLimitError (matches model.ErrRateLimited) or
// model.ErrServiceUnavailable.
func (s *Service) RequestChallenge(ctx context.Context, phone string) (Issued, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return Issued{}, fmt.Errorf("%w: phone is required", model.ErrInvalidInput)
	}

	count, err := s.currentCount(ctx, phone)
	if err != nil {
		return s.storeDown(phone, "read counter", err)
	}
	if count >= int64(s.cfg.MaxRequests) {
		retry := s.retryAfter(ctx, phone)
		s.metrics.OTPRequested("rate_limited")
		s.log.Info("otp request rate limited", "phone", maskPhone(phone), "retry_after", retry.String())
		return Issued{}, &model.RateLimitError{RetryAfter: retry}
	}

	code, err := GenerateCode(s.cfg.CodeLength)
	if err != nil {
		s.metrics.OTPRequested("error")
		return Issued{}, fmt.Errorf("%w: generate code: %v", model.ErrServiceUnavailable, err)
	}

	now := s.now()
	raw, _ := json.Marshal(challenge{Hash: hashCode(phone, code), CreatedAt: now.Unix()})
	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		return s.store.Set(ctx, challengeKey(phone), string(raw), s.cfg.TTL)
	}); err != nil {
		return s.storeDown(phone, "store challenge", err)
	}
	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		_, err := s.store.Incr(ctx, counterKey(phone), s.cfg.Window)
		return err
	}); err != nil {
		// Best effort: do not leave a code behind that was never counted.
		_ = s.withTimeout(ctx, func(ctx context.Context) error {
			_, err := s.store.Del(ctx, challengeKey(phone))
			return err
		})
		return s.storeDown(phone, "increment counter", err)
	}

	issued := Issued{Phone: phone, ExpiresAt: now.Add(s.cfg.TTL)}
	if s.cfg.Mode.IsDevelopment() {
		issued.Code = code
	}
	s.metrics.OTPRequested("issued")
	s.log.Info("otp issued", "phone", maskPhone(phone), "expires_at", issued.ExpiresAt)

	if s.notifier != nil {
		if err := s.notifier.NotifyOTP(ctx, phone, code, issued.ExpiresAt); err != nil {
			s.log.Error("otp notify failed", "phone", maskPhone(phone), "err", err)
		}
	}
	return issued, nil
}

// VerifyChallenge reports whether code is the live code for phone. A match
// consumes the challenge and resets the rate-limit counter; a mismatch
// leaves both untouched. Store failures yield false.
func (s *Service) VerifyChallenge(ctx context.Context, phone, code string) bool {
	phone = strings.TrimSpace(phone)
	code = strings.TrimSpace(code)
	if phone == "" || code == "" {
		s.metrics.OTPVerified(false)
		return false
	}

	if s.cfg.Mode.IsDevelopment() && subtle.ConstantTimeCompare([]byte(code), []byte(FallbackCode)) == 1 {
		_ = s.withTimeout(ctx, func(ctx context.Context) error {
			_, err := s.store.Del(ctx, counterKey(phone))
			return err
		})
		s.metrics.OTPVerified(true)
		return true
	}

	ok := s.verifyStored(ctx, phone, code)
	s.metrics.OTPVerified(ok)
	return ok
}

func (s *Service) verifyStored(ctx context.Context, phone, code string) bool {
	var raw string
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		raw, err = s.store.Get(ctx, challengeKey(phone))
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			s.log.Warn("otp verify: store read failed", "phone", maskPhone(phone), "err", err)
		}
		return false
	}

	var ch challenge
	if err := json.Unmarshal([]byte(raw), &ch); err != nil {
		s.log.Warn("otp verify: corrupt challenge", "phone", maskPhone(phone), "err", err)
		return false
	}
	if !codeEqual(phone, code, ch.Hash) {
		return false
	}

	// Only the caller whose DEL removed the key wins; concurrent verifiers
	// with the same code see zero deletions.
	var deleted int64
	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		deleted, err = s.store.Del(ctx, challengeKey(phone))
		return err
	}); err != nil {
		s.log.Warn("otp verify: consume failed", "phone", maskPhone(phone), "err", err)
		return false
	}
	if deleted == 0 {
		return false
	}
	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		_, err := s.store.Del(ctx, counterKey(phone))
		return err
	}); err != nil {
		s.log.Warn("otp verify: counter reset failed", "phone", maskPhone(phone), "err", err)
	}
	return true
}

func (s *Service) currentCount(ctx context.Context, phone string) (int64, error) {
	var raw string
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		raw, err = s.store.Get(ctx, counterKey(phone))
		return err
	})
	if errors.Is(err, ErrMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse counter %q: %w", raw, err)
	}
	return n, nil
}

func (s *Service) retryAfter(ctx context.Context, phone string) time.Duration {
	var ttl time.Duration
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		ttl, err = s.store.TTL(ctx, counterKey(phone))
		return err
	})
	if err != nil || ttl <= 0 {
		return s.cfg.Window
	}
	return ttl
}

// storeDown handles an unreachable store: development degrades to the
// fallback code, production issues nothing.
func (s *Service) storeDown(phone, op string, err error) (Issued, error) {
	if s.cfg.Mode.IsDevelopment() {
		s.metrics.OTPRequested("fallback")
		s.log.Warn("otp store unavailable, using fallback code", "op", op, "phone", maskPhone(phone), "err", err)
		return Issued{
			Phone:     phone,
			ExpiresAt: s.now().Add(s.cfg.TTL),
			Code:      FallbackCode,
			Fallback:  true,
		}, nil
	}
	s.metrics.OTPRequested("unavailable")
	s.log.Error("otp store unavailable", "op", op, "phone", maskPhone(phone), "err", err)
	return Issued{}, fmt.Errorf("%w: otp store: %s", model.ErrServiceUnavailable, op)
}

func (s *Service) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return fn(ctx)
}

// maskPhone keeps the last four digits for log correlation.
func maskPhone(p string) string {
	if len(p) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(p)-4) + p[len(p)-4:]
}
