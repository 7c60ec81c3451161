// Package token issues and verifies the signed access and refresh tokens
// handed out after a successful login. Tokens are stateless: nothing is
// stored server side and a verified, unexpired token is always honored.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iliyamo/opla-backend/internal/model"
)

// Type tags a token so that one kind is never accepted in place of the other.
type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

// Claims is the payload carried by every token.
type Claims struct {
	jwt.RegisteredClaims
	Type Type `json:"type"`
}

// Token is a signed token together with its expiry.
type Token struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// Config holds the signing material and lifetimes.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	Algorithm     string // HS256, HS384 or HS512
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// Service signs and verifies tokens. Access and refresh tokens use distinct
// keys so that a secret for one type can never validate the other.
type Service struct {
	accessKey  []byte
	refreshKey []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	now        func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService validates cfg and returns a ready Service.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("token: access and refresh secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("token: access and refresh secrets must differ")
	}
	method, err := signingMethod(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	s := &Service{
		accessKey:  []byte(cfg.AccessSecret),
		refreshKey: []byte(cfg.RefreshSecret),
		method:     method,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		issuer:     cfg.Issuer,
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func signingMethod(alg string) (jwt.SigningMethod, error) {
	switch alg {
	case "", "HS256":
		return jwt.SigningMethodHS256, nil
	case "HS384":
		return jwt.SigningMethodHS384, nil
	case "HS512":
		return jwt.SigningMethodHS512, nil
	}
	return nil, fmt.Errorf("token: unsupported algorithm %q", alg)
}

// IssueAccess mints a short-lived access token for subjectID.
func (s *Service) IssueAccess(subjectID string) (Token, error) {
	return s.issue(subjectID, TypeAccess)
}

// IssueRefresh mints a long-lived refresh token for subjectID.
func (s *Service) IssueRefresh(subjectID string) (Token, error) {
	return s.issue(subjectID, TypeRefresh)
}

// IssuePair mints an access and a refresh token for subjectID.
func (s *Service) IssuePair(subjectID string) (access, refresh Token, err error) {
	if access, err = s.IssueAccess(subjectID); err != nil {
		return Token{}, Token{}, err
	}
	if refresh, err = s.IssueRefresh(subjectID); err != nil {
		return Token{}, Token{}, err
	}
	return access, refresh, nil
}

func (s *Service) issue(subjectID string, typ Type) (Token, error) {
	if subjectID == "" {
		return Token{}, errors.New("token: subject is required")
	}
	now := s.now().UTC()
	exp := now.Add(s.ttl(typ))
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subjectID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Type: typ,
	}
	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.key(typ))
	if err != nil {
		return Token{}, err
	}
	return Token{Token: signed, Exp: exp}, nil
}

// Verify parses raw and checks it is a valid, unexpired token of the
// expected type. Every failure maps to model.ErrTokenInvalid.
func (s *Service) Verify(raw string, expected Type) (*Claims, error) {
	if raw == "" || (expected != TypeAccess && expected != TypeRefresh) {
		return nil, model.ErrTokenInvalid
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	claims := &Claims{}
	tok, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return s.key(expected), nil
	})
	if err != nil || !tok.Valid {
		return nil, model.ErrTokenInvalid
	}
	if claims.Type != expected || claims.Subject == "" {
		return nil, model.ErrTokenInvalid
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, model.ErrTokenInvalid
	}
	return claims, nil
}

func (s *Service) key(typ Type) []byte {
	if typ == TypeRefresh {
		return s.refreshKey
	}
	return s.accessKey
}

func (s *Service) ttl(typ Type) time.Duration {
	if typ == TypeRefresh {
		return s.refreshTTL
	}
	return s.accessTTL
}
