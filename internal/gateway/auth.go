package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/opla-backend/internal/model"
	"github.com/iliyamo/opla-backend/internal/otp"
	"github.com/iliyamo/opla-backend/internal/token"
	"github.com/iliyamo/opla-backend/internal/utils"
)

// RegisterEmail creates a password identity and signs it in.
func (g *Gateway) RegisterEmail(ctx context.Context, email, password, fullName string) (*Session, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	name, err := validateFullName(fullName)
	if err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(password, g.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.Identity{Email: &email, PasswordHash: &hash, FullName: name, IsActive: true}
	if err := g.users.Create(ctx, u); err != nil {
		if errors.Is(err, model.ErrConflict) {
			return nil, fmt.Errorf("%w: email already registered", model.ErrConflict)
		}
		return nil, err
	}
	g.log.Info("user registered", "user_id", u.ID, "method", "email")
	return g.newSession(u)
}

// RegisterPhone creates a phone identity and sends it a first OTP challenge.
// The identity is kept even when the challenge cannot be issued.
func (g *Gateway) RegisterPhone(ctx context.Context, phone, fullName string) (*model.Identity, otp.Issued, error) {
	phone, err := NormalizePhone(phone)
	if err != nil {
		return nil, otp.Issued{}, err
	}
	name, err := validateFullName(fullName)
	if err != nil {
		return nil, otp.Issued{}, err
	}

	u := &model.Identity{Phone: &phone, FullName: name, IsActive: true}
	if err := g.users.Create(ctx, u); err != nil {
		if errors.Is(err, model.ErrConflict) {
			return nil, otp.Issued{}, fmt.Errorf("%w: phone number already registered", model.ErrConflict)
		}
		return nil, otp.Issued{}, err
	}
	g.log.Info("user registered", "user_id", u.ID, "method", "phone")

	issued, err := g.otp.RequestChallenge(ctx, phone)
	if err != nil {
		return u, otp.Issued{}, err
	}
	return u, issued, nil
}

// Authenticate checks an email/password pair.
func (g *Gateway) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	sess, err := g.authenticate(ctx, email, password)
	g.metrics.Login("password", err == nil)
	return sess, err
}

func (g *Gateway) authenticate(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := g.users.GetByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		// Burn a hash comparison so unknown emails cost the same.
		utils.VerifyPassword("", password)
		return nil, model.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !u.HasPassword() || !utils.VerifyPassword(*u.PasswordHash, password) {
		return nil, model.ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, fmt.Errorf("%w: user account is inactive", model.ErrForbidden)
	}
	return g.newSession(u)
}

// RequestOTP issues a challenge for a registered phone.
func (g *Gateway) RequestOTP(ctx context.Context, phone string) (otp.Issued, error) {
	phone, err := NormalizePhone(phone)
	if err != nil {
		return otp.Issued{}, err
	}
	if _, err := g.users.GetByPhone(ctx, phone); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return otp.Issued{}, fmt.Errorf("%w: phone number not registered", model.ErrNotFound)
		}
		return otp.Issued{}, err
	}
	return g.otp.RequestChallenge(ctx, phone)
}

// VerifyOTP consumes a challenge and signs the phone's identity in.
func (g *Gateway) VerifyOTP(ctx context.Context, phone, code string) (*Session, error) {
	sess, err := g.verifyOTP(ctx, phone, code)
	g.metrics.Login("otp", err == nil)
	return sess, err
}

func (g *Gateway) verifyOTP(ctx context.Context, phone, code string) (*Session, error) {
	phone, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	if !g.otp.VerifyChallenge(ctx, phone, code) {
		return nil, fmt.Errorf("%w: invalid or expired OTP", model.ErrInvalidCredentials)
	}
	u, err := g.users.GetByPhone(ctx, phone)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, fmt.Errorf("%w: user account is inactive", model.ErrForbidden)
	}
	return g.newSession(u)
}

// Refresh exchanges a refresh token for a new token pair.
func (g *Gateway) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := g.tokens.Verify(refreshToken, token.TypeRefresh)
	if err != nil {
		return nil, err
	}
	u, err := g.loadActive(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	return g.newSession(u)
}

// Principal resolves an access token to its active identity.
func (g *Gateway) Principal(ctx context.Context, accessToken string) (*model.Identity, error) {
	claims, err := g.tokens.Verify(accessToken, token.TypeAccess)
	if err != nil {
		return nil, err
	}
	return g.loadActive(ctx, claims.Subject)
}

// loadActive maps a vanished identity to a token error and an inactive one
// to ErrForbidden.
func (g *Gateway) loadActive(ctx context.Context, userID string) (*model.Identity, error) {
	u, err := g.users.GetByID(ctx, userID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.ErrTokenInvalid
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, fmt.Errorf("%w: user account is inactive", model.ErrForbidden)
	}
	return u, nil
}
