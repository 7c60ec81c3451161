package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/opla-backend/internal/gateway"
	"github.com/iliyamo/opla-backend/internal/model"
	"github.com/iliyamo/opla-backend/internal/otp"
)

// AuthService is the part of the gateway the auth endpoints use.
type AuthService interface {
	RegisterEmail(ctx context.Context, email, password, fullName string) (*gateway.Session, error)
	RegisterPhone(ctx context.Context, phone, fullName string) (*model.Identity, otp.Issued, error)
	Authenticate(ctx context.Context, email, password string) (*gateway.Session, error)
	RequestOTP(ctx context.Context, phone string) (otp.Issued, error)
	VerifyOTP(ctx context.Context, phone, code string) (*gateway.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*gateway.Session, error)
}

// AuthHandler serves registration, login, OTP and token refresh.
type AuthHandler struct {
	Auth AuthService
}

func NewAuthHandler(a AuthService) *AuthHandler {
	return &AuthHandler{Auth: a}
}

// ----- DTOs -----

type registerEmailReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}
type registerPhoneReq struct {
	Phone    string `json:"phone"`
	FullName string `json:"full_name"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type otpRequestReq struct {
	Phone string `json:"phone"`
}
type otpVerifyReq struct {
	Phone string `json:"phone"`
	Code  string `json:"otp"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type otpResp struct {
	Message   string    `json:"message"`
	Phone     string    `json:"phone"`
	ExpiresAt time.Time `json:"expires_at"`
	Code      string    `json:"otp_code,omitempty"` // development mode only
}

type registerPhoneResp struct {
	User userResp `json:"user"`
	OTP  otpResp  `json:"otp"`
}

func sessionResp(s *gateway.Session) authResp {
	return authResp{User: toUser(s.Identity), Access: toToken(s.Access), Refresh: toToken(s.Refresh)}
}

func toOTP(i otp.Issued) otpResp {
	return otpResp{Message: "OTP sent", Phone: i.Phone, ExpiresAt: i.ExpiresAt, Code: i.Code}
}

// RegisterEmail: create a password identity and return tokens immediately.
func (h *AuthHandler) RegisterEmail(c echo.Context) error {
	var req registerEmailReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	s, err := h.Auth.RegisterEmail(ctx, req.Email, req.Password, req.FullName)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, sessionResp(s))
}

// RegisterPhone: create a phone identity and send the first OTP. The user
// exists even if the OTP could not be sent; the error still reaches the
// client so it can retry with /otp/request.
func (h *AuthHandler) RegisterPhone(c echo.Context) error {
	var req registerPhoneReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, issued, err := h.Auth.RegisterPhone(ctx, req.Phone, req.FullName)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, registerPhoneResp{User: toUser(u), OTP: toOTP(issued)})
}

// Login: verify email/password and return a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	s, err := h.Auth.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sessionResp(s))
}

func (h *AuthHandler) RequestOTP(c echo.Context) error {
	var req otpRequestReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	issued, err := h.Auth.RequestOTP(ctx, req.Phone)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toOTP(issued))
}

func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	var req otpVerifyReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if req.Phone == "" || req.Code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "phone/otp required"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	s, err := h.Auth.VerifyOTP(ctx, req.Phone, req.Code)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sessionResp(s))
}

// Refresh: exchange a refresh token for a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	s, err := h.Auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sessionResp(s))
}

// Me returns the caller's identity.
func (h *AuthHandler) Me(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toUser(u))
}
