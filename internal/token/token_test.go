package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/opla-backend/internal/model"
)

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

func newTestService(t *testing.T, clock *fixedClock) *Service {
	t.Helper()
	svc, err := NewService(Config{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	}, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestIssueAndVerify(t *testing.T) {
	clock := &fixedClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestService(t, clock)

	access, refresh, err := svc.IssuePair("user-1")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	if want := clock.t.Add(15 * time.Minute); !access.Exp.Equal(want) {
		t.Errorf("access exp = %v, want %v", access.Exp, want)
	}
	if want := clock.t.Add(7 * 24 * time.Hour); !refresh.Exp.Equal(want) {
		t.Errorf("refresh exp = %v, want %v", refresh.Exp, want)
	}

	claims, err := svc.Verify(access.Token, TypeAccess)
	if err != nil {
		t.Fatalf("Verify access: %v", err)
	}
	if claims.Subject != "user-1" || claims.Type != TypeAccess {
		t.Errorf("claims = %+v", claims)
	}
	if claims.ID == "" {
		t.Error("expected a token id")
	}

	claims, err = svc.Verify(refresh.Token, TypeRefresh)
	if err != nil {
		t.Fatalf("Verify refresh: %v", err)
	}
	if claims.Type != TypeRefresh {
		t.Errorf("type = %q, want refresh", claims.Type)
	}
}

func TestVerify_RejectsWrongType(t *testing.T) {
	clock := &fixedClock{t: time.Now()}
	svc := newTestService(t, clock)
	access, refresh, err := svc.IssuePair("user-1")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	if _, err := svc.Verify(refresh.Token, TypeAccess); !errors.Is(err, model.ErrTokenInvalid) {
		t.Errorf("refresh accepted as access: %v", err)
	}
	if _, err := svc.Verify(access.Token, TypeRefresh); !errors.Is(err, model.ErrTokenInvalid) {
		t.Errorf("access accepted as refresh: %v", err)
	}
}

func TestVerify_RejectsTypeTagMismatchWithCorrectKey(t *testing.T) {
	clock := &fixedClock{t: time.Now()}
	svc := newTestService(t, clock)

	// Signed with the access key but tagged as refresh.
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
		},
		Type: TypeRefresh,
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("access-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := svc.Verify(raw, TypeAccess); !errors.Is(err, model.ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerify_RejectsExpired(t *testing.T) {
	clock := &fixedClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestService(t, clock)
	access, err := svc.IssueAccess("user-1")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	clock.t = clock.t.Add(16 * time.Minute)
	if _, err := svc.Verify(access.Token, TypeAccess); !errors.Is(err, model.ErrTokenInvalid) {
		t.Errorf("expired token accepted: %v", err)
	}
}

func TestVerify_RejectsForeignKey(t *testing.T) {
	clock := &fixedClock{t: time.Now()}
	svc := newTestService(t, clock)
	other, err := NewService(Config{AccessSecret: "other-access", RefreshSecret: "other-refresh"}, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	access, err := other.IssueAccess("user-1")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := svc.Verify(access.Token, TypeAccess); !errors.Is(err, model.ErrTokenInvalid) {
		t.Errorf("token from foreign key accepted: %v", err)
	}
}

func TestVerify_RejectsMalformedAndTampered(t *testing.T) {
	clock := &fixedClock{t: time.Now()}
	svc := newTestService(t, clock)
	access, err := svc.IssueAccess("user-1")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	parts := strings.Split(access.Token, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	for name, raw := range map[string]string{
		"empty":    "",
		"garbage":  "not.a.jwt",
		"tampered": tampered,
	} {
		if _, err := svc.Verify(raw, TypeAccess); !errors.Is(err, model.ErrTokenInvalid) {
			t.Errorf("%s: expected ErrTokenInvalid, got %v", name, err)
		}
	}
}

func TestVerify_RejectsOtherAlgorithm(t *testing.T) {
	clock := &fixedClock{t: time.Now()}
	svc := newTestService(t, clock)
	other, err := NewService(Config{AccessSecret: "access-secret", RefreshSecret: "refresh-secret", Algorithm: "HS512"}, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	access, err := other.IssueAccess("user-1")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := svc.Verify(access.Token, TypeAccess); !errors.Is(err, model.ErrTokenInvalid) {
		t.Errorf("HS512 token accepted by HS256 service: %v", err)
	}
}

func TestNewService_Validation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"missing access", Config{RefreshSecret: "r"}},
		{"missing refresh", Config{AccessSecret: "a"}},
		{"shared secret", Config{AccessSecret: "same", RefreshSecret: "same"}},
		{"bad algorithm", Config{AccessSecret: "a", RefreshSecret: "r", Algorithm: "RS256"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewService(tc.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
