package model

import "time"

// Identity represents a principal as stored in the `users` table. A user
// may register with an email/password pair, with a phone number verified
// through OTP, or with both.
//
// Fields:
//  ID              – UUID primary key.
//  Email           – unique email address (nil for phone-only users).
//  Phone           – unique phone number, digits only (nil for email-only users).
//  PasswordHash    – bcrypt hash (nil when the user has no password).
//  FullName        – display name.
//  IsPlatformAdmin – operator flag, not tied to any organization.
//  IsActive        – inactive users can neither log in nor be authorized.
type Identity struct {
	ID              string    // users.id
	Email           *string   // users.email
	Phone           *string   // users.phone
	PasswordHash    *string   // users.password_hash
	FullName        string    // users.full_name
	IsPlatformAdmin bool      // users.is_platform_admin
	IsActive        bool      // users.is_active
	CreatedAt       time.Time // users.created_at
	UpdatedAt       time.Time // users.updated_at
}

// HasPassword reports whether password login is possible for this identity.
func (i Identity) HasPassword() bool {
	return i.PasswordHash != nil && *i.PasswordHash != ""
}

// Valid reports whether the identity carries at least one contact handle.
func (i Identity) Valid() bool {
	return (i.Email != nil && *i.Email != "") || (i.Phone != nil && *i.Phone != "")
}

// StrPtr returns a pointer to s, or nil when s is empty.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the value behind p or "" when p is nil.
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
