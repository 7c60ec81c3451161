// Package model holds the entities shared by the identity and authorization
// layers together with the error kinds every layer reports. Handlers use
// errors.Is against these sentinels to choose a response status.
package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials: unknown identity, missing password or mismatch.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenInvalid covers expired, malformed and wrong-type tokens alike.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrRateLimited is returned when OTP issuance hit its ceiling.
	ErrRateLimited = errors.New("rate limited")
	// ErrServiceUnavailable signals an unreachable backing store.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrNotFound: role, team, organization or identity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidAccessor: the accessor does not belong to the organization.
	ErrInvalidAccessor = errors.New("invalid accessor")
	// ErrForbidden: system-role mutation, inactive account or missing permission.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict: duplicate unique key or a role still in use.
	ErrConflict = errors.New("conflict")
	// ErrInvalidInput: request validation failed.
	ErrInvalidInput = errors.New("invalid input")
)

// RateLimitError carries the retry hint for a refused OTP request.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return e.Message()
}

// Message is the human readable retry hint returned to clients.
func (e *RateLimitError) Message() string {
	mins := int((e.RetryAfter + time.Minute - 1) / time.Minute)
	if mins < 1 {
		mins = 1
	}
	unit := "minutes"
	if mins == 1 {
		unit = "minute"
	}
	return fmt.Sprintf("Too many OTP requests. Please try again in %d %s.", mins, unit)
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }
