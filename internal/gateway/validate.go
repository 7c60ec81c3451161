package gateway

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/iliyamo/opla-backend/internal/model"
)

const minPhoneDigits = 10

// NormalizePhone keeps only the digits of raw and requires at least ten.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	phone := b.String()
	if len(phone) < minPhoneDigits {
		return "", fmt.Errorf("%w: phone number must contain at least %d digits", model.ErrInvalidInput, minPhoneDigits)
	}
	return phone, nil
}

// NormalizeEmail lowercases and validates an address.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return "", fmt.Errorf("%w: invalid email address", model.ErrInvalidInput)
	}
	return email, nil
}

// ValidatePassword requires eight characters, an uppercase letter and a digit.
func ValidatePassword(pw string) error {
	if utf8.RuneCountInString(pw) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters long", model.ErrInvalidInput)
	}
	var upper, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper {
		return fmt.Errorf("%w: password must contain at least one uppercase letter", model.ErrInvalidInput)
	}
	if !digit {
		return fmt.Errorf("%w: password must contain at least one digit", model.ErrInvalidInput)
	}
	return nil
}

func validateFullName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if n := utf8.RuneCountInString(name); n < 2 || n > 100 {
		return "", fmt.Errorf("%w: full name must be 2-100 characters", model.ErrInvalidInput)
	}
	return name, nil
}

func requireName(raw, what string, max int) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" || utf8.RuneCountInString(name) > max {
		return "", fmt.Errorf("%w: %s must be 1-%d characters", model.ErrInvalidInput, what, max)
	}
	return name, nil
}
