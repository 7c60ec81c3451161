package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"math/big"
)

var ten = big.NewInt(10)

// GenerateCode returns an n-digit numeric code drawn from crypto/rand.
// Each digit is sampled uniformly, so leading zeros are possible.
func GenerateCode(n int) (string, error) {
	b := make([]byte, n)
	for i := range b {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b[i] = '0' + byte(d.Int64())
	}
	return string(b), nil
}

// hashCode binds the code to the phone so digests are not interchangeable
// between keys.
func hashCode(phone, code string) string {
	h := sha256.Sum256([]byte(phone + ":" + code))
	return hex.EncodeToString(h[:])
}

// codeEqual compares a candidate code against a stored digest in constant time.
func codeEqual(phone, code, storedHash string) bool {
	if code == "" || storedHash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(hashCode(phone, code)), []byte(storedHash)) == 1
}
