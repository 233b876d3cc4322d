package auth

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltBytes         = 16
	hashIterations    = 100000
	hashKeyLength     = 64
	MinPasswordLength = 8
)

// GenerateSalt returns 16 random bytes, hex-encoded.
func GenerateSalt() (string, error) {
	b := make([]byte, saltBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashPassword derives a hex-encoded PBKDF2-HMAC-SHA512 key. The salt is used
// as its string bytes, not hex-decoded.
func HashPassword(password, salt string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), hashIterations, hashKeyLength, sha512.New)
	return hex.EncodeToString(key)
}

// VerifyPassword compares in constant time with respect to the candidate.
func VerifyPassword(password, salt, expectedHash string) bool {
	candidate := HashPassword(password, salt)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(expectedHash)) == 1
}

// ValidatePassword enforces the signup password policy and returns the first
// rule the password breaks, or nil.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return &PasswordError{Message: fmt.Sprintf("Password must be at least %d characters long", MinPasswordLength)}
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			special = true
		}
	}

	switch {
	case !upper:
		return &PasswordError{Message: "Password must contain at least one uppercase letter"}
	case !lower:
		return &PasswordError{Message: "Password must contain at least one lowercase letter"}
	case !digit:
		return &PasswordError{Message: "Password must contain at least one number"}
	case !special:
		return &PasswordError{Message: "Password must contain at least one special character"}
	}
	return nil
}

type PasswordError struct {
	Message string
}

func (e *PasswordError) Error() string { return e.Message }
