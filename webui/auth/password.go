// Package auth provides session authentication for the dashboard:
// bcrypt password verification, secure session cookies, a rate-limited
// login flow, and the middleware protecting every dashboard route.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultBcryptCost trades roughly 250ms of hashing time for brute
	// force resistance.
	DefaultBcryptCost = 12

	// MinBcryptCost rejects hashes below this work factor.
	MinBcryptCost = 10
)

// ErrPasswordMismatch is returned when a password does not match the
// stored hash.
var ErrPasswordMismatch = errors.New("password does not match")

// ErrEmptyPassword is returned when an empty password is hashed or
// verified.
var ErrEmptyPassword = errors.New("password cannot be empty")

// ErrWeakHash is returned when a hash's cost is below MinBcryptCost.
var ErrWeakHash = errors.New("hash cost below minimum")

// HashPassword hashes a password at the default cost.
func HashPassword(password string) (string, error) {
	return HashPasswordWithCost(password, DefaultBcryptCost)
}

// HashPasswordWithCost hashes a password at a specific cost.
func HashPasswordWithCost(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return "", fmt.Errorf("bcrypt cost %d outside valid range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword checks a password against a bcrypt hash. Returns
// ErrPasswordMismatch on failure so callers can distinguish a wrong
// password from a malformed hash.
func VerifyPassword(password, hash string) error {
	if password == "" {
		return ErrEmptyPassword
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return err
}

// HashCost returns the work factor embedded in a hash.
func HashCost(hash string) (int, error) {
	return bcrypt.Cost([]byte(hash))
}

// NeedsRehash reports whether a hash was created below targetCost and
// should be regenerated.
func NeedsRehash(hash string, targetCost int) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost < targetCost
}

// ValidateHashStrength rejects malformed hashes and hashes below the
// minimum cost.
func ValidateHashStrength(hash string) error {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return fmt.Errorf("invalid bcrypt hash: %w", err)
	}
	if cost < MinBcryptCost {
		return fmt.Errorf("%w: cost %d < %d", ErrWeakHash, cost, MinBcryptCost)
	}
	return nil
}

// IsValidHash reports whether the string parses as a bcrypt hash.
func IsValidHash(hash string) bool {
	_, err := bcrypt.Cost([]byte(hash))
	return err == nil
}
