// Package credential produces and recognises the bcrypt hashes stored in the
// admin collection. The provisioner only ever receives hashes; Hash exists for
// the hash-password command that operators use to prepare one.
package credential

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const DefaultCost = bcrypt.DefaultCost

var ErrNotHash = errors.New("value is not a bcrypt hash")

// Hash returns the bcrypt hash of password at the given cost.
func Hash(password string, cost int) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return "", fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(h), nil
}

// CheckHash returns ErrNotHash unless s parses as a bcrypt hash. It is used
// to refuse a plaintext password passed where a hash is expected.
func CheckHash(s string) error {
	if _, err := bcrypt.Cost([]byte(s)); err != nil {
		return fmt.Errorf("%w: %v", ErrNotHash, err)
	}
	return nil
}

// Matches reports whether password is the plaintext of hash.
func Matches(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
