// Package password implements secure hashing and verification of account passwords.
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// hashCost is deliberately above bcrypt.DefaultCost: password hashes guard
// long-lived company accounts and must stay expensive to brute-force.
const hashCost = 12

// GetHash returns the bcrypt hash for a plaintext password.
func GetHash(password string) (string, error) {
	const op = "password.GetHash"
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashedPassword), nil
}

// CompareHash checks a plaintext password against a stored bcrypt hash.
//
// Returns nil if the password matches, an error otherwise.
func CompareHash(originalHash, externalPassword string) error {
	const op = "password.CompareHash"
	if err := bcrypt.CompareHashAndPassword([]byte(originalHash), []byte(externalPassword)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
