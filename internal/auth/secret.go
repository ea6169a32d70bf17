package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// SecretEqual compares a presented shared secret with the configured one in
// constant time. An unset secret never matches.
func SecretEqual(presented, expected string) bool {
	if expected == "" {
		return false
	}
	// hashing first keeps the comparison length-independent
	p := sha256.Sum256([]byte(presented))
	e := sha256.Sum256([]byte(expected))
	return subtle.ConstantTimeCompare(p[:], e[:]) == 1
}

// Credentials is the single operator account allowed on the management API.
type Credentials struct {
	email    string
	passHash []byte
}

// NewCredentials accepts either a bcrypt hash or a plaintext password, which
// is hashed once at startup.
func NewCredentials(email, password string) (*Credentials, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("admin email and password are required")
	}
	if _, err := bcrypt.Cost([]byte(password)); err == nil {
		return &Credentials{email: email, passHash: []byte(password)}, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	return &Credentials{email: email, passHash: hash}, nil
}

func (c *Credentials) Verify(email, password string) bool {
	emailOK := SecretEqual(email, c.email)
	passErr := bcrypt.CompareHashAndPassword(c.passHash, []byte(password))
	return emailOK && passErr == nil
}
