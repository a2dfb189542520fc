package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// TokenGenerator abstracts the entropy source for session tokens, allowing
// tests to produce deterministic IDs.
type TokenGenerator interface {
	GenerateSessionID() (string, error)
}

// CryptoTokenGenerator is the production TokenGenerator backed by
// crypto/rand.
type CryptoTokenGenerator struct {
	// SessionIDPrefix is prepended to generated session IDs.
	SessionIDPrefix string
}

// NewCryptoTokenGenerator creates a CryptoTokenGenerator with the standard
// "sess_" prefix.
func NewCryptoTokenGenerator() *CryptoTokenGenerator {
	return &CryptoTokenGenerator{
		SessionIDPrefix: "sess_",
	}
}

// GenerateSessionID generates a cryptographically secure session token.
// Format: "sess_" + 32 random bytes hex-encoded (64 hex chars).
func (g *CryptoTokenGenerator) GenerateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session ID: %w", err)
	}
	return g.SessionIDPrefix + hex.EncodeToString(b), nil
}
