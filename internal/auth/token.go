package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// tokenBytes gives 256 bits of entropy per token. Uniqueness is relied on
// statistically; no server-side re-check is performed.
const tokenBytes = 32

// NewToken generates an opaque bearer token.
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: token entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
