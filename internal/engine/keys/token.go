package keys

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// TokenPrefix marks every Caelex API token. Verification uses it as a
// fast-path filter so garbage tokens never hit storage.
const TokenPrefix = "caelex_"

const prefixDisplayLen = 12

// GenerateToken returns a new plaintext bearer token. 32 bytes of
// entropy, hex-encoded behind the recognizable prefix.
func GenerateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return TokenPrefix + hex.EncodeToString(buf), nil
}

// HashToken returns the digest that is stored in place of the
// plaintext. Lookup happens by this value; the plaintext is never
// persisted.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// DisplayPrefix is the non-secret fragment shown in the dashboard,
// e.g. "caelex_a1b2c...".
func DisplayPrefix(token string) string {
	if len(token) <= prefixDisplayLen {
		return token
	}
	return token[:prefixDisplayLen] + "..."
}

// HasTokenFormat reports whether a presented credential even looks
// like a Caelex token.
func HasTokenFormat(token string) bool {
	return strings.HasPrefix(token, TokenPrefix) && len(token) > len(TokenPrefix)
}
