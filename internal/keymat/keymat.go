// Package keymat provides the secret material for API keys: generation,
// display prefix derivation and one-way hashing. It holds no state; callers
// persist only the hash and the prefix.
package keymat

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
)

const (
	// Namespace tags every secret so malformed bearer tokens can be rejected
	// before any store lookup.
	Namespace = "1lab_sk_"

	// secretEntropyBytes is the random payload appended to the namespace.
	secretEntropyBytes = 24

	// prefixLength is how many leading characters of the plaintext are safe
	// to show back to the user.
	prefixLength = 16
)

// secretPattern matches the namespace followed by at least 24 URL-safe chars.
var secretPattern = regexp.MustCompile(`^1lab_sk_[A-Za-z0-9_-]{24,}$`)

// Material is the generated secret along with its derived, persistable parts.
type Material struct {
	Secret string // full plaintext, returned to the caller exactly once
	Prefix string // display-safe leading substring
	Hash   string // hex SHA-256 of the plaintext, the only stored form
}

// Generate produces fresh key material using crypto/rand.
func Generate() (Material, error) {
	return GenerateFrom(rand.Reader)
}

// GenerateFrom produces key material reading randomness from r. Tests inject
// a deterministic reader here.
func GenerateFrom(r io.Reader) (Material, error) {
	buf := make([]byte, secretEntropyBytes)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Material{}, fmt.Errorf("read randomness: %w", err)
	}
	secret := Namespace + base64.RawURLEncoding.EncodeToString(buf)
	return Material{
		Secret: secret,
		Prefix: Prefix(secret),
		Hash:   Hash(secret),
	}, nil
}

// Prefix returns the display form of a secret: the leading characters plus an
// ellipsis marker. It never exposes enough of the secret to matter.
func Prefix(secret string) string {
	if len(secret) <= prefixLength {
		return secret
	}
	return secret[:prefixLength] + "..."
}

// Hash computes the hex-encoded SHA-256 digest of the full plaintext.
func Hash(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// IsValidFormat reports whether candidate looks like a secret this system
// issued. It is a cheap filter, not an authenticity check.
func IsValidFormat(candidate string) bool {
	return secretPattern.MatchString(candidate)
}
