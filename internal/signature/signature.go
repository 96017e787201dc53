package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// SecretPrefix makes webhook secrets recognizable in logs and config,
	// distinct from API keys and other credential types.
	SecretPrefix = "whsec_"

	secretRandomBytes = 32
	maskVisibleSuffix = 6
	maskFill          = "******"
)

// Sign computes the hex HMAC-SHA256 of payload under secret.
//
// The payload must be the exact byte sequence placed on the wire; signing a
// re-serialization would break receiver-side verification.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signatureHex is a valid signature of payload under
// secret. Comparison is constant-time.
func Verify(payload []byte, secret string, signatureHex string) bool {
	expected := Sign(payload, secret)
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signatureHex)))
}

// NewSecret generates a fresh subscription secret from a cryptographically
// secure random source. Secrets are generated exactly once per subscription;
// rotation is delete and recreate.
func NewSecret() (string, error) {
	buf := make([]byte, secretRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return SecretPrefix + hex.EncodeToString(buf), nil
}

// MaskSecret returns the display form of a secret: the recognizable prefix, a
// fixed filler, and the last six characters. The unmasked value is only ever
// returned from subscription creation.
func MaskSecret(secret string) string {
	if len(secret) <= len(SecretPrefix)+maskVisibleSuffix {
		return SecretPrefix + maskFill
	}
	return SecretPrefix + maskFill + secret[len(secret)-maskVisibleSuffix:]
}
