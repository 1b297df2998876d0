package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
)

const (
	MinKeyLength = 16
	MaxKeyLength = 128
	KeyPrefix    = "gpstracker:v1:idempotency"
)

var (
	ErrKeyTooShort = errors.New("idempotency key must be at least 16 characters")
	ErrKeyTooLong  = errors.New("idempotency key must not exceed 128 characters")
	ErrKeyInvalid  = errors.New("idempotency key contains invalid characters")
	ErrKeyReused   = errors.New("idempotency key was already used with a different request payload")

	validKeyPattern = regexp.MustCompile(`^[a-zA-Z0-9\-_]+$`)
)

// Validate checks if the idempotency key is valid.
func Validate(key string) error {
	if len(key) < MinKeyLength {
		return ErrKeyTooShort
	}

	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}

	if !validKeyPattern.MatchString(key) {
		return ErrKeyInvalid
	}

	return nil
}

// BuildCacheKey constructs the cache key from a method, path, and idempotency key.
func BuildCacheKey(method, path, idempotencyKey string) string {
	return fmt.Sprintf("%s:%s", KeyPrefix, digest(fmt.Sprintf("%s:%s:%s", method, path, idempotencyKey)))
}

// Fingerprint identifies a request payload so that a replay can be matched
// against the request that first used the key.
func Fingerprint(body []byte) string {
	return digest(string(body))
}

// CheckFingerprint returns ErrKeyReused when a stored fingerprint does not
// match the current one. An empty stored fingerprint always matches.
func CheckFingerprint(stored, current string) error {
	if stored == "" || stored == current {
		return nil
	}

	return ErrKeyReused
}

func digest(value string) string {
	hash := sha256.Sum256([]byte(value))

	return hex.EncodeToString(hash[:])
}
