package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash generates a SHA-256 hash of the input string
func Hash(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// ShortHash returns the first 8 hex characters of Hash.
func ShortHash(input string) string {
	return Hash(input)[:8]
}

// ViewerKey identifies a reader for view de-duplication without storing the
// raw address.
func ViewerKey(ip, userAgent string) string {
	return Hash(ip + "|" + userAgent)
}
