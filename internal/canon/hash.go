package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ShortHashLen is the length of the compact hash used in marker IDs.
const ShortHashLen = 16

// Domain prefixes for domain-separated hashes.
// Version suffix enables future algorithm migration.
const (
	DomainDraft = "autus/draft/v1"
)

// Hash returns the 64-hex SHA-256 digest of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ShortHash returns the first 16 hex characters of Hash(data).
func ShortHash(data []byte) string {
	return Short(Hash(data))
}

// Short truncates a full hex digest to ShortHashLen characters.
// Digests shorter than that are returned unchanged.
func Short(full string) string {
	if len(full) <= ShortHashLen {
		return full
	}
	return full[:ShortHashLen]
}

// DomainHash computes SHA256(domain || 0x00 || data).
// The null separator prevents domain/data boundary ambiguity.
func DomainHash(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// HashValue returns Hash(MarshalCanonical(v)).
func HashValue(v any) (string, error) {
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("hash value: %w", err)
	}
	return Hash(data), nil
}

// ShortHashValue returns ShortHash(MarshalCanonical(v)).
func ShortHashValue(v any) (string, error) {
	full, err := HashValue(v)
	if err != nil {
		return "", err
	}
	return Short(full), nil
}
