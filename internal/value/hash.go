package value

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed hashing. The version suffix enables
// future algorithm migration without silently colliding with old hashes.
const (
	DomainIdentity    = "protograph/identity/v1"    // stable node identity
	DomainFingerprint = "protograph/fingerprint/v1" // shallow node fingerprint
	DomainInputs      = "protograph/inputs/v1"      // evaluated input tuple
	DomainContext     = "protograph/context/v1"     // declared context subset
	DomainDocument    = "protograph/document/v1"    // serialized graph document
)

// HashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte separator prevents
// domain/data boundary ambiguity.
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// HashValue computes the content hash of a single value under the given
// domain. Returns an error if the value cannot be canonically encoded.
func HashValue(domain string, v Value) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("HashValue: %w", err)
	}
	return HashWithDomain(domain, canonical), nil
}

// HashValues computes the content hash of an ordered value tuple. Used for
// the per-evaluation input hash that keys the result cache.
func HashValues(domain string, vals []Value) (string, error) {
	return HashValue(domain, List(vals))
}
