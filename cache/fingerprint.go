package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint hashes a credential into a short, fixed-length cache key.
// Cache backends never see the raw credential value.
func Fingerprint(credential string) string {
	hasher := sha256.New()
	hasher.Write([]byte(credential))
	return hex.EncodeToString(hasher.Sum(nil))
}
