package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint hashes text with runs of whitespace collapsed, so copies of a
// headline that differ only in spacing share a key.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(strings.Join(strings.Fields(text), " ")))
	return hex.EncodeToString(sum[:])
}
