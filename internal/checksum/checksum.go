// Package checksum computes content fingerprints used for change detection.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// DefaultCap bounds how many leading bytes of a file contribute to its
// fingerprint. Large files are fingerprinted by their first MiB only;
// anything smaller is hashed whole.
const DefaultCap = 1 << 20

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SumFile returns the hex-encoded SHA-256 digest of at most cap leading
// bytes of the file at path. A cap <= 0 falls back to DefaultCap.
func SumFile(path string, byteCap int64) (string, error) {
	if byteCap <= 0 {
		byteCap = DefaultCap
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("checksum: open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, io.LimitReader(f, byteCap)); err != nil {
		return "", fmt.Errorf("checksum: read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
