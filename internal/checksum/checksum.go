// Package checksum fingerprints stored records and rendered pages so that
// unchanged ones can be skipped.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Record encodes v as JSON and returns the encoding with its digest. Struct
// fields encode in declaration order, so equal records give equal sums.
func Record(v any) ([]byte, string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, "", fmt.Errorf("checksum: encode: %w", err)
	}
	return raw, Sum(raw), nil
}
