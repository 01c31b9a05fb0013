// Package hasher fingerprints weight files with xxHash64.  The model
// cache stores the raw 64-bit sum; the CLI shows the hex form so a
// user can tell two weight sets apart at a glance.
package hasher

import (
	"encoding/binary"
	"encoding/hex"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint returns the hex xxHash64 of data, truncated to hexLen
// characters (0 keeps all 16).
func Fingerprint(data []byte, hexLen int) string {
	return truncate(xxhash.Sum64(data), hexLen)
}

// FingerprintFile streams a file through xxHash64.
func FingerprintFile(path string, hexLen int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return truncate(h.Sum64(), hexLen), nil
}

func truncate(sum uint64, hexLen int) string {
	full := hex.EncodeToString(binary.BigEndian.AppendUint64(nil, sum))
	if hexLen > 0 && hexLen < len(full) {
		return full[:hexLen]
	}
	return full
}
