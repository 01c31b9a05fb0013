package hasher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint(t *testing.T) {
	full := Fingerprint([]byte("weights"), 0)
	assert.Len(t, full, 16)

	short := Fingerprint([]byte("weights"), 8)
	assert.Len(t, short, 8)
	assert.Equal(t, full[:8], short)

	// Length beyond the digest keeps the full form.
	assert.Equal(t, full, Fingerprint([]byte("weights"), 32))

	assert.NotEqual(t, full, Fingerprint([]byte("weightz"), 0))
}

func TestFingerprintFileMatchesBytes(t *testing.T) {
	data := []byte("layer dump contents")
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	got, err := FingerprintFile(path, 0)
	require.NoError(t, err)
	assert.Equal(t, Fingerprint(data, 0), got)
}

func TestFingerprintFileMissing(t *testing.T) {
	_, err := FingerprintFile(filepath.Join(t.TempDir(), "absent"), 8)
	assert.Error(t, err)
}
