package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnyUserName/upres/internal/codec"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestScanImages(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.png"))
	touch(t, filepath.Join(dir, "b.JPG"))
	touch(t, filepath.Join(dir, "anim.gif"))
	touch(t, filepath.Join(dir, "sub", "c.webp"))
	touch(t, filepath.Join(dir, "sub", "scan.tif"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, ".cache", "d.png"))

	sources, err := ScanImages(dir)
	require.NoError(t, err)
	require.Len(t, sources, 5)

	byRel := map[string]Source{}
	for _, s := range sources {
		byRel[s.RelPath] = s
		assert.Equal(t, filepath.Join(dir, filepath.FromSlash(s.RelPath)), s.AbsPath)
		assert.EqualValues(t, 1, s.Size)
		// Everything scanned must be decodable; the scanner owns no
		// format list of its own.
		assert.True(t, codec.DecodablePath(s.AbsPath), s.RelPath)
		assert.Equal(t, codec.Format(s.AbsPath), s.Format)
	}

	assert.Contains(t, byRel, "a.png")
	assert.Equal(t, "jpeg", byRel["b.JPG"].Format)
	assert.Equal(t, "gif", byRel["anim.gif"].Format)
	assert.Equal(t, "webp", byRel["sub/c.webp"].Format)
	assert.Equal(t, "tiff", byRel["sub/scan.tif"].Format)
	assert.NotContains(t, byRel, "notes.txt")
	assert.NotContains(t, byRel, ".cache/d.png")
}

func TestScanImagesMissingDir(t *testing.T) {
	_, err := ScanImages(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}
