// Package codec decodes source files into float pixel buffers and
// encodes results back to disk.  Format support comes from the imaging
// library plus the x/image decoders registered below.
package codec

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/AnyUserName/upres/internal/pixmap"
)

var (
	ErrDecode = errors.New("cannot decode input image")
	ErrEncode = errors.New("cannot encode output image")
)

// Meta describes a decoded source.
type Meta struct {
	Format   string
	Width    int
	Height   int
	HasAlpha bool
	// Lossy marks container formats whose compression noise the
	// auto mode should denoise.
	Lossy bool
}

// lossyExts are the JPEG-family extensions.
var lossyExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
}

// LossyPath reports whether the file extension names a lossy container.
func LossyPath(path string) bool {
	return lossyExts[strings.ToLower(filepath.Ext(path))]
}

// decodableExts are the extensions Decode understands: the imaging
// formats plus the x/image decoders registered above.
var decodableExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
	".webp": true,
}

// DecodablePath reports whether the file extension names a decodable
// format.
func DecodablePath(path string) bool {
	return decodableExts[strings.ToLower(filepath.Ext(path))]
}

// Format returns the canonical format name for a path's extension
// (jpg folds into jpeg, tif into tiff), or "" when the extension is
// not decodable.
func Format(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if !decodableExts[ext] {
		return ""
	}
	switch ext {
	case ".jpg":
		return "jpeg"
	case ".tif":
		return "tiff"
	}
	return strings.TrimPrefix(ext, ".")
}

// Decode reads path into a float image.  The result has 4 channels
// when the file carries transparency, otherwise 3.
func Decode(path string) (*pixmap.Image, Meta, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, Meta{}, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	nrgba := imaging.Clone(img)

	channels := 3
	if hasAlpha(nrgba.Pix) {
		channels = 4
	}

	meta := Meta{
		Format:   Format(path),
		Width:    nrgba.Rect.Dx(),
		Height:   nrgba.Rect.Dy(),
		HasAlpha: channels == 4,
		Lossy:    LossyPath(path),
	}
	return pixmap.FromNRGBA(nrgba, channels), meta, nil
}

func hasAlpha(pix []uint8) bool {
	for i := 3; i < len(pix); i += 4 {
		if pix[i] != 255 {
			return true
		}
	}
	return false
}

// Encode quantizes the image and writes it to path; the format follows
// the extension (JPEG at high quality, PNG and the rest as-is).
func Encode(im *pixmap.Image, path string) error {
	nrgba := im.ToNRGBA()
	if err := imaging.Save(nrgba, path, imaging.JPEGQuality(95)); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrEncode, path, err)
	}
	return nil
}
