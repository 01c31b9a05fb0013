package pipeline

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/AnyUserName/upres/internal/codec"
)

// Source is one image file discovered under an input directory.
type Source struct {
	// AbsPath is the path to the file on disk.
	AbsPath string
	// RelPath is the path relative to the input directory, slash form.
	RelPath string
	// Format is the canonical container format (png, jpeg, webp, ...).
	Format string
	// Size is the file size in bytes.
	Size int64
}

// ScanImages walks an input directory and collects every file the
// codec can decode, skipping hidden directories.  Batch runs feed the
// result to one Pipeline instance sequentially.
func ScanImages(inputDir string) ([]Source, error) {
	var sources []Source

	err := filepath.WalkDir(inputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != inputDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !codec.DecodablePath(path) {
			return nil
		}

		rel, err := filepath.Rel(inputDir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		sources = append(sources, Source{
			AbsPath: path,
			RelPath: filepath.ToSlash(rel),
			Format:  codec.Format(path),
			Size:    info.Size(),
		})
		return nil
	})

	return sources, err
}
