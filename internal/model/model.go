// Package model loads trained convolution weights.  The canonical
// format is the JSON layer dump produced by the trainer
// (noise<N>_model.json, scale2.0x_model.json), optionally gzipped.
// Parsing the JSON is slow, so a flattened binary copy is cached next
// to the source, keyed by the xxhash of the JSON bytes.
package model

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Kind selects which trained network to load.
type Kind string

const (
	Noise Kind = "noise"
	Scale Kind = "scale"
)

var (
	// ErrNotFound means the weight file is absent from the model dir.
	ErrNotFound = errors.New("model weights not found")
	// ErrFormat means the weight file exists but cannot be parsed or
	// its layer shapes are inconsistent.
	ErrFormat = errors.New("malformed model weights")
)

// Layer is one convolution: OutPlanes filters of InPlanes×KH×KW taps.
// Weights are flattened out-plane-major: [out][in][ky][kx].
type Layer struct {
	InPlanes  int
	OutPlanes int
	KW, KH    int
	Weights   []float32
	Bias      []float32
}

// Model is an ordered convolution stack.
type Model struct {
	Layers []Layer
}

// Shrinkage is the number of pixels lost per side across the stack:
// (K−1)/2 per layer for odd square kernels.
func (m *Model) Shrinkage() int {
	s := 0
	for _, l := range m.Layers {
		s += (l.KH - 1) / 2
	}
	return s
}

// Params returns the total trained parameter count.
func (m *Model) Params() int {
	n := 0
	for _, l := range m.Layers {
		n += len(l.Weights) + len(l.Bias)
	}
	return n
}

// FileName is the conventional weight file name for a kind.
func FileName(kind Kind, noiseLevel int) string {
	if kind == Noise {
		return fmt.Sprintf("noise%d_model.json", noiseLevel)
	}
	return "scale2.0x_model.json"
}

// Load reads the weights for kind from dir, preferring the binary
// cache when it matches the JSON source.
func Load(dir string, kind Kind, noiseLevel int) (*Model, error) {
	return LoadFile(filepath.Join(dir, FileName(kind, noiseLevel)))
}

// LoadFile loads a specific weight file.  A missing path is retried
// with a .gz suffix before giving up.
func LoadFile(path string) (*Model, error) {
	raw, path, err := readWeights(path)
	if err != nil {
		return nil, err
	}
	sum := xxhash.Sum64(raw)

	cachePath := cachePathFor(path)
	if m, err := readCache(cachePath, sum); err == nil {
		return m, nil
	}

	m, err := parseJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	// Cache write is best effort; a read-only model dir is fine.
	_ = writeCache(cachePath, sum, m)

	return m, nil
}

// Cached reports whether a valid binary cache exists for path.
func Cached(path string) bool {
	raw, path, err := readWeights(path)
	if err != nil {
		return false
	}
	_, err = readCache(cachePathFor(path), xxhash.Sum64(raw))
	return err == nil
}

// readWeights returns the raw JSON bytes, transparently gunzipping,
// and the path actually read.
func readWeights(path string) ([]byte, string, error) {
	if _, err := os.Stat(path); err != nil {
		if _, gzErr := os.Stat(path + ".gz"); gzErr == nil {
			path += ".gz"
		} else {
			return nil, path, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, path, fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, path, fmt.Errorf("%w: %s: %v", ErrFormat, path, err)
		}
		defer gz.Close()
		r = gz
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, path, fmt.Errorf("%w: %s: %v", ErrFormat, path, err)
	}
	return raw, path, nil
}

func cachePathFor(jsonPath string) string {
	p := strings.TrimSuffix(jsonPath, ".gz")
	p = strings.TrimSuffix(p, ".json")
	return p + ".bin.zst"
}

// jsonLayer mirrors the trainer's dump: weight is [out][in][ky][kx].
type jsonLayer struct {
	InPlanes  int             `json:"nInputPlane"`
	OutPlanes int             `json:"nOutputPlane"`
	KW        int             `json:"kW"`
	KH        int             `json:"kH"`
	Weight    [][][][]float32 `json:"weight"`
	Bias      []float32       `json:"bias"`
}

func parseJSON(raw []byte) (*Model, error) {
	var layers []jsonLayer
	if err := json.Unmarshal(raw, &layers); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("%w: no layers", ErrFormat)
	}

	m := &Model{Layers: make([]Layer, len(layers))}
	for li, jl := range layers {
		l := Layer{
			InPlanes:  jl.InPlanes,
			OutPlanes: jl.OutPlanes,
			KW:        jl.KW,
			KH:        jl.KH,
			Bias:      jl.Bias,
		}
		if len(jl.Weight) != jl.OutPlanes || len(jl.Bias) != jl.OutPlanes {
			return nil, fmt.Errorf("%w: layer %d: %d filters, %d biases, nOutputPlane %d",
				ErrFormat, li, len(jl.Weight), len(jl.Bias), jl.OutPlanes)
		}
		l.Weights = make([]float32, 0, jl.OutPlanes*jl.InPlanes*jl.KH*jl.KW)
		for _, filter := range jl.Weight {
			if len(filter) != jl.InPlanes {
				return nil, fmt.Errorf("%w: layer %d: filter has %d input planes, want %d",
					ErrFormat, li, len(filter), jl.InPlanes)
			}
			for _, kernel := range filter {
				if len(kernel) != jl.KH {
					return nil, fmt.Errorf("%w: layer %d: kernel has %d rows, want %d",
						ErrFormat, li, len(kernel), jl.KH)
				}
				for _, krow := range kernel {
					if len(krow) != jl.KW {
						return nil, fmt.Errorf("%w: layer %d: kernel row has %d taps, want %d",
							ErrFormat, li, len(krow), jl.KW)
					}
					l.Weights = append(l.Weights, krow...)
				}
			}
		}
		if li > 0 && m.Layers[li-1].OutPlanes != l.InPlanes {
			return nil, fmt.Errorf("%w: layer %d consumes %d planes, layer %d produces %d",
				ErrFormat, li, l.InPlanes, li-1, m.Layers[li-1].OutPlanes)
		}
		m.Layers[li] = l
	}
	return m, nil
}

// Binary cache layout (zstd-compressed, little endian):
// magic "UPRW", version u8, xxhash64 of the JSON source, layer count
// u32, then per layer: in/out/kw/kh u32, bias floats, weight floats.
const cacheMagic = "UPRW"
const cacheVersion = 1

func writeCache(path string, sum uint64, m *Model) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return err
	}
	if _, err := zw.Write([]byte(cacheMagic)); err != nil {
		return err
	}
	if _, err := zw.Write([]byte{cacheVersion}); err != nil {
		return err
	}
	if err := binary.Write(zw, binary.LittleEndian, sum); err != nil {
		return err
	}
	if err := binary.Write(zw, binary.LittleEndian, uint32(len(m.Layers))); err != nil {
		return err
	}
	for _, l := range m.Layers {
		dims := [4]uint32{uint32(l.InPlanes), uint32(l.OutPlanes), uint32(l.KW), uint32(l.KH)}
		if err := binary.Write(zw, binary.LittleEndian, dims); err != nil {
			return err
		}
		if err := binary.Write(zw, binary.LittleEndian, l.Bias); err != nil {
			return err
		}
		if err := binary.Write(zw, binary.LittleEndian, l.Weights); err != nil {
			return err
		}
	}
	return zw.Close()
}

func readCache(path string, wantSum uint64) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	header := make([]byte, len(cacheMagic)+1)
	if _, err := io.ReadFull(zr, header); err != nil {
		return nil, err
	}
	if string(header[:len(cacheMagic)]) != cacheMagic || header[len(cacheMagic)] != cacheVersion {
		return nil, fmt.Errorf("%w: bad cache header", ErrFormat)
	}
	var sum uint64
	if err := binary.Read(zr, binary.LittleEndian, &sum); err != nil {
		return nil, err
	}
	if sum != wantSum {
		return nil, fmt.Errorf("%w: cache is stale", ErrFormat)
	}
	var count uint32
	if err := binary.Read(zr, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	if count == 0 || count > 1024 {
		return nil, fmt.Errorf("%w: implausible layer count %d", ErrFormat, count)
	}

	m := &Model{Layers: make([]Layer, count)}
	for i := range m.Layers {
		var dims [4]uint32
		if err := binary.Read(zr, binary.LittleEndian, &dims); err != nil {
			return nil, err
		}
		for _, d := range dims {
			if d == 0 || d > 1<<12 {
				return nil, fmt.Errorf("%w: implausible layer dims %v", ErrFormat, dims)
			}
		}
		if n := uint64(dims[0]) * uint64(dims[1]) * uint64(dims[2]) * uint64(dims[3]); n > 1<<26 {
			return nil, fmt.Errorf("%w: implausible weight count %d", ErrFormat, n)
		}
		l := Layer{
			InPlanes:  int(dims[0]),
			OutPlanes: int(dims[1]),
			KW:        int(dims[2]),
			KH:        int(dims[3]),
		}
		l.Bias = make([]float32, l.OutPlanes)
		if err := binary.Read(zr, binary.LittleEndian, l.Bias); err != nil {
			return nil, err
		}
		l.Weights = make([]float32, l.OutPlanes*l.InPlanes*l.KH*l.KW)
		if err := binary.Read(zr, binary.LittleEndian, l.Weights); err != nil {
			return nil, err
		}
		m.Layers[i] = l
	}
	return m, nil
}
