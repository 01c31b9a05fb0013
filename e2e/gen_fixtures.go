//go:build ignore

// gen_fixtures creates tiny weight files and sample images for a
// manual smoke run:
//
//	go run gen_fixtures.go fixtures
//	upres process fixtures/images --model-dir fixtures/models -m auto_scale
//
// The scale model is an identity pass-through and the noise model a
// mild blur, so results are visually checkable without real weights.
package main

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
)

type layer struct {
	InPlanes  int             `json:"nInputPlane"`
	OutPlanes int             `json:"nOutputPlane"`
	KW        int             `json:"kW"`
	KH        int             `json:"kH"`
	Weight    [][][][]float32 `json:"weight"`
	Bias      []float32       `json:"bias"`
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gen_fixtures <output_dir>")
		os.Exit(1)
	}
	dir := os.Args[1]
	modelDir := filepath.Join(dir, "models")
	imageDir := filepath.Join(dir, "images")
	os.MkdirAll(modelDir, 0o755)
	os.MkdirAll(imageDir, 0o755)

	writeModel(filepath.Join(modelDir, "scale2.0x_model.json"), identity())
	for n := 0; n <= 3; n++ {
		name := fmt.Sprintf("noise%d_model.json", n)
		writeModel(filepath.Join(modelDir, name), blur(float32(n)))
	}

	writeJPEG(filepath.Join(imageDir, "photo.jpg"), gradient(320, 200))
	writePNG(filepath.Join(imageDir, "art.png"), checker(128, 128, 8))
	writePNG(filepath.Join(imageDir, "logo.png"), alphaGradient(96, 96))

	fmt.Fprintf(os.Stderr, "[gen_fixtures] created fixtures in %s\n", dir)
}

// identity is a single layer whose only tap is a unit center weight.
func identity() []layer {
	return []layer{kernelLayer([][]float32{
		{0, 0, 0},
		{0, 1, 0},
		{0, 0, 0},
	})}
}

// blur mixes the center with its neighbors; stronger noise levels mix
// harder.
func blur(level float32) []layer {
	edge := 0.02 * (level + 1)
	center := 1 - 8*edge
	return []layer{kernelLayer([][]float32{
		{edge, edge, edge},
		{edge, center, edge},
		{edge, edge, edge},
	})}
}

func kernelLayer(k [][]float32) layer {
	return layer{
		InPlanes: 1, OutPlanes: 1, KW: 3, KH: 3,
		Weight: [][][][]float32{{k}},
		Bias:   []float32{0},
	}
}

func writeModel(path string, layers []layer) {
	data, err := json.Marshal(layers)
	if err != nil {
		panic(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		panic(err)
	}
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

func checker(w, h, cell int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(40)
			if (x/cell+y/cell)%2 == 0 {
				v = 220
			}
			img.SetNRGBA(x, y, color.NRGBA{v, v, v, 255})
		}
	}
	return img
}

func alphaGradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{200, 60, 60, uint8(x * 255 / w)})
		}
	}
	return img
}

func writePNG(path string, img image.Image) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		panic(err)
	}
}

func writeJPEG(path string, img image.Image) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 80}); err != nil {
		panic(err)
	}
}
