package project

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"

	"golang.org/x/image/draw"
)

// DecodePNGFile reads a PNG and returns its pixels as row-major top-down
// RGBA8888, regardless of the source file's native color model
// (paletted, grayscale, premultiplied-alpha RGBA, etc). Non-NRGBA
// sources are normalized through golang.org/x/image/draw onto a fresh
// *image.NRGBA canvas rather than hand-rolling a conversion per color
// model.
func DecodePNGFile(path string) ([]byte, int, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("project: reading %s: %w", path, err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("project: decoding %s: %w", path, err)
	}

	nrgba, ok := img.(*image.NRGBA)
	if !ok {
		b := img.Bounds()
		dst := image.NewNRGBA(b)
		draw.Draw(dst, b, img, b.Min, draw.Src)
		nrgba = dst
	}

	w, h := nrgba.Bounds().Dx(), nrgba.Bounds().Dy()
	if nrgba.Stride == w*4 {
		return append([]byte(nil), nrgba.Pix...), w, h, nil
	}
	out := make([]byte, w*h*4)
	for row := 0; row < h; row++ {
		copy(out[row*w*4:row*w*4+w*4], nrgba.Pix[row*nrgba.Stride:row*nrgba.Stride+w*4])
	}
	return out, w, h, nil
}

// EncodePNGFile writes row-major top-down RGBA8888 pixels as a PNG.
func EncodePNGFile(path string, rgba []byte, w, h int) error {
	img := &image.NRGBA{
		Pix:    rgba,
		Stride: w * 4,
		Rect:   image.Rect(0, 0, w, h),
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("project: encoding PNG: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
