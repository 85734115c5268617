package main

import (
	"image"
	"image/png"
	"io"

	"golang.org/x/image/draw"
)

// decodePNGReader mirrors internal/project's PNG normalization for the
// CLI's repack path, which reads directly from an *os.File rather than a
// path on disk.
func decodePNGReader(r io.Reader) ([]byte, int, int, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, 0, 0, err
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
		return nrgba.Pix, w, h, nil
	}
	out := make([]byte, w*h*4)
	for row := 0; row < h; row++ {
		copy(out[row*w*4:row*w*4+w*4], nrgba.Pix[row*nrgba.Stride:row*nrgba.Stride+w*4])
	}
	return out, w, h, nil
}
