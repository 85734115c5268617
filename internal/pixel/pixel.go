// Package pixel converts between the canonical RGBA8888 in-memory image
// form and the pixel encodings the two boot container formats store on
// disk: byte-swapped BGRA, packed RGB565, and row-padded Windows BMP.
package pixel

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Endian selects how a multi-byte pixel value is laid out in the container.
type Endian int

const (
	LittleEndian Endian = iota
	BigEndian
)

// Kind names a boot-container pixel encoding.
type Kind int

const (
	RGBA Kind = iota
	BGRA
	RGB565
)

// ColorMode is a (Kind, Endian) pair plus its derived bytes-per-pixel and
// canonical short name used in MTK project filenames.
type ColorMode struct {
	Kind   Kind
	Endian Endian
}

// BytesPerPixel returns 4 for RGBA/BGRA and 2 for RGB565.
func (m ColorMode) BytesPerPixel() int {
	if m.Kind == RGB565 {
		return 2
	}
	return 4
}

// Name returns the canonical short name: "rgbabe", "bgrale", "rgb565le", etc.
func (m ColorMode) Name() string {
	var k string
	switch m.Kind {
	case RGBA:
		k = "rgba"
	case BGRA:
		k = "bgra"
	case RGB565:
		k = "rgb565"
	default:
		k = "unknown"
	}
	if m.Endian == BigEndian {
		return k + "be"
	}
	return k + "le"
}

var (
	RGBALE    = ColorMode{Kind: RGBA, Endian: LittleEndian}
	RGBABE    = ColorMode{Kind: RGBA, Endian: BigEndian}
	BGRALE    = ColorMode{Kind: BGRA, Endian: LittleEndian}
	BGRABE    = ColorMode{Kind: BGRA, Endian: BigEndian}
	RGB565LE  = ColorMode{Kind: RGB565, Endian: LittleEndian}
	RGB565BE  = ColorMode{Kind: RGB565, Endian: BigEndian}
)

// ErrShortBuffer reports that a source buffer didn't hold whole pixels for
// the requested dimensions.
var ErrShortBuffer = errors.New("pixel: buffer too short for width*height")

// ModeByName looks up a ColorMode by its canonical short name ("rgbale",
// "bgrabe", "rgb565le", ...), as used in CLI flags and repack filenames.
func ModeByName(name string) (ColorMode, bool) {
	for _, m := range []ColorMode{RGBALE, RGBABE, BGRALE, BGRABE, RGB565LE, RGB565BE} {
		if m.Name() == name {
			return m, true
		}
	}
	return ColorMode{}, false
}

// ToRGBA converts raw bytes in the given ColorMode to row-major top-down
// RGBA8888. w*h*mode.BytesPerPixel() bytes are consumed from raw.
func ToRGBA(raw []byte, w, h int, mode ColorMode) ([]byte, error) {
	bpp := mode.BytesPerPixel()
	n := w * h
	if len(raw) < n*bpp {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrShortBuffer, len(raw), n*bpp)
	}
	out := make([]byte, n*4)
	switch mode.Kind {
	case RGBA:
		copyOrSwapQuads(out, raw, n, mode.Endian, false)
	case BGRA:
		copyOrSwapQuads(out, raw, n, mode.Endian, true)
	case RGB565:
		rgb565ToRGBA(out, raw, n, mode.Endian)
	}
	return out, nil
}

// FromRGBA converts row-major top-down RGBA8888 into the given ColorMode.
func FromRGBA(rgba []byte, w, h int, mode ColorMode) ([]byte, error) {
	n := w * h
	if len(rgba) < n*4 {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrShortBuffer, len(rgba), n*4)
	}
	bpp := mode.BytesPerPixel()
	out := make([]byte, n*bpp)
	switch mode.Kind {
	case RGBA:
		quadsFromRGBA(out, rgba, n, mode.Endian, false)
	case BGRA:
		quadsFromRGBA(out, rgba, n, mode.Endian, true)
	case RGB565:
		rgba565FromRGBA(out, rgba, n, mode.Endian)
	}
	return out, nil
}

// copyOrSwapQuads expands 4-byte RGBA/BGRA source pixels into the
// canonical RGBA8888 destination, optionally swapping R and B and
// honoring the source endianness (big-endian stores the channels in
// reverse byte order within each 4-byte pixel).
func copyOrSwapQuads(dst, src []byte, n int, endian Endian, swapRB bool) {
	for i := 0; i < n; i++ {
		s := src[i*4 : i*4+4]
		var r, g, b, a byte
		if endian == LittleEndian {
			r, g, b, a = s[0], s[1], s[2], s[3]
		} else {
			r, g, b, a = s[3], s[2], s[1], s[0]
		}
		if swapRB {
			r, b = b, r
		}
		d := dst[i*4 : i*4+4]
		d[0], d[1], d[2], d[3] = r, g, b, a
	}
}

func quadsFromRGBA(dst, src []byte, n int, endian Endian, swapRB bool) {
	for i := 0; i < n; i++ {
		s := src[i*4 : i*4+4]
		r, g, b, a := s[0], s[1], s[2], s[3]
		if swapRB {
			r, b = b, r
		}
		d := dst[i*4 : i*4+4]
		if endian == LittleEndian {
			d[0], d[1], d[2], d[3] = r, g, b, a
		} else {
			d[0], d[1], d[2], d[3] = a, b, g, r
		}
	}
}

// rgb565ToRGBA unpacks a u16 RGB565 pixel into RGBA, forcing alpha to 255
// (RGB565 carries no alpha channel).
func rgb565ToRGBA(dst, src []byte, n int, endian Endian) {
	for i := 0; i < n; i++ {
		s := src[i*2 : i*2+2]
		var v uint16
		if endian == LittleEndian {
			v = binary.LittleEndian.Uint16(s)
		} else {
			v = binary.BigEndian.Uint16(s)
		}
		r5 := byte(v >> 11 & 0x1F)
		g6 := byte(v >> 5 & 0x3F)
		b5 := byte(v & 0x1F)
		d := dst[i*4 : i*4+4]
		d[0] = r5<<3 | r5>>2
		d[1] = g6<<2 | g6>>4
		d[2] = b5<<3 | b5>>2
		d[3] = 255
	}
}

// rgba565FromRGBA packs RGBA into RGB565, discarding alpha.
func rgba565FromRGBA(dst, src []byte, n int, endian Endian) {
	for i := 0; i < n; i++ {
		s := src[i*4 : i*4+4]
		v := uint16(s[0]>>3)<<11 | uint16(s[1]>>2)<<5 | uint16(s[2]>>3)
		d := dst[i*2 : i*2+2]
		if endian == LittleEndian {
			binary.LittleEndian.PutUint16(d, v)
		} else {
			binary.BigEndian.PutUint16(d, v)
		}
	}
}
