// Package bootimg reads and writes the two boot-logo/splash-image
// container formats found on Android-class devices: MediaTek's
// logo.bin and Qualcomm/OPPO's splash.img. It decodes the embedded
// pixel data, lets a caller replace individual images with externally
// supplied PNGs, and reassembles a byte-exact container.
package bootimg

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/badmaneers/bootmod/internal/byteio"
	"github.com/badmaneers/bootmod/internal/pixel"
)

// Format names which container format a BootImage holds.
type Format int

const (
	FormatUnknown Format = iota
	FormatMTK
	FormatOPPO
)

func (f Format) String() string {
	switch f {
	case FormatMTK:
		return "mtk"
	case FormatOPPO:
		return "oppo"
	default:
		return "unknown"
	}
}

// ColorMode re-exports internal/pixel's pixel-format type: the boot
// container formats and the project workspace both need to name a
// {RGBA,BGRA,RGB565} x {LE,BE} mode without importing internal/pixel
// directly.
type ColorMode = pixel.ColorMode

var (
	RGBALE   = pixel.RGBALE
	RGBABE   = pixel.RGBABE
	BGRALE   = pixel.BGRALE
	BGRABE   = pixel.BGRABE
	RGB565LE = pixel.RGB565LE
	RGB565BE = pixel.RGB565BE
)

// ModeByName looks up a ColorMode by its canonical short name, e.g.
// "bgrale" or "rgb565be".
func ModeByName(name string) (ColorMode, bool) { return pixel.ModeByName(name) }

// Sentinel error kinds, per spec.md §7. Use errors.Is/errors.As against
// these; wrapped detail is attached with fmt.Errorf("%w: ...").
var (
	// ErrUnsupportedFormat is returned when the dispatcher cannot classify
	// a file as MTK or OPPO.
	ErrUnsupportedFormat = errors.New("bootimg: unsupported container format")
	// ErrIO wraps a file open/read/write failure.
	ErrIO = errors.New("bootimg: I/O error")
)

// MalformedError reports that a container's header or table failed
// structural validation.
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string { return fmt.Sprintf("bootimg: malformed container: %s", e.Reason) }

func malformed(format string, args ...any) error {
	return &MalformedError{Reason: fmt.Sprintf(format, args...)}
}

// CompressionError wraps an inflate/deflate failure encountered while
// loading or saving a slot.
type CompressionError struct {
	Op  string
	Err error
}

func (e *CompressionError) Error() string { return fmt.Sprintf("bootimg: %s: %v", e.Op, e.Err) }
func (e *CompressionError) Unwrap() error { return e.Err }

// DimensionMismatchError reports that a replacement image's dimensions
// differ from the slot's recorded dimensions.
type DimensionMismatchError struct {
	SlotWidth, SlotHeight int
	GotWidth, GotHeight   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("bootimg: replacement image is %dx%d, slot requires %dx%d",
		e.GotWidth, e.GotHeight, e.SlotWidth, e.SlotHeight)
}

// ImageSlot is one image entry in a BootImage, in either container
// format.
type ImageSlot struct {
	// Index is 1-based for MTK, 0-based for OPPO, matching the on-disk
	// project filenames.
	Index int
	// Width and Height may be 0 for an MTK blob whose dimension
	// inference failed.
	Width, Height int
	// Compressed holds the exact bytes stored in the container for this
	// slot. It is never synthesized from decodedCache unless Dirty is
	// set by a successful ReplaceImage.
	Compressed []byte
	// Dirty marks that Compressed was regenerated by a replace and must
	// not be treated as passthrough-original bytes.
	Dirty bool

	decodedCache []byte // lazy RGBA cache, invalidated on replace

	// NativeColorMode is the MTK pixel encoding this slot was stored in.
	// Zero value for OPPO slots.
	NativeColorMode ColorMode
	// BMPBitDepth is the OPPO BMP bit depth (8, 24, or 32) this slot was
	// stored at. Zero for MTK slots.
	BMPBitDepth int
	// BMPPalette holds the 256-entry BGRA palette for an 8-bit OPPO BMP
	// slot, nil otherwise.
	BMPPalette []byte
	// Name is the OPPO metadata record's identifier, as a NUL-terminated
	// display string derived from NameRaw. Empty for MTK slots.
	Name string
	// NameRaw holds the OPPO metadata record's 0x74-byte name field
	// verbatim, including any bytes after the first NUL terminator.
	// spec.md §4.E requires this field be "passed through byte-for-byte
	// from the loaded state" on save, so Name (a derived, truncated
	// string) is never written back — NameRaw is. Zero value for MTK
	// slots and for slots that were never loaded from an on-disk name
	// field.
	NameRaw [oppoNameSize]byte
	// RealSize is the OPPO metadata record's realsz field: the
	// decompressed BMP size, which is not generally equal to
	// len(Compressed) (the gzip-compressed size) and must be passed
	// through verbatim on an unmodified slot for byte-exact round-trip.
	// Zero for MTK slots.
	RealSize int
}

// BootImage is the in-memory representation of a loaded container.
type BootImage struct {
	Format Format
	Images []*ImageSlot

	mtk  *mtkState
	oppo *oppoState
}

// Sniff classifies raw container bytes as MTK, OPPO, or Unknown per
// spec.md §4.G. Extension is never consulted; only magic bytes are.
func Sniff(data []byte) Format {
	if len(data) >= oppoHeaderOffset+len(oppoMagic) && bytes.Equal(data[oppoHeaderOffset:oppoHeaderOffset+len(oppoMagic)], oppoMagic) {
		return FormatOPPO
	}
	if len(data) >= 4 {
		if magic, err := readU32BE(data, 0); err == nil && magic == mtkMagic {
			return FormatMTK
		}
	}
	return FormatUnknown
}

// Load parses container bytes into a BootImage, dispatching on Sniff's
// classification.
func Load(data []byte) (*BootImage, error) {
	switch Sniff(data) {
	case FormatMTK:
		return loadMTK(data)
	case FormatOPPO:
		return loadOPPO(data)
	default:
		return nil, fmt.Errorf("%w", ErrUnsupportedFormat)
	}
}

// LoadFile reads path and parses it with Load. The file is memory-mapped
// read-only when possible, falling back to a full read when mapping
// isn't available.
func LoadFile(path string) (*BootImage, error) {
	data, err := loadContainerFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return Load(data)
}

// Save serializes the BootImage back to its native container format,
// byte-exact when no slot has been modified.
func (b *BootImage) Save() ([]byte, error) {
	switch b.Format {
	case FormatMTK:
		return saveMTK(b)
	case FormatOPPO:
		return saveOPPO(b)
	default:
		return nil, fmt.Errorf("%w", ErrUnsupportedFormat)
	}
}

// SaveFile serializes and atomically writes the container to path.
func (b *BootImage) SaveFile(path string) error {
	data, err := b.Save()
	if err != nil {
		return err
	}
	if err := byteio.StoreFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

// GetImage decompresses and decodes slot index's pixels to RGBA8888,
// caching the result until the next ReplaceImage on the same slot.
func (b *BootImage) GetImage(index int) ([]byte, int, int, error) {
	slot := b.slotByIndex(index)
	if slot == nil {
		return nil, 0, 0, fmt.Errorf("bootimg: no slot with index %d", index)
	}
	if slot.decodedCache != nil {
		return slot.decodedCache, slot.Width, slot.Height, nil
	}

	switch b.Format {
	case FormatMTK:
		return b.decodeMTKSlot(slot)
	case FormatOPPO:
		return b.decodeOPPOSlot(slot)
	default:
		return nil, 0, 0, fmt.Errorf("%w", ErrUnsupportedFormat)
	}
}

// ReplaceImage replaces slot index's pixel data with the given RGBA8888
// image, re-encoding it in the slot's native format and recompressing.
// It preserves the slot's native_format (MTK ColorMode, or OPPO BMP bit
// depth) exactly: a 32-bit BGRA slot is never silently downgraded to
// 24-bit, and vice versa. On any failure, the slot's prior Compressed
// bytes are left untouched (rollback is implicit: nothing is mutated
// until encode+compress both succeed).
//
// For OPPO slots the alpha values are written as given, including 0;
// only the read path (GetImage on a 32-bit BMP) reports alpha 0 as 255.
func (b *BootImage) ReplaceImage(index int, rgba []byte, width, height int) error {
	slot := b.slotByIndex(index)
	if slot == nil {
		return fmt.Errorf("bootimg: no slot with index %d", index)
	}
	if slot.Width != 0 && slot.Height != 0 && (width != slot.Width || height != slot.Height) {
		return &DimensionMismatchError{SlotWidth: slot.Width, SlotHeight: slot.Height, GotWidth: width, GotHeight: height}
	}

	switch b.Format {
	case FormatMTK:
		return b.replaceMTKSlot(slot, rgba, width, height)
	case FormatOPPO:
		return b.replaceOPPOSlot(slot, rgba, width, height)
	default:
		return fmt.Errorf("%w", ErrUnsupportedFormat)
	}
}

func (b *BootImage) slotByIndex(index int) *ImageSlot {
	for _, s := range b.Images {
		if s.Index == index {
			return s
		}
	}
	return nil
}

func readU32BE(data []byte, offset int) (uint32, error) {
	if offset < 0 || offset+4 > len(data) {
		return 0, malformed("u32be read at offset %d exceeds buffer of %d", offset, len(data))
	}
	return uint32(data[offset])<<24 | uint32(data[offset+1])<<16 | uint32(data[offset+2])<<8 | uint32(data[offset+3]), nil
}
