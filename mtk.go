package bootimg

import (
	"fmt"

	"github.com/badmaneers/bootmod/internal/byteio"
	"github.com/badmaneers/bootmod/internal/deflatecodec"
	"github.com/badmaneers/bootmod/internal/pixel"
)

// MTK container layout constants, per spec.md §4.D.
const (
	mtkMagic        = 0x88168858
	mtkHeaderSize   = 512
	mtkTableOffset  = 0x200
	mtkTypeOffset   = 8
	mtkTypeName     = "LOGO"
	mtkTypeNameCap  = 32
)

// mtkState holds the round-trip state for an MTK BootImage beyond its
// image list. The header's type-name field and 0xFF tail are always
// re-emitted identically on save, so nothing from them needs to be kept;
// block_size is always recomputed from the blob lengths on write and
// only asserted equal to header.size on load, per the Open Question
// resolution in DESIGN.md.
type mtkState struct{}

func loadMTK(data []byte) (*BootImage, error) {
	r := byteio.NewReader(data)
	if r.Len() < mtkHeaderSize {
		return nil, malformed("MTK header truncated: have %d bytes, need %d", r.Len(), mtkHeaderSize)
	}

	magic, err := r.U32BE()
	if err != nil {
		return nil, malformed("reading MTK magic: %v", err)
	}
	if magic != mtkMagic {
		return nil, malformed("MTK magic mismatch: got 0x%08x, want 0x%08x", magic, uint32(mtkMagic))
	}
	headerSize, err := r.U32LE()
	if err != nil {
		return nil, malformed("reading MTK header size: %v", err)
	}

	if err := r.Seek(mtkTypeOffset); err != nil {
		return nil, err
	}
	typeBytes, err := r.Bytes(mtkTypeNameCap)
	if err != nil {
		return nil, err
	}
	if !mtkTypeMatches(typeBytes) {
		return nil, malformed("MTK type name is not %q", mtkTypeName)
	}

	if err := r.Seek(mtkTableOffset); err != nil {
		return nil, err
	}
	logoCount, err := r.U32LE()
	if err != nil {
		return nil, malformed("reading MTK logo_count: %v", err)
	}
	blockSize, err := r.U32LE()
	if err != nil {
		return nil, malformed("reading MTK block_size: %v", err)
	}
	if blockSize != headerSize {
		return nil, malformed("MTK block_size 0x%x does not match header.size 0x%x", blockSize, headerSize)
	}

	offsets := make([]uint32, logoCount)
	for i := range offsets {
		offsets[i], err = r.U32LE()
		if err != nil {
			return nil, malformed("reading MTK table offset %d: %v", i, err)
		}
	}

	blockStart := mtkTableOffset
	images := make([]*ImageSlot, 0, logoCount)
	for i := uint32(0); i < logoCount; i++ {
		start := int(offsets[i])
		var end int
		if i+1 < logoCount {
			end = int(offsets[i+1])
		} else {
			end = int(blockSize)
		}
		if start < 0 || end < start || blockStart+end > len(data) {
			return nil, malformed("MTK blob %d has invalid bounds [%d,%d)", i, start, end)
		}
		compressed := append([]byte(nil), data[blockStart+start:blockStart+end]...)

		slot := &ImageSlot{Index: int(i) + 1, Compressed: compressed}
		inferMTKSlotDimensions(slot)
		images = append(images, slot)
	}

	return &BootImage{Format: FormatMTK, Images: images, mtk: &mtkState{}}, nil
}

// inferMTKSlotDimensions attempts inflate under BGRA_LE first, then
// RGB565_LE, per spec.md §4.D; the first mode that yields any dimension
// candidate is remembered on the slot. A failed inflate leaves the slot
// with width=height=0 and native mode zero-valued, but the compressed
// bytes are always preserved.
func inferMTKSlotDimensions(slot *ImageSlot) {
	raw, err := deflatecodec.InflateZlib(slot.Compressed)
	if err != nil {
		return
	}
	for _, mode := range []ColorMode{pixel.BGRALE, pixel.RGB565LE} {
		candidates := InferDimensions(len(raw), mode.BytesPerPixel())
		if len(candidates) == 0 {
			continue
		}
		slot.Width = candidates[0].Width
		slot.Height = candidates[0].Height
		slot.NativeColorMode = mode
		return
	}
}

func mtkTypeMatches(b []byte) bool {
	if len(b) < len(mtkTypeName) {
		return false
	}
	for i := 0; i < len(mtkTypeName); i++ {
		c := b[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c != mtkTypeName[i] {
			return false
		}
	}
	return true
}

// saveMTK recomputes the table offsets and block_size from the current
// blob lengths, then writes header, table, and blobs as one contiguous
// buffer.
func saveMTK(b *BootImage) ([]byte, error) {
	n := len(b.Images)
	tableBodySize := 8 + 4*n

	offsets := make([]uint32, n)
	running := uint32(tableBodySize)
	for i, slot := range b.Images {
		offsets[i] = running
		running += uint32(len(slot.Compressed))
	}
	blockSize := running

	out := make([]byte, mtkTableOffset+int(blockSize))

	byteio.PutU32BE(out, 0, mtkMagic)
	byteio.PutU32LE(out, 4, blockSize)
	copy(out[mtkTypeOffset:mtkTypeOffset+len(mtkTypeName)], mtkTypeName)
	// out is already zero-initialized, so bytes mtkTypeOffset+len(mtkTypeName)
	// through mtkTypeOffset+mtkTypeNameCap (the rest of the 32-byte type-name
	// field) are left as zero padding, per spec.md §4.D Write; only the
	// 472-byte tail after the type-name field is 0xFF.
	for i := mtkTypeOffset + mtkTypeNameCap; i < mtkHeaderSize; i++ {
		out[i] = 0xFF
	}

	byteio.PutU32LE(out, mtkTableOffset, uint32(n))
	byteio.PutU32LE(out, mtkTableOffset+4, blockSize)
	for i, off := range offsets {
		byteio.PutU32LE(out, mtkTableOffset+8+4*i, off)
	}

	blockStart := mtkTableOffset
	for i, slot := range b.Images {
		copy(out[blockStart+int(offsets[i]):], slot.Compressed)
	}

	return out, nil
}

func (b *BootImage) decodeMTKSlot(slot *ImageSlot) ([]byte, int, int, error) {
	raw, err := deflatecodec.InflateZlib(slot.Compressed)
	if err != nil {
		return nil, 0, 0, &CompressionError{Op: "MTK inflate", Err: err}
	}
	mode := slot.NativeColorMode
	if mode == (ColorMode{}) {
		mode = pixel.BGRALE
	}
	rgba, err := pixel.ToRGBA(raw, slot.Width, slot.Height, mode)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("bootimg: decoding MTK slot %d: %w", slot.Index, err)
	}
	slot.decodedCache = rgba
	return rgba, slot.Width, slot.Height, nil
}

// GetImageMode decodes an MTK slot's pixels under an explicit ColorMode
// rather than the mode the dimension inferencer chose on load. It is used
// by callers (the CLI's unpack --mode flag) that want to override a
// misdetected native mode; it does not alter the slot's stored
// NativeColorMode or decoded_cache. Returns an error for OPPO containers.
func (b *BootImage) GetImageMode(index int, mode ColorMode) ([]byte, int, int, error) {
	if b.Format != FormatMTK {
		return nil, 0, 0, fmt.Errorf("bootimg: GetImageMode only supports MTK containers")
	}
	slot := b.slotByIndex(index)
	if slot == nil {
		return nil, 0, 0, fmt.Errorf("bootimg: no slot with index %d", index)
	}
	raw, err := deflatecodec.InflateZlib(slot.Compressed)
	if err != nil {
		return nil, 0, 0, &CompressionError{Op: "MTK inflate", Err: err}
	}
	w, h := slot.Width, slot.Height
	if candidates := InferDimensions(len(raw), mode.BytesPerPixel()); len(candidates) > 0 {
		w, h = candidates[0].Width, candidates[0].Height
	}
	rgba, err := pixel.ToRGBA(raw, w, h, mode)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("bootimg: decoding MTK slot %d as %s: %w", slot.Index, mode.Name(), err)
	}
	return rgba, w, h, nil
}

// NewEmptyMTK creates a BootImage with no slots and default MTK header
// state, used by the project workspace to rebuild an MTK container from
// scratch out of a folder of PNGs.
func NewEmptyMTK() (*BootImage, error) {
	return &BootImage{Format: FormatMTK, mtk: &mtkState{}}, nil
}

// AddMTKSlot appends a new slot encoded at BGRA_LE and compressed at
// zlib level 9, used by the project workspace when rebuilding from PNGs
// rather than replacing an existing slot.
func (b *BootImage) AddMTKSlot(index int, rgba []byte, width, height int) error {
	return b.AddMTKSlotMode(index, rgba, width, height, pixel.BGRALE)
}

// AddMTKSlotMode appends a new slot encoded in the given ColorMode, used
// by the CLI's repack command where each input file names its own
// pixel encoding.
func (b *BootImage) AddMTKSlotMode(index int, rgba []byte, width, height int, mode ColorMode) error {
	if b.Format != FormatMTK {
		return fmt.Errorf("bootimg: AddMTKSlotMode called on a %v BootImage", b.Format)
	}
	raw, err := pixel.FromRGBA(rgba, width, height, mode)
	if err != nil {
		return fmt.Errorf("bootimg: encoding MTK slot %d: %w", index, err)
	}
	compressed, err := deflatecodec.DeflateZlib(raw, 9)
	if err != nil {
		return &CompressionError{Op: "MTK deflate", Err: err}
	}
	b.Images = append(b.Images, &ImageSlot{
		Index:           index,
		Width:           width,
		Height:          height,
		Compressed:      compressed,
		NativeColorMode: mode,
		Dirty:           true,
		decodedCache:    append([]byte(nil), rgba...),
	})
	return nil
}

// AddMTKRawSlot appends a new slot whose compressed bytes are passed
// through verbatim (the CLI's repack command accepts already-compressed
// "logo_{NNN}_raw.z" inputs alongside PNGs). Dimensions and native mode
// are inferred the same way as on load; they stay zero when the bytes do
// not inflate or no candidate size fits.
func (b *BootImage) AddMTKRawSlot(index int, compressed []byte) error {
	if b.Format != FormatMTK {
		return fmt.Errorf("bootimg: AddMTKRawSlot called on a %v BootImage", b.Format)
	}
	slot := &ImageSlot{Index: index, Compressed: append([]byte(nil), compressed...)}
	inferMTKSlotDimensions(slot)
	b.Images = append(b.Images, slot)
	return nil
}

func (b *BootImage) replaceMTKSlot(slot *ImageSlot, rgba []byte, width, height int) error {
	mode := slot.NativeColorMode
	// The zero ColorMode is also RGBA_LE, so only a slot with unknown
	// dimensions (no mode was ever set) falls back to BGRA_LE.
	if mode == (ColorMode{}) && slot.Width == 0 && slot.Height == 0 {
		mode = pixel.BGRALE
	}
	raw, err := pixel.FromRGBA(rgba, width, height, mode)
	if err != nil {
		return fmt.Errorf("bootimg: encoding MTK slot %d: %w", slot.Index, err)
	}
	compressed, err := deflatecodec.DeflateZlib(raw, 9)
	if err != nil {
		return &CompressionError{Op: "MTK deflate", Err: err}
	}

	slot.Compressed = compressed
	slot.Width = width
	slot.Height = height
	slot.NativeColorMode = mode
	slot.Dirty = true
	slot.decodedCache = append([]byte(nil), rgba...)
	return nil
}
