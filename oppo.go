package bootimg

import (
	"bytes"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/badmaneers/bootmod/internal/byteio"
	"github.com/badmaneers/bootmod/internal/deflatecodec"
	"github.com/badmaneers/bootmod/internal/pixel"
)

// OPPO/Qualcomm splash.img layout constants, per spec.md §4.E.
const (
	ddphOffset       = 0x0
	ddphSize         = 8
	ddphMagicWant    = 0x48504444
	oppoHeaderOffset = 0x4000
	metadataStrSize  = 0x40
	metadataNumStrs  = 3
	zeroFillSize     = 0x40
	oppoHeaderFixed  = 12 + metadataNumStrs*metadataStrSize + zeroFillSize + 5*4 // = 0x120
	oppoNameSize     = 0x74
	metadataRecSize  = 12 + oppoNameSize
	oppoPayloadOffset = 0x8000
)

var oppoMagic = []byte("SPLASH LOGO!")

// oppoState holds the round-trip state that lives outside the per-slot
// ImageSlot fields: DDPH presence, the container-level header fields,
// and the byte regions that are pass-through per spec.md §9 (the
// "unknown" field, the metadata strings, the zero-fill region).
type oppoState struct {
	ddphPresent bool
	ddphMagic   uint32
	ddphFlag    uint32

	metaStrings [metadataNumStrs][metadataStrSize]byte
	zeroFill    [zeroFillSize]byte

	unknown uint32
	width   uint32
	height  uint32
	special uint32
}

func loadOPPO(data []byte) (*BootImage, error) {
	if len(data) < oppoHeaderOffset+oppoHeaderFixed {
		return nil, malformed("OPPO file too short for splash header")
	}
	if !bytes.Equal(data[oppoHeaderOffset:oppoHeaderOffset+len(oppoMagic)], oppoMagic) {
		return nil, malformed("OPPO magic mismatch at offset 0x%x", oppoHeaderOffset)
	}

	st := &oppoState{}
	if len(data) >= ddphSize {
		magic, err := byteio.ReadU32LE(data, ddphOffset)
		if err == nil && magic == ddphMagicWant {
			st.ddphPresent = true
			st.ddphMagic = magic
			st.ddphFlag, _ = byteio.ReadU32LE(data, ddphOffset+4)
		}
	}

	off := oppoHeaderOffset + len(oppoMagic)
	for i := 0; i < metadataNumStrs; i++ {
		copy(st.metaStrings[i][:], data[off:off+metadataStrSize])
		off += metadataStrSize
	}
	copy(st.zeroFill[:], data[off:off+zeroFillSize])
	off += zeroFillSize

	imgNumber, err := byteio.ReadU32LE(data, off)
	if err != nil {
		return nil, malformed("reading OPPO imgnumber: %v", err)
	}
	off += 4
	st.unknown, _ = byteio.ReadU32LE(data, off)
	off += 4
	st.width, _ = byteio.ReadU32LE(data, off)
	off += 4
	st.height, _ = byteio.ReadU32LE(data, off)
	off += 4
	st.special, _ = byteio.ReadU32LE(data, off)
	off += 4

	metaStart := off
	images := make([]*ImageSlot, 0, imgNumber)
	for i := uint32(0); i < imgNumber; i++ {
		recOff := metaStart + int(i)*metadataRecSize
		if recOff+metadataRecSize > len(data) {
			return nil, malformed("OPPO metadata table truncated at record %d", i)
		}
		recOffset, err := byteio.ReadU32LE(data, recOff)
		if err != nil {
			return nil, err
		}
		realsz, _ := byteio.ReadU32LE(data, recOff+4)
		compsz, _ := byteio.ReadU32LE(data, recOff+8)
		nameBytes := data[recOff+12 : recOff+12+oppoNameSize]

		payloadStart := oppoPayloadOffset + int(recOffset)
		payloadEnd := payloadStart + int(compsz)
		if payloadEnd > len(data) {
			return nil, malformed("OPPO slot %d payload out of bounds [%d,%d)", i, payloadStart, payloadEnd)
		}
		compressed := append([]byte(nil), data[payloadStart:payloadEnd]...)

		slot := &ImageSlot{
			Index:      int(i),
			Width:      int(st.width),
			Height:     int(st.height),
			Compressed: compressed,
			Name:       cStringFromBytes(nameBytes),
			RealSize:   int(realsz),
		}
		copy(slot.NameRaw[:], nameBytes)
		images = append(images, slot)
	}

	return &BootImage{Format: FormatOPPO, Images: images, oppo: st}, nil
}

func cStringFromBytes(b []byte) string {
	n := bytes.IndexByte(b, 0)
	if n < 0 {
		n = len(b)
	}
	return string(b[:n])
}

// saveOPPO recomputes each metadata record's offset as the running
// prefix-sum of compsz values starting at 0, rewrites the metadata table
// and payload region, and passes every container-level field through
// verbatim from the loaded state.
func saveOPPO(b *BootImage) ([]byte, error) {
	st := b.oppo
	if st == nil {
		return nil, malformed("OPPO BootImage missing header state")
	}
	n := len(b.Images)
	metaStart := oppoHeaderOffset + oppoHeaderFixed
	payloadStart := oppoPayloadOffset

	offsets := make([]uint32, n)
	var running uint32
	for i, slot := range b.Images {
		offsets[i] = running
		running += uint32(len(slot.Compressed))
	}
	totalPayload := running

	out := make([]byte, payloadStart+int(totalPayload))

	if st.ddphPresent {
		byteio.PutU32LE(out, ddphOffset, st.ddphMagic)
		byteio.PutU32LE(out, ddphOffset+4, st.ddphFlag)
	}

	off := oppoHeaderOffset
	copy(out[off:off+len(oppoMagic)], oppoMagic)
	off += len(oppoMagic)
	for i := 0; i < metadataNumStrs; i++ {
		copy(out[off:off+metadataStrSize], st.metaStrings[i][:])
		off += metadataStrSize
	}
	copy(out[off:off+zeroFillSize], st.zeroFill[:])
	off += zeroFillSize

	byteio.PutU32LE(out, off, uint32(n))
	off += 4
	byteio.PutU32LE(out, off, st.unknown)
	off += 4
	byteio.PutU32LE(out, off, st.width)
	off += 4
	byteio.PutU32LE(out, off, st.height)
	off += 4
	byteio.PutU32LE(out, off, st.special)
	off += 4

	if off != metaStart {
		return nil, malformed("internal error: OPPO header size mismatch (%d != %d)", off, metaStart)
	}

	for i, slot := range b.Images {
		recOff := metaStart + i*metadataRecSize
		byteio.PutU32LE(out, recOff, offsets[i])
		byteio.PutU32LE(out, recOff+4, uint32(slot.RealSize))
		byteio.PutU32LE(out, recOff+8, uint32(len(slot.Compressed)))
		copy(out[recOff+12:recOff+12+oppoNameSize], slot.NameRaw[:])

		dst := out[payloadStart+int(offsets[i]) : payloadStart+int(offsets[i])+len(slot.Compressed)]
		copy(dst, slot.Compressed)
	}

	return out, nil
}

func (b *BootImage) decodeOPPOSlot(slot *ImageSlot) ([]byte, int, int, error) {
	raw, err := deflatecodec.InflateGzipOppo(slot.Compressed)
	if err != nil {
		return nil, 0, 0, &CompressionError{Op: "OPPO inflate", Err: err}
	}
	bmp, err := pixel.DecodeBMP(raw)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("bootimg: decoding OPPO slot %d: %w", slot.Index, err)
	}
	slot.BMPBitDepth = bmp.BitDepth
	slot.BMPPalette = bmp.Palette
	slot.decodedCache = bmp.RGBA
	return bmp.RGBA, bmp.Width, bmp.Height, nil
}

func (b *BootImage) replaceOPPOSlot(slot *ImageSlot, rgba []byte, width, height int) error {
	// Decode a slot that has not been decoded yet, so its stored BMP bit
	// depth and palette are known before the re-encode.
	if slot.BMPBitDepth == 0 {
		if _, _, _, err := b.decodeOPPOSlot(slot); err != nil {
			return err
		}
	}
	bitDepth := slot.BMPBitDepth
	if bitDepth == 0 {
		bitDepth = 32
	}
	bmpBytes, err := pixel.EncodeBMP(rgba, width, height, bitDepth, slot.BMPPalette)
	if err != nil {
		return fmt.Errorf("bootimg: encoding OPPO slot %d: %w", slot.Index, err)
	}
	compressed, err := deflatecodec.DeflateGzipOppo(bmpBytes, 9)
	if err != nil {
		return &CompressionError{Op: "OPPO deflate", Err: err}
	}

	slot.Compressed = compressed
	slot.RealSize = len(bmpBytes)
	slot.Width = width
	slot.Height = height
	slot.BMPBitDepth = bitDepth
	slot.Dirty = true
	slot.decodedCache = append([]byte(nil), rgba...)
	return nil
}

// loadContainerFile memory-maps path read-only when possible, falling
// back to a full read when the file cannot be mapped (pipes, restricted
// mounts), per spec.md §4.E's "memory-map or fully load" instruction for
// the OPPO read path. MTK loads go through the same helper since mapping
// a regular file read-only is equally safe and avoids a second code path.
func loadContainerFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return byteio.LoadFile(path)
	}
	defer m.Unmap()

	data := append([]byte(nil), []byte(m)...)
	return data, nil
}
