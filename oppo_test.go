package bootimg

import (
	"bytes"
	"testing"

	"github.com/badmaneers/bootmod/internal/deflatecodec"
	"github.com/badmaneers/bootmod/internal/pixel"
)

func buildOPPOContainer(t *testing.T, width, height uint32, withDDPH bool, bmps [][]byte) []byte {
	t.Helper()

	compressed := make([][]byte, len(bmps))
	realsz := make([]uint32, len(bmps))
	for i, bmp := range bmps {
		c, err := deflatecodec.DeflateGzipOppo(bmp, 9)
		if err != nil {
			t.Fatal(err)
		}
		compressed[i] = c
		realsz[i] = uint32(len(bmp))
	}

	n := len(compressed)
	metaStart := oppoHeaderOffset + oppoHeaderFixed
	payloadStart := oppoPayloadOffset

	offsets := make([]uint32, n)
	var running uint32
	for i, c := range compressed {
		offsets[i] = running
		running += uint32(len(c))
	}

	out := make([]byte, payloadStart+int(running))

	if withDDPH {
		out[0], out[1], out[2], out[3] = 0x44, 0x44, 0x50, 0x48 // LE 0x48504444
		out[4] = 1
	}

	off := oppoHeaderOffset
	copy(out[off:], "SPLASH LOGO!")
	off += 12
	off += metadataNumStrs * metadataStrSize
	off += zeroFillSize

	putLE := func(v uint32) {
		out[off], out[off+1], out[off+2], out[off+3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
		off += 4
	}
	putLE(uint32(n)) // imgnumber
	putLE(0)         // unknown
	putLE(width)
	putLE(height)
	putLE(0) // special

	if off != metaStart {
		t.Fatalf("test helper header size mismatch: %d != %d", off, metaStart)
	}

	for i, c := range compressed {
		recOff := metaStart + i*metadataRecSize
		v := offsets[i]
		out[recOff], out[recOff+1], out[recOff+2], out[recOff+3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
		rsz := realsz[i]
		out[recOff+4], out[recOff+5], out[recOff+6], out[recOff+7] = byte(rsz), byte(rsz>>8), byte(rsz>>16), byte(rsz>>24)
		sz := uint32(len(c))
		out[recOff+8], out[recOff+9], out[recOff+10], out[recOff+11] = byte(sz), byte(sz>>8), byte(sz>>16), byte(sz>>24)
		copy(out[payloadStart+int(offsets[i]):], c)
	}

	return out
}

func solidBMP32(t *testing.T, w, h int, r, g, b, a byte) []byte {
	t.Helper()
	rgba := make([]byte, w*h*4)
	for i := 0; i < w*h; i++ {
		rgba[i*4], rgba[i*4+1], rgba[i*4+2], rgba[i*4+3] = r, g, b, a
	}
	bmp, err := pixel.EncodeBMP(rgba, w, h, 32, nil)
	if err != nil {
		t.Fatal(err)
	}
	return bmp
}

func TestOPPORoundTripByteExact(t *testing.T) {
	bmp := solidBMP32(t, 4, 4, 10, 20, 30, 255)
	container := buildOPPOContainer(t, 4, 4, true, [][]byte{bmp, bmp, bmp})

	img, err := Load(container)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if img.Format != FormatOPPO {
		t.Fatalf("Format = %v, want OPPO", img.Format)
	}
	if len(img.Images) != 3 {
		t.Fatalf("len(Images) = %d, want 3", len(img.Images))
	}
	if img.Images[0].Index != 0 {
		t.Errorf("first slot index = %d, want 0 (OPPO is 0-based)", img.Images[0].Index)
	}
	if img.Images[0].RealSize != len(bmp) {
		t.Errorf("RealSize = %d, want decompressed BMP size %d (realsz must not be confused with compsz)", img.Images[0].RealSize, len(bmp))
	}

	out, err := img.Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !bytes.Equal(out, container) {
		t.Error("round trip is not byte-exact")
	}
}

func TestOPPONameFieldRoundTripsTrailingGarbage(t *testing.T) {
	bmp := solidBMP32(t, 2, 2, 0, 0, 0, 255)
	container := buildOPPOContainer(t, 2, 2, false, [][]byte{bmp})

	// Craft a name field with a NUL terminator followed by non-zero
	// bytes, as a fixed-size C buffer reused across a shorter name would
	// leave behind. cStringFromBytes/display truncates at the NUL, but
	// the raw bytes (including the garbage tail) must still round-trip
	// byte-for-byte.
	recOff := oppoHeaderOffset + oppoHeaderFixed + 0
	nameOff := recOff + 12
	copy(container[nameOff:nameOff+oppoNameSize], "logo\x00stale-leftover-bytes")

	img, err := Load(container)
	if err != nil {
		t.Fatal(err)
	}
	if img.Images[0].Name != "logo" {
		t.Errorf("Name = %q, want %q (truncated at NUL)", img.Images[0].Name, "logo")
	}
	var want [oppoNameSize]byte
	copy(want[:], "logo\x00stale-leftover-bytes")
	if img.Images[0].NameRaw != want {
		t.Errorf("NameRaw = %q, want %q", img.Images[0].NameRaw[:], want[:])
	}

	out, err := img.Save()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, container) {
		t.Error("OPPO name field with trailing garbage after NUL did not round-trip byte-exact")
	}
}

func TestOPPOWrongMagicIsMalformed(t *testing.T) {
	container := buildOPPOContainer(t, 2, 2, false, [][]byte{solidBMP32(t, 2, 2, 0, 0, 0, 255)})
	container[oppoHeaderOffset] = 'X'

	_, err := Load(container)
	var me *MalformedError
	if err == nil || !castMalformed(err, &me) {
		t.Fatalf("expected *MalformedError, got %v (%T)", err, err)
	}
}

func TestOPPOReplacePreserves32Bit(t *testing.T) {
	bmp := solidBMP32(t, 2, 2, 0, 0, 0, 255)
	container := buildOPPOContainer(t, 2, 2, true, [][]byte{bmp})

	img, err := Load(container)
	if err != nil {
		t.Fatal(err)
	}
	// Force decode so BMPBitDepth/BMPPalette are populated, as a real
	// caller's replace flow would after previewing the slot.
	if _, _, _, err := img.GetImage(0); err != nil {
		t.Fatal(err)
	}

	replacement := make([]byte, 2*2*4)
	for i := 0; i < 4; i++ {
		replacement[i*4], replacement[i*4+1], replacement[i*4+2], replacement[i*4+3] = 1, 2, 3, 200
	}
	if err := img.ReplaceImage(0, replacement, 2, 2); err != nil {
		t.Fatalf("ReplaceImage: %v", err)
	}
	if img.Images[0].BMPBitDepth != 32 {
		t.Fatalf("BMPBitDepth after replace = %d, want 32", img.Images[0].BMPBitDepth)
	}

	saved, err := img.Save()
	if err != nil {
		t.Fatal(err)
	}
	reloaded, err := Load(saved)
	if err != nil {
		t.Fatal(err)
	}
	got, _, _, err := reloaded.GetImage(0)
	if err != nil {
		t.Fatal(err)
	}
	// Alpha=200 survives the write path unforced (only read-path normalizes 0->255).
	if got[3] != 200 {
		t.Errorf("alpha = %d, want 200 (write path must not force alpha)", got[3])
	}
}

func TestOPPOReplaceWithIdenticalPixelsReloadsIdentical(t *testing.T) {
	bmp := solidBMP32(t, 3, 3, 5, 6, 7, 0)
	container := buildOPPOContainer(t, 3, 3, false, [][]byte{bmp})

	img, err := Load(container)
	if err != nil {
		t.Fatal(err)
	}
	decoded, _, _, err := img.GetImage(0)
	if err != nil {
		t.Fatal(err)
	}
	// alpha=0 on disk normalizes to 255 on decode for 32-bit BMPs.
	for i := 0; i < 9; i++ {
		if decoded[i*4+3] != 255 {
			t.Fatalf("decoded alpha = %d, want 255", decoded[i*4+3])
		}
	}

	if err := img.ReplaceImage(0, decoded, 3, 3); err != nil {
		t.Fatalf("ReplaceImage: %v", err)
	}
	saved, err := img.Save()
	if err != nil {
		t.Fatal(err)
	}
	reloaded, err := Load(saved)
	if err != nil {
		t.Fatal(err)
	}
	got, _, _, err := reloaded.GetImage(0)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, decoded) {
		t.Error("replacing with the slot's own decoded pixels must reload to the same pixels")
	}
}

func TestOPPOReplaceDimensionMismatch(t *testing.T) {
	bmp := solidBMP32(t, 4, 4, 0, 0, 0, 255)
	container := buildOPPOContainer(t, 4, 4, false, [][]byte{bmp})
	img, err := Load(container)
	if err != nil {
		t.Fatal(err)
	}
	err = img.ReplaceImage(0, make([]byte, 2*2*4), 2, 2)
	var dm *DimensionMismatchError
	if err == nil {
		t.Fatal("expected DimensionMismatchError")
	}
	if e, ok := err.(*DimensionMismatchError); ok {
		dm = e
	} else {
		t.Fatalf("error type = %T, want *DimensionMismatchError", err)
	}
	if dm.SlotWidth != 4 || dm.SlotHeight != 4 {
		t.Errorf("DimensionMismatchError slot dims = %dx%d, want 4x4", dm.SlotWidth, dm.SlotHeight)
	}
}

func TestDispatcherUnknownFormat(t *testing.T) {
	if f := Sniff([]byte("not a container")); f != FormatUnknown {
		t.Errorf("Sniff = %v, want FormatUnknown", f)
	}
	_, err := Load([]byte{})
	if err == nil {
		t.Fatal("expected error loading empty/unknown data")
	}
}

func TestDispatcherMTKAndOPPOMagic(t *testing.T) {
	mtkHeader := make([]byte, mtkHeaderSize+mtkHeaderSize)
	mtkHeader[0], mtkHeader[1], mtkHeader[2], mtkHeader[3] = 0x88, 0x16, 0x88, 0x58
	if f := Sniff(mtkHeader); f != FormatMTK {
		t.Errorf("Sniff(mtk-magic) = %v, want FormatMTK", f)
	}

	oppoHeader := make([]byte, oppoPayloadOffset)
	copy(oppoHeader[oppoHeaderOffset:], "SPLASH LOGO!")
	if f := Sniff(oppoHeader); f != FormatOPPO {
		t.Errorf("Sniff(oppo-magic) = %v, want FormatOPPO", f)
	}
}
