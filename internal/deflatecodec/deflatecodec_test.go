package deflatecodec

import (
	"bytes"
	"testing"
)

func samplePayload() []byte {
	var buf bytes.Buffer
	for i := 0; i < 4096; i++ {
		buf.WriteByte(byte(i % 17))
	}
	return buf.Bytes()
}

func TestZlibRoundTrip(t *testing.T) {
	raw := samplePayload()
	for _, level := range []int{1, 6, 9} {
		compressed, err := DeflateZlib(raw, level)
		if err != nil {
			t.Fatalf("level %d: DeflateZlib: %v", level, err)
		}
		got, err := InflateZlib(compressed)
		if err != nil {
			t.Fatalf("level %d: InflateZlib: %v", level, err)
		}
		if !bytes.Equal(got, raw) {
			t.Errorf("level %d: round trip mismatch", level)
		}
	}
}

func TestZlibHeaderByte(t *testing.T) {
	compressed, err := DeflateZlib(samplePayload(), 6)
	if err != nil {
		t.Fatal(err)
	}
	if compressed[0] != 0x78 {
		t.Errorf("zlib header byte 0 = 0x%02x, want 0x78", compressed[0])
	}
}

func TestGzipOppoRoundTrip(t *testing.T) {
	raw := samplePayload()
	for _, level := range []int{1, 6, 9} {
		compressed, err := DeflateGzipOppo(raw, level)
		if err != nil {
			t.Fatalf("level %d: DeflateGzipOppo: %v", level, err)
		}
		if compressed[0] != 0x1F || compressed[1] != 0x8B || compressed[2] != 0x08 || compressed[3] != 0x00 {
			t.Fatalf("level %d: gzip header mismatch: % x", level, compressed[:4])
		}
		got, err := InflateGzipOppo(compressed)
		if err != nil {
			t.Fatalf("level %d: InflateGzipOppo: %v", level, err)
		}
		if !bytes.Equal(got, raw) {
			t.Errorf("level %d: round trip mismatch", level)
		}
	}
}

func TestInflateGzipOppoCRCMismatch(t *testing.T) {
	compressed, err := DeflateGzipOppo(samplePayload(), 6)
	if err != nil {
		t.Fatal(err)
	}
	// Corrupt the trailer CRC.
	compressed[len(compressed)-8] ^= 0xFF
	if _, err := InflateGzipOppo(compressed); err == nil {
		t.Fatal("expected CRC mismatch error")
	}
}

func TestInflateGzipOppoTooShort(t *testing.T) {
	if _, err := InflateGzipOppo([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for undersized stream")
	}
}

func TestInflateZlibInvalidInput(t *testing.T) {
	if _, err := InflateZlib([]byte{0x00, 0x01, 0x02}); err == nil {
		t.Fatal("expected error for invalid zlib stream")
	}
}
