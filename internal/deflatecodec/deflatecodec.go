// Package deflatecodec implements the two compression framings the boot
// container formats use: MTK's zlib-framed deflate, and OPPO's non-standard
// gzip envelope around a raw deflate stream. Both directions are built on
// github.com/klauspost/compress, which the wider boot-image/firmware
// tooling ecosystem reaches for in place of the standard library's
// compress/zlib and compress/flate for exactly this kind of embedded
// container work.
package deflatecodec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	kzlib "github.com/klauspost/compress/zlib"
	kflate "github.com/klauspost/compress/flate"

	"github.com/badmaneers/bootmod/internal/pool"
)

// CompressionError wraps an inflate/deflate failure from the underlying
// codec.
type CompressionError struct {
	Op  string
	Err error
}

func (e *CompressionError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *CompressionError) Unwrap() error { return e.Err }

// chunkSize is the read granularity used while draining an inflate stream,
// per spec: "Inflate chunks at 16 KiB and concatenates until the stream
// signals end-of-data."
const chunkSize = 16 * 1024

// gzipHeaderSize and gzipFooterSize are OPPO's fixed, non-standard gzip
// envelope sizes: a 10-byte header with no extra fields/name/comment, and
// an 8-byte CRC32+ISIZE footer.
const (
	gzipHeaderSize = 10
	gzipFooterSize = 8
)

// InflateZlib decompresses a zlib-framed deflate stream (MTK blob format):
// the standard 2-byte zlib header and 4-byte Adler-32 trailer wrap a raw
// deflate stream.
func InflateZlib(compressed []byte) ([]byte, error) {
	zr, err := kzlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, &CompressionError{Op: "zlib inflate", Err: err}
	}
	defer zr.Close()

	out, err := drain(zr)
	if err != nil {
		return nil, &CompressionError{Op: "zlib inflate", Err: err}
	}
	return out, nil
}

// DeflateZlib compresses raw bytes into a zlib-framed deflate stream at the
// given compression level (1-9).
func DeflateZlib(raw []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := kzlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, &CompressionError{Op: "zlib deflate", Err: err}
	}
	if _, err := zw.Write(raw); err != nil {
		zw.Close()
		return nil, &CompressionError{Op: "zlib deflate", Err: err}
	}
	if err := zw.Close(); err != nil {
		return nil, &CompressionError{Op: "zlib deflate", Err: err}
	}
	return buf.Bytes(), nil
}

// InflateGzipOppo decompresses OPPO's gzip-wrapped raw deflate stream: a
// fixed 10-byte header (1F 8B 08 00, mtime=0, xfl=0, os=0), a raw deflate
// stream, and an 8-byte trailer (CRC-32 LE, then uncompressed size mod 2^32
// LE). The header and trailer bytes are only sized and sliced off, not
// validated against their exact constant values, since OPPO tooling in the
// wild varies the os/xfl bytes. The trailer CRC is still checked against the
// decompressed bytes to catch corruption.
func InflateGzipOppo(compressed []byte) ([]byte, error) {
	if len(compressed) < gzipHeaderSize+gzipFooterSize {
		return nil, &CompressionError{Op: "gzip inflate", Err: errors.New("compressed stream shorter than gzip envelope")}
	}
	body := compressed[gzipHeaderSize : len(compressed)-gzipFooterSize]
	footer := compressed[len(compressed)-gzipFooterSize:]
	wantCRC := binary.LittleEndian.Uint32(footer[0:4])
	wantSize := binary.LittleEndian.Uint32(footer[4:8])

	fr := kflate.NewReader(bytes.NewReader(body))
	defer fr.Close()

	out, err := drain(fr)
	if err != nil {
		return nil, &CompressionError{Op: "gzip inflate", Err: err}
	}

	if uint32(len(out)) != wantSize {
		return nil, &CompressionError{Op: "gzip inflate", Err: fmt.Errorf("decompressed size %d does not match trailer ISIZE %d", len(out), wantSize)}
	}
	if gotCRC := crc32.ChecksumIEEE(out); gotCRC != wantCRC {
		return nil, &CompressionError{Op: "gzip inflate", Err: fmt.Errorf("CRC32 mismatch: got 0x%08x, trailer says 0x%08x", gotCRC, wantCRC)}
	}
	return out, nil
}

// DeflateGzipOppo compresses raw bytes into OPPO's gzip-wrapped raw deflate
// framing at the given compression level.
func DeflateGzipOppo(raw []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write([]byte{0x1F, 0x8B, 0x08, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00})

	fw, err := kflate.NewWriter(&buf, level)
	if err != nil {
		return nil, &CompressionError{Op: "gzip deflate", Err: err}
	}
	if _, err := fw.Write(raw); err != nil {
		fw.Close()
		return nil, &CompressionError{Op: "gzip deflate", Err: err}
	}
	if err := fw.Close(); err != nil {
		return nil, &CompressionError{Op: "gzip deflate", Err: err}
	}

	var footer [gzipFooterSize]byte
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(raw))
	binary.LittleEndian.PutUint32(footer[4:8], uint32(len(raw)))
	buf.Write(footer[:])

	return buf.Bytes(), nil
}

// drain reads r to completion using a pooled 16 KiB chunk buffer.
func drain(r io.Reader) ([]byte, error) {
	chunk := pool.Get(chunkSize)
	defer pool.Put(chunk)

	var out bytes.Buffer
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			out.Write(chunk[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
	}
	return out.Bytes(), nil
}
