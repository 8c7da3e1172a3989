// Package tinycompress produces zlib streams made of stored (uncompressed)
// DEFLATE blocks. Any zlib reader accepts them, and building one needs no
// tables or window on the microcontroller.
package tinycompress

import (
	"hash/adler32"
	"io"
)

// MaxBlock is the largest payload of one stored block.
const MaxBlock = 0xffff

// zlib header: deflate with a 32K window, default level, FCHECK so that
// the header is a multiple of 31.
const (
	cmf = 0x78
	flg = 0x9C
)

// StoredSize is the length of the stream AppendZlib produces for n bytes.
func StoredSize(n int) int {
	blocks := (n + MaxBlock - 1) / MaxBlock
	if blocks == 0 {
		blocks = 1
	}
	return 2 + 5*blocks + n + 4
}

// AppendZlib appends a zlib stream holding data to dst.
func AppendZlib(dst, data []byte) []byte {
	dst = append(dst, cmf, flg)
	rest := data
	for {
		n := len(rest)
		final := byte(1)
		if n > MaxBlock {
			n = MaxBlock
			final = 0
		}
		length := uint16(n)
		// BFINAL in bit 0, BTYPE 00, then LEN and NLEN little endian.
		dst = append(dst, final, byte(length), byte(length>>8), byte(^length), byte(^length>>8))
		dst = append(dst, rest[:n]...)
		rest = rest[n:]
		if final == 1 {
			break
		}
	}
	sum := adler32.Checksum(data)
	return append(dst, byte(sum>>24), byte(sum>>16), byte(sum>>8), byte(sum))
}

// Writer collects everything written and emits the zlib stream on Close.
type Writer struct {
	output io.Writer
	buf    []byte
	closed bool
}

// NewWriter returns a Writer for w. sizeHint preallocates the buffer so
// that Write does not grow it.
func NewWriter(w io.Writer, sizeHint int) *Writer {
	return &Writer{output: w, buf: make([]byte, 0, sizeHint)}
}

func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, io.ErrClosedPipe
	}
	w.buf = append(w.buf, p...)
	return len(p), nil
}

// Close writes the stream. The Writer cannot be reused.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	out := AppendZlib(make([]byte, 0, StoredSize(len(w.buf))), w.buf)
	_, err := w.output.Write(out)
	return err
}
