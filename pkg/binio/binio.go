// Package binio provides bounds-checked little-endian cursors over byte buffers.
//
// Writer fills a buffer that was sized up front; Reader consumes one. Both track
// their position and refuse any access that would run past the end of the
// buffer instead of growing it or reading garbage.
package binio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Cursor errors.
var (
	ErrOverflow  = errors.New("binio: write past end of buffer")
	ErrShortRead = errors.New("binio: read past end of buffer")
)

// Writer writes little-endian values into a fixed-size buffer.
type Writer struct {
	buf []byte
	pos int
}

// NewWriter returns a Writer over a new buffer of exactly size bytes.
func NewWriter(size int) *Writer {
	return &Writer{buf: make([]byte, size)}
}

// WrapWriter returns a Writer over buf starting at offset.
func WrapWriter(buf []byte, offset int) *Writer {
	return &Writer{buf: buf, pos: offset}
}

// Bytes returns the whole underlying buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Offset returns the current write position.
func (w *Writer) Offset() int { return w.pos }

// Remaining returns the number of bytes left before the end of the buffer.
func (w *Writer) Remaining() int { return len(w.buf) - w.pos }

// Full reports whether every byte of the buffer has been written.
func (w *Writer) Full() bool { return w.pos == len(w.buf) }

func (w *Writer) reserve(n int) ([]byte, error) {
	if n < 0 || n > w.Remaining() {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, %d left", ErrOverflow, n, w.pos, w.Remaining())
	}
	b := w.buf[w.pos : w.pos+n]
	w.pos += n
	return b, nil
}

// Uint32 writes v.
func (w *Writer) Uint32(v uint32) error {
	b, err := w.reserve(4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, v)
	return nil
}

// Float32 writes v.
func (w *Writer) Float32(v float32) error {
	return w.Uint32(math.Float32bits(v))
}

// Raw writes p unchanged.
func (w *Writer) Raw(p []byte) error {
	b, err := w.reserve(len(p))
	if err != nil {
		return err
	}
	copy(b, p)
	return nil
}

// String writes a u32 length, the bytes of s and one terminating zero byte.
func (w *Writer) String(s string) error {
	if err := w.Uint32(uint32(len(s))); err != nil {
		return err
	}
	b, err := w.reserve(len(s) + 1)
	if err != nil {
		return err
	}
	copy(b, s)
	b[len(s)] = 0
	return nil
}

// Uint32s writes every value of vs.
func (w *Writer) Uint32s(vs []uint32) error {
	b, err := w.reserve(4 * len(vs))
	if err != nil {
		return err
	}
	for i, v := range vs {
		binary.LittleEndian.PutUint32(b[i*4:], v)
	}
	return nil
}

// Float32s writes every value of vs.
func (w *Writer) Float32s(vs []float32) error {
	b, err := w.reserve(4 * len(vs))
	if err != nil {
		return err
	}
	for i, v := range vs {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return nil
}

// StringSize returns the number of bytes String writes for s.
func StringSize(s string) int {
	return 4 + len(s) + 1
}

// Reader reads little-endian values from a buffer.
type Reader struct {
	buf []byte
	pos int
}

// NewReader returns a Reader positioned at the start of buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Offset returns the current read position.
func (r *Reader) Offset() int { return r.pos }

// Len returns the number of unread bytes.
func (r *Reader) Len() int { return len(r.buf) - r.pos }

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || n > r.Len() {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, %d left", ErrShortRead, n, r.pos, r.Len())
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Peek returns the next n bytes without consuming them.
func (r *Reader) Peek(n int) ([]byte, error) {
	if n < 0 || n > r.Len() {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, %d left", ErrShortRead, n, r.pos, r.Len())
	}
	return r.buf[r.pos : r.pos+n], nil
}

// Skip advances the cursor by n bytes.
func (r *Reader) Skip(n int) error {
	_, err := r.take(n)
	return err
}

// Uint32 reads one value.
func (r *Reader) Uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Float32 reads one value.
func (r *Reader) Float32() (float32, error) {
	v, err := r.Uint32()
	return math.Float32frombits(v), err
}

// Raw returns the next n bytes. The slice aliases the reader's buffer.
func (r *Reader) Raw(n int) ([]byte, error) {
	return r.take(n)
}

// String reads a value written by Writer.String. The terminating byte is
// consumed but not checked.
func (r *Reader) String() (string, error) {
	n, err := r.Uint32()
	if err != nil {
		return "", err
	}
	if uint64(n)+1 > uint64(r.Len()) {
		return "", fmt.Errorf("%w: string of %d bytes at offset %d, %d left", ErrShortRead, n, r.pos, r.Len())
	}
	b, _ := r.take(int(n) + 1)
	return string(b[:n]), nil
}

// Uint32s fills dst.
func (r *Reader) Uint32s(dst []uint32) error {
	b, err := r.take(4 * len(dst))
	if err != nil {
		return err
	}
	for i := range dst {
		dst[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return nil
}

// Float32s fills dst.
func (r *Reader) Float32s(dst []float32) error {
	b, err := r.take(4 * len(dst))
	if err != nil {
		return err
	}
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return nil
}

// Fits reports whether count elements of elemSize bytes can still be read.
// It is used to reject corrupt counts before allocating for them.
func (r *Reader) Fits(count uint64, elemSize int) bool {
	return count*uint64(elemSize) <= uint64(r.Len())
}
