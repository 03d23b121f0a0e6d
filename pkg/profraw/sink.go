package profraw

import (
	"errors"
	"fmt"
)

// ErrSinkFull reports a write that would exceed a fixed sink's capacity.
// The caller can retry with a buffer of at least Size() bytes or switch to
// a Buffer sink.
var ErrSinkFull = errors.New("sink capacity exceeded")

// Buffer is the growable sink: an in-memory byte buffer that accepts every
// write. It requires an allocator and is the right sink for hosted targets.
// The zero value is ready to use.
type Buffer struct {
	buf []byte
}

// Write appends p, growing the backing storage as needed.
func (b *Buffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// Bytes returns the accumulated output. The slice aliases the buffer's
// storage and is invalidated by further writes.
func (b *Buffer) Bytes() []byte {
	return b.buf
}

// Len returns the number of bytes accumulated so far.
func (b *Buffer) Len() int {
	return len(b.buf)
}

// Reset discards the accumulated output, retaining storage for reuse.
func (b *Buffer) Reset() {
	b.buf = b.buf[:0]
}

// Fixed is the allocation-free sink: it fills a caller-supplied buffer and
// refuses writes past its end. Size the buffer with Size(); on failure the
// partially filled prefix is unspecified garbage and must be discarded.
type Fixed struct {
	buf []byte
	n   int
}

// NewFixed returns a Fixed sink writing into buf.
func NewFixed(buf []byte) *Fixed {
	return &Fixed{buf: buf}
}

// Write copies p into the buffer. A write that does not fit fails with
// ErrSinkFull before copying anything; nothing is ever silently truncated.
func (f *Fixed) Write(p []byte) (int, error) {
	if len(p) > len(f.buf)-f.n {
		return 0, fmt.Errorf("%d bytes into buffer of %d with %d written: %w",
			len(p), len(f.buf), f.n, ErrSinkFull)
	}
	copy(f.buf[f.n:], p)
	f.n += len(p)
	return len(p), nil
}

// Bytes returns the filled prefix of the buffer.
func (f *Fixed) Bytes() []byte {
	return f.buf[:f.n]
}

// Len returns the number of bytes written so far.
func (f *Fixed) Len() int {
	return f.n
}
