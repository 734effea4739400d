package lib

import (
	"fmt"
	"io"
	"math"
	"sync"
)

// Buffer is a growable byte buffer. The storage it was created with is kept
// as the original one so Restore can return to it after the buffer has grown.
type Buffer struct {
	B        []byte
	original []byte

	// limit is the capacity ceiling for Grow. zero means no limit
	limit int
	fixed bool
}

var (
	DefaultBufferLength = 4096
	buffers             = &sync.Pool{
		New: func() interface{} {
			b := &Buffer{
				B: make([]byte, 0, DefaultBufferLength),
			}
			b.original = b.B
			return b
		},
	}

	ErrBufferFixed = fmt.Errorf("buffer is not allowed to grow")
	ErrBufferLimit = fmt.Errorf("buffer capacity limit reached")
)

// TakeBuffer
func TakeBuffer() *Buffer {
	return buffers.Get().(*Buffer)
}

// ReleaseBuffer
func ReleaseBuffer(b *Buffer) {
	b.Restore()
	b.limit = 0
	b.fixed = false
	buffers.Put(b)
}

// NewBuffer creates a buffer with the given capacity. If fixed is true the
// buffer never grows beyond it. limit caps the growth (0 - unlimited).
func NewBuffer(capacity int, fixed bool, limit int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	b := &Buffer{
		B:     make([]byte, 0, capacity),
		limit: limit,
		fixed: fixed,
	}
	b.original = b.B
	return b
}

// Restore truncates the buffer and switches it back to the original storage
// if it has been reallocated by growing.
func (b *Buffer) Restore() {
	b.B = b.original[:0]
}

// Len
func (b *Buffer) Len() int {
	return len(b.B)
}

func (b *Buffer) Cap() int {
	return cap(b.B)
}

// WriteDataTo
func (b *Buffer) WriteDataTo(w io.Writer) error {
	data := b.B
	for len(data) > 0 {
		n, e := w.Write(data)
		if e != nil {
			return e
		}
		data = data[n:]
	}
	return nil
}

// ReadDataFrom
func (b *Buffer) ReadDataFrom(r io.Reader, limit int) (int, error) {
	capB := cap(b.B)
	lenB := len(b.B)
	if limit == 0 {
		limit = math.MaxInt
	}
	// if buffer becomes too large
	if lenB > limit {
		return 0, fmt.Errorf("too large")
	}
	if capB-lenB < capB>>1 {
		// less than (almost) 50% space left. increase capacity
		b.increase()
		capB = cap(b.B)
	}
	n, e := r.Read(b.B[lenB:capB])
	l := lenB + n
	b.B = b.B[:l]
	return n, e
}

// ReadAllFrom reads r until io.EOF. limit caps the amount of data (0 - unlimited).
func (b *Buffer) ReadAllFrom(r io.Reader, limit int) error {
	for {
		_, err := b.ReadDataFrom(r, limit)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Write makes Buffer an io.Writer for the compressors.
func (b *Buffer) Write(v []byte) (n int, err error) {
	b.B = append(b.B, v...)
	return len(v), nil
}

func (b *Buffer) increase() {
	cap1 := cap(b.B) * 2
	if cap1 == 0 {
		cap1 = DefaultBufferLength
	}
	b1 := make([]byte, len(b.B), cap1)
	copy(b1, b.B)
	b.B = b1
}

// Grow extends the buffer by n bytes and returns the extension. It honors
// the fixed flag and the capacity limit.
// The capacity is doubled until the requested space fits. On error the buffer
// is left untouched.
func (b *Buffer) Grow(n int) ([]byte, error) {
	l := len(b.B)
	e := l + n
	if e <= cap(b.B) {
		b.B = b.B[:e]
		return b.B[l:e], nil
	}
	if b.fixed {
		return nil, ErrBufferFixed
	}

	capB := cap(b.B)
	for e > capB {
		capB <<= 1
		if b.limit > 0 && capB > b.limit {
			return nil, ErrBufferLimit
		}
	}
	b1 := make([]byte, e, capB)
	copy(b1, b.B)
	b.B = b1
	return b.B[l:e], nil
}
