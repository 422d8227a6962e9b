// Package bytesource provides bounded random access to the bytes of a
// loaded file. Every read checks the requested range against the size of
// the source and fails with ErrOutOfBounds instead of returning short or
// garbage data.
package bytesource

import (
	"errors"
	"fmt"
)

// ErrOutOfBounds is returned when a read extends past the end of the source.
var ErrOutOfBounds = errors.New("read out of bounds")

// Source is a randomly readable byte stream of arbitrary length.
type Source interface {
	// Len returns the number of bytes in the source.
	Len() uint64
	// Copy fills dst with the len(dst) bytes starting at off.
	Copy(off uint64, dst []byte) error
	// CopyToBuffer returns a newly allocated copy of size bytes starting at off.
	CopyToBuffer(off, size uint64) ([]byte, error)
	// View returns up to max bytes starting at off without copying. The
	// returned slice is shorter than max when the source ends first.
	View(off, max uint64) ([]byte, error)
}

// InBounds reports whether [off, off+size) lies within a source of length n.
func InBounds(n, off, size uint64) bool {
	return off <= n && size <= n-off
}

// Bytes is a Source backed by an in-memory byte slice.
type Bytes []byte

// Len implements Source.
func (b Bytes) Len() uint64 {
	return uint64(len(b))
}

// Copy implements Source.
func (b Bytes) Copy(off uint64, dst []byte) error {
	if !InBounds(b.Len(), off, uint64(len(dst))) {
		return outOfBounds(off, uint64(len(dst)), b.Len())
	}
	copy(dst, b[off:])
	return nil
}

// CopyToBuffer implements Source.
func (b Bytes) CopyToBuffer(off, size uint64) ([]byte, error) {
	if !InBounds(b.Len(), off, size) {
		return nil, outOfBounds(off, size, b.Len())
	}
	buf := make([]byte, size)
	copy(buf, b[off:off+size])
	return buf, nil
}

// View implements Source.
func (b Bytes) View(off, max uint64) ([]byte, error) {
	if off >= b.Len() {
		return nil, outOfBounds(off, 1, b.Len())
	}
	end := b.Len()
	if max < end-off {
		end = off + max
	}
	return b[off:end], nil
}

func outOfBounds(off, size, n uint64) error {
	return fmt.Errorf("%w: %d bytes at %#x (source is %d bytes)", ErrOutOfBounds, size, off, n)
}
