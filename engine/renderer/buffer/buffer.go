// Package buffer defines device-resident buffers as seen by the host: an opaque allocation with a label,
// a byte size and usage flags, plus a typed wrapper that tracks element count and element size.
package buffer

import (
	"errors"
	"fmt"
)

// Usage is a bit set describing how a buffer may be bound.
type Usage uint32

const (
	// UsageStorage allows binding the buffer as a storage buffer in compute and render passes.
	UsageStorage Usage = 1 << iota
	// UsageVertex allows binding the buffer as a vertex buffer.
	UsageVertex
	// UsageUniform allows binding the buffer as a uniform buffer.
	UsageUniform
	// UsageCopyDst allows the host to write into the buffer.
	UsageCopyDst
	// UsageCopySrc allows the buffer to be copied from.
	UsageCopySrc
)

// Has reports whether every flag in other is set in u.
func (u Usage) Has(other Usage) bool {
	return u&other == other
}

var (
	// ErrOutOfRange is returned when a write would fall outside the buffer.
	ErrOutOfRange = errors.New("buffer: write out of range")
	// ErrReleased is returned when a released buffer is used.
	ErrReleased = errors.New("buffer: use after release")
)

// Buffer is an opaque device allocation. Its size never changes after creation.
type Buffer interface {
	// Label returns the debug label given at creation.
	//
	// Returns:
	//   - string: the label
	Label() string

	// Size returns the size of the allocation in bytes.
	//
	// Returns:
	//   - uint64: the byte size
	Size() uint64

	// Usage returns the usage flags the buffer was created with.
	//
	// Returns:
	//   - Usage: the usage flags
	Usage() Usage

	// Release frees the device allocation. Releasing twice is a no-op.
	Release()
}

// Allocator is the part of a device back end that creates buffers and uploads into them.
type Allocator interface {
	// CreateBuffer allocates a new buffer.
	//
	// Parameters:
	//   - label: the debug label for the buffer
	//   - size: the size in bytes
	//   - usage: how the buffer will be bound
	//
	// Returns:
	//   - Buffer: the new buffer
	//   - error: an error if the device could not allocate it
	CreateBuffer(label string, size uint64, usage Usage) (Buffer, error)

	// WriteBuffer copies data into buf starting at offset bytes.
	//
	// Parameters:
	//   - buf: the destination buffer
	//   - offset: the byte offset to write at
	//   - data: the bytes to write
	//
	// Returns:
	//   - error: an error if the write falls outside buf or the device rejects it
	WriteBuffer(buf Buffer, offset uint64, data []byte) error
}

// CheckWrite validates that a write of n bytes at offset fits in buf.
//
// Parameters:
//   - buf: the destination buffer
//   - offset: the byte offset to write at
//   - n: the number of bytes written
//
// Returns:
//   - error: ErrOutOfRange wrapped with the offending range, or nil
func CheckWrite(buf Buffer, offset, n uint64) error {
	if offset > buf.Size() || n > buf.Size()-offset {
		return fmt.Errorf("%w: [%d, %d) in %q of %d bytes", ErrOutOfRange, offset, offset+n, buf.Label(), buf.Size())
	}
	return nil
}
