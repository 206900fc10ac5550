package buffer

import (
	"fmt"
	"unsafe"

	"github.com/Debaug/particle-dance/common"
)

// Typed is a Buffer holding a fixed number of elements of type T laid out contiguously.
// T must have the same memory layout as its WGSL counterpart.
type Typed[T any] struct {
	raw      Buffer
	alloc    Allocator
	length   int
	elemSize uint64
}

// NewTyped allocates a zeroed buffer for length elements of T.
//
// Parameters:
//   - alloc: the device allocator
//   - label: the debug label for the buffer
//   - length: the number of elements
//   - usage: how the buffer will be bound
//
// Returns:
//   - *Typed[T]: the new buffer
//   - error: an error if length is negative or the device could not allocate it
func NewTyped[T any](alloc Allocator, label string, length int, usage Usage) (*Typed[T], error) {
	if length < 0 {
		return nil, fmt.Errorf("buffer %q: negative length %d", label, length)
	}
	var zero T
	elemSize := uint64(unsafe.Sizeof(zero))
	raw, err := alloc.CreateBuffer(label, elemSize*uint64(length), usage)
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer %q: %w", label, err)
	}
	return &Typed[T]{
		raw:      raw,
		alloc:    alloc,
		length:   length,
		elemSize: elemSize,
	}, nil
}

// NewTypedWithData allocates a buffer sized to data and uploads it.
//
// Parameters:
//   - alloc: the device allocator
//   - label: the debug label for the buffer
//   - data: the initial contents
//   - usage: how the buffer will be bound; UsageCopyDst is added
//
// Returns:
//   - *Typed[T]: the new buffer
//   - error: an error if allocation or upload fails
func NewTypedWithData[T any](alloc Allocator, label string, data []T, usage Usage) (*Typed[T], error) {
	b, err := NewTyped[T](alloc, label, len(data), usage|UsageCopyDst)
	if err != nil {
		return nil, err
	}
	if err := b.Write(data); err != nil {
		b.Release()
		return nil, err
	}
	return b, nil
}

// Len returns the number of elements.
func (b *Typed[T]) Len() int {
	return b.length
}

// ElementSize returns the size of one element in bytes.
func (b *Typed[T]) ElementSize() uint64 {
	return b.elemSize
}

// Size returns the size of the buffer in bytes.
func (b *Typed[T]) Size() uint64 {
	return b.elemSize * uint64(b.length)
}

// ByteOffset returns the byte offset of the element at index.
func (b *Typed[T]) ByteOffset(index int) uint64 {
	return b.elemSize * uint64(index)
}

// Raw returns the untyped buffer for binding.
func (b *Typed[T]) Raw() Buffer {
	return b.raw
}

// Write replaces the whole contents. len(data) must equal Len.
//
// Parameters:
//   - data: the new contents
//
// Returns:
//   - error: an error if the length differs or the upload fails
func (b *Typed[T]) Write(data []T) error {
	if len(data) != b.length {
		return fmt.Errorf("%w: %d elements written to %q of length %d", ErrOutOfRange, len(data), b.raw.Label(), b.length)
	}
	return b.WriteAt(0, data)
}

// WriteAt uploads data starting at element index.
//
// Parameters:
//   - index: the first element to overwrite
//   - data: the elements to write
//
// Returns:
//   - error: an error if the range falls outside the buffer or the upload fails
func (b *Typed[T]) WriteAt(index int, data []T) error {
	if index < 0 || index+len(data) > b.length {
		return fmt.Errorf("%w: elements [%d, %d) in %q of length %d", ErrOutOfRange, index, index+len(data), b.raw.Label(), b.length)
	}
	if len(data) == 0 {
		return nil
	}
	return b.alloc.WriteBuffer(b.raw, b.ByteOffset(index), common.SliceToBytes(data))
}

// Release frees the underlying buffer.
func (b *Typed[T]) Release() {
	b.raw.Release()
}
