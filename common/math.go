package common

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// BytesToSlice reinterprets a byte slice as a slice of T. Trailing bytes that do not fill a whole element are ignored.
// The returned slice shares memory with the input, and data must be suitably aligned for T.
//
// Parameters:
//   - data: source bytes
//
// Returns:
//   - []T: typed view of the input data, or nil if it holds no whole element
func BytesToSlice[T any](data []byte) []T {
	var zero T
	size := int(unsafe.Sizeof(zero))
	n := len(data) / size
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&data[0])), n)
}

// StructToBytes reinterprets a pointer to a struct as a raw byte slice using unsafe.
// The returned slice has length equal to the struct's size in memory.
//
// Parameters:
//   - v: pointer to the struct to reinterpret
//
// Returns:
//   - []byte: byte slice view of the struct's memory
func StructToBytes[T any](v *T) []byte {
	size := unsafe.Sizeof(*v)
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), int(size))
}

// AlignUp rounds n up to the next multiple of align. align must be a power of two.
func AlignUp(n, align uint64) uint64 {
	return (n + align - 1) &^ (align - 1)
}

// Mat3ToColumns lays out a 3x3 matrix the way WGSL stores mat3x3<f32>: three columns, each padded to a vec4.
//
// Parameters:
//   - m: the column-major source matrix
//
// Returns:
//   - [3][4]float32: the padded columns
func Mat3ToColumns(m mgl32.Mat3) [3][4]float32 {
	var out [3][4]float32
	for c := range 3 {
		col := m.Col(c)
		out[c] = [4]float32{col[0], col[1], col[2], 0}
	}
	return out
}

// ColumnsToMat3 is the inverse of Mat3ToColumns.
func ColumnsToMat3(cols [3][4]float32) mgl32.Mat3 {
	return mgl32.Mat3FromCols(
		mgl32.Vec3{cols[0][0], cols[0][1], cols[0][2]},
		mgl32.Vec3{cols[1][0], cols[1][1], cols[1][2]},
		mgl32.Vec3{cols[2][0], cols[2][1], cols[2][2]},
	)
}
