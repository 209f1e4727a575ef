package device

import (
	"reflect"
	"unsafe"
)

// Ptr is an opaque handle to a block of device memory. The zero value is the
// device null pointer: it is never returned by a successful Malloc and must
// never be passed to a copy primitive or to Free.
//
// Ptr values are stable for the lifetime of the allocation and may be embedded
// inside structs that are themselves copied to the device; the kernel resolves
// them against the device heap.
type Ptr uint64

// Extent describes the dimensions of a 3D copy: the length of one row in
// bytes, the number of rows per slice and the number of slices.
type Extent struct {
	Width  int
	Height int
	Depth  int
}

// Allocator provides the device memory primitives used by the scene upload
// and release paths. All calls are synchronous: when a copy returns, the data
// has landed on its destination side.
//
// The data arguments to the copy calls must be slices backed by contiguous
// memory. Single structs travel as one-element slices.
type Allocator interface {
	// Allocate size bytes of device memory.
	Malloc(size int) (Ptr, error)

	// Release a device allocation. Freeing the null pointer is an error.
	Free(ptr Ptr) error

	// Copy host data into the device allocation at dst.
	CopyToDevice(dst Ptr, data interface{}) error

	// Copy the device allocation at src back into host memory. The supplied
	// slice bounds the number of bytes read.
	CopyToHost(data interface{}, src Ptr) error

	// Perform a single pitched 3D copy into dst. srcPitch is the length in
	// bytes of one row of the source data; ext gives the row length in
	// bytes, the row count and the slice count actually transferred.
	Copy3D(dst Ptr, data interface{}, srcPitch int, ext Extent) error

	// Release the allocator and any backing device resources.
	Close()
}

// Given an interface{} containing a slice return a pointer to its data and
// its length in bytes.
func getSliceData(data interface{}) (unsafe.Pointer, int) {
	reflVal := reflect.ValueOf(data)

	if reflVal.Kind() != reflect.Slice {
		panic("device: getSliceData only supports slices")
	}

	elemCount := reflVal.Len()
	if elemCount == 0 {
		panic("device: getSliceData: supplied slice is empty")
	}

	return unsafe.Pointer(reflVal.Index(0).Addr().Pointer()),
		elemCount * int(reflect.TypeOf(data).Elem().Size())
}

// View the memory behind a slice as raw bytes.
func sliceBytes(data interface{}) []byte {
	ptr, size := getSliceData(data)
	return unsafe.Slice((*byte)(ptr), size)
}
