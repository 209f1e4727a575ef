package device

import (
	"fmt"

	"github.com/achilleasa/gopencl/v1.2/cl"
)

// Allocations are 16-byte aligned so float4 loads on the device side stay on
// their natural boundary. The first slot is reserved; offset 0 is the device
// null pointer.
const (
	arenaAlign      = 16
	arenaReserved   = arenaAlign
	DefaultArenaCap = 512 << 20
)

// Arena implements Allocator on top of a single opencl memory object. Ptr
// values are byte offsets into that object, which is what allows pointers
// nested inside uploaded structs (mesh face buffers, texture pixel buffers)
// to stay meaningful to the kernel.
//
// Malloc is a bump allocator with per-block bookkeeping. Free rewinds the
// bump pointer to the end of the highest live block, so releasing the most
// recently allocated blocks returns their space immediately. This fits the
// scene lifecycle: long-lived frame buffers sit at the bottom of the arena
// while each scene upload stacks on top and is torn down as a unit before
// the next one loads.
type Arena struct {
	device *Device

	mem      cl.Mem
	capacity int
	offset   int

	// Size of each live block keyed by its offset.
	blocks map[Ptr]int
}

// Allocate a device arena of the given byte capacity.
func (d *Device) NewArena(capacity int) (*Arena, error) {
	var errPtr *int32

	mem := cl.CreateBuffer(
		*d.ctx,
		cl.MEM_READ_WRITE,
		cl.MemFlags(capacity),
		nil,
		errPtr,
	)
	if errPtr != nil && cl.ErrorCode(*errPtr) != cl.SUCCESS {
		return nil, fmt.Errorf("device (%s): could not allocate %d byte arena (error: %s; code %d)", d.Name, capacity, ErrorName(cl.ErrorCode(*errPtr)), cl.ErrorCode(*errPtr))
	}

	return &Arena{
		device:   d,
		mem:      mem,
		capacity: capacity,
		offset:   arenaReserved,
		blocks:   make(map[Ptr]int),
	}, nil
}

// The underlying opencl memory object, bound as the heap argument of every
// kernel that chases scene pointers.
func (a *Arena) Handle() cl.Mem {
	return a.mem
}

// Number of live allocations.
func (a *Arena) Live() int {
	return len(a.blocks)
}

func (a *Arena) Malloc(size int) (Ptr, error) {
	if size <= 0 {
		return 0, fmt.Errorf("device (%s): invalid allocation size %d", a.device.Name, size)
	}

	aligned := alignBlock(size)
	if a.offset+aligned > a.capacity {
		return 0, fmt.Errorf("device (%s): arena exhausted; %d bytes requested, %d available", a.device.Name, aligned, a.capacity-a.offset)
	}

	ptr := Ptr(a.offset)
	a.offset += aligned
	a.blocks[ptr] = size
	return ptr, nil
}

func (a *Arena) Free(ptr Ptr) error {
	if _, exists := a.blocks[ptr]; !exists {
		return fmt.Errorf("device (%s): free of unknown pointer %#x", a.device.Name, uint64(ptr))
	}
	delete(a.blocks, ptr)

	// Rewind the bump pointer past the highest surviving block. Space below
	// a live block stays claimed until that block is freed as well.
	high := arenaReserved
	for blockPtr, size := range a.blocks {
		if end := int(blockPtr) + alignBlock(size); end > high {
			high = end
		}
	}
	a.offset = high
	return nil
}

func alignBlock(size int) int {
	return (size + arenaAlign - 1) &^ (arenaAlign - 1)
}

func (a *Arena) CopyToDevice(dst Ptr, data interface{}) error {
	blockSize, exists := a.blocks[dst]
	if !exists {
		return fmt.Errorf("device (%s): copy to unknown pointer %#x", a.device.Name, uint64(dst))
	}

	dataPtr, dataLen := getSliceData(data)
	if dataLen > blockSize {
		return fmt.Errorf("device (%s): copy of %d bytes overflows block of %d bytes", a.device.Name, dataLen, blockSize)
	}

	errCode := cl.EnqueueWriteBuffer(
		a.device.cmdQueue,
		a.mem,
		cl.TRUE,
		uint64(dst),
		uint64(dataLen),
		dataPtr,
		0,
		nil,
		nil,
	)
	if errCode != cl.SUCCESS {
		return fmt.Errorf("device (%s): error copying host data to device (error: %s; code %d)", a.device.Name, ErrorName(errCode), errCode)
	}

	return nil
}

func (a *Arena) CopyToHost(data interface{}, src Ptr) error {
	blockSize, exists := a.blocks[src]
	if !exists {
		return fmt.Errorf("device (%s): copy from unknown pointer %#x", a.device.Name, uint64(src))
	}

	dataPtr, dataLen := getSliceData(data)
	if dataLen > blockSize {
		return fmt.Errorf("device (%s): read of %d bytes overflows block of %d bytes", a.device.Name, dataLen, blockSize)
	}

	errCode := cl.EnqueueReadBuffer(
		a.device.cmdQueue,
		a.mem,
		cl.TRUE,
		uint64(src),
		uint64(dataLen),
		dataPtr,
		0,
		nil,
		nil,
	)
	if errCode != cl.SUCCESS {
		return fmt.Errorf("device (%s): error copying device data to host (error: %s; code %d)", a.device.Name, ErrorName(errCode), errCode)
	}

	return nil
}

func (a *Arena) Copy3D(dst Ptr, data interface{}, srcPitch int, ext Extent) error {
	src := sliceBytes(data)

	// Collapse the pitched source into one contiguous staging buffer so the
	// transfer happens as a single blocking write.
	staged := make([]byte, ext.Width*ext.Height*ext.Depth)
	wOffset := 0
	for slice := 0; slice < ext.Depth; slice++ {
		for row := 0; row < ext.Height; row++ {
			rOffset := (slice*ext.Height + row) * srcPitch
			copy(staged[wOffset:wOffset+ext.Width], src[rOffset:rOffset+ext.Width])
			wOffset += ext.Width
		}
	}

	return a.CopyToDevice(dst, staged)
}

func (a *Arena) Close() {
	if a.mem != nil {
		cl.ReleaseMemObject(a.mem)
		a.mem = nil
	}
	a.blocks = make(map[Ptr]int)
	a.offset = arenaReserved
}
