package device

import (
	"fmt"
)

// A host-memory implementation of Allocator. It backs the CPU debug path and
// lets the scene lifecycle run (and be tested) without an opencl runtime:
// every block lives in host memory and every primitive keeps the exact
// semantics of its device counterpart, including the null-pointer and
// out-of-bounds rules.
type HostAllocator struct {
	blocks map[Ptr][]byte
	next   Ptr
}

// Create an allocator backed by host memory.
func NewHostAllocator() *HostAllocator {
	return &HostAllocator{
		blocks: make(map[Ptr][]byte),
		next:   1,
	}
}

// Number of live allocations. Upload/release symmetry means this returns to
// zero after a scene is torn down.
func (h *HostAllocator) Live() int {
	return len(h.blocks)
}

func (h *HostAllocator) Malloc(size int) (Ptr, error) {
	if size <= 0 {
		return 0, fmt.Errorf("host allocator: invalid allocation size %d", size)
	}

	ptr := h.next
	h.next += Ptr(size)
	h.blocks[ptr] = make([]byte, size)
	return ptr, nil
}

func (h *HostAllocator) Free(ptr Ptr) error {
	if _, exists := h.blocks[ptr]; !exists {
		return fmt.Errorf("host allocator: free of unknown pointer %#x", uint64(ptr))
	}
	delete(h.blocks, ptr)
	return nil
}

func (h *HostAllocator) CopyToDevice(dst Ptr, data interface{}) error {
	block, exists := h.blocks[dst]
	if !exists {
		return fmt.Errorf("host allocator: copy to unknown pointer %#x", uint64(dst))
	}

	src := sliceBytes(data)
	if len(src) > len(block) {
		return fmt.Errorf("host allocator: copy of %d bytes overflows block of %d bytes", len(src), len(block))
	}
	copy(block, src)
	return nil
}

func (h *HostAllocator) CopyToHost(data interface{}, src Ptr) error {
	block, exists := h.blocks[src]
	if !exists {
		return fmt.Errorf("host allocator: copy from unknown pointer %#x", uint64(src))
	}

	dst := sliceBytes(data)
	if len(dst) > len(block) {
		return fmt.Errorf("host allocator: read of %d bytes overflows block of %d bytes", len(dst), len(block))
	}
	copy(dst, block)
	return nil
}

func (h *HostAllocator) Copy3D(dst Ptr, data interface{}, srcPitch int, ext Extent) error {
	block, exists := h.blocks[dst]
	if !exists {
		return fmt.Errorf("host allocator: 3D copy to unknown pointer %#x", uint64(dst))
	}

	src := sliceBytes(data)
	rowBytes := ext.Width
	total := rowBytes * ext.Height * ext.Depth
	if total > len(block) {
		return fmt.Errorf("host allocator: 3D copy of %d bytes overflows block of %d bytes", total, len(block))
	}

	wOffset := 0
	for slice := 0; slice < ext.Depth; slice++ {
		for row := 0; row < ext.Height; row++ {
			rOffset := (slice*ext.Height + row) * srcPitch
			copy(block[wOffset:wOffset+rowBytes], src[rOffset:rOffset+rowBytes])
			wOffset += rowBytes
		}
	}
	return nil
}

func (h *HostAllocator) Close() {
	h.blocks = make(map[Ptr][]byte)
}
