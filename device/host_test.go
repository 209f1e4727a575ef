package device

import (
	"testing"
)

func TestHostAllocatorMallocFree(t *testing.T) {
	alloc := NewHostAllocator()

	ptr, err := alloc.Malloc(64)
	if err != nil {
		t.Fatalf("malloc error: %v", err)
	}
	if ptr == 0 {
		t.Fatal("expected a non-null pointer")
	}
	if alloc.Live() != 1 {
		t.Fatalf("expected 1 live allocation; got %d", alloc.Live())
	}

	if err = alloc.Free(ptr); err != nil {
		t.Fatalf("free error: %v", err)
	}
	if alloc.Live() != 0 {
		t.Fatalf("expected 0 live allocations; got %d", alloc.Live())
	}

	if err = alloc.Free(ptr); err == nil {
		t.Fatal("expected an error for a double free")
	}
	if _, err = alloc.Malloc(0); err == nil {
		t.Fatal("expected an error for a zero-byte allocation")
	}
}

func TestHostAllocatorCopyRoundTrip(t *testing.T) {
	type record struct {
		A uint64
		B Ptr
	}

	alloc := NewHostAllocator()
	in := []record{{A: 1, B: 0xdead}, {A: 2, B: 0xbeef}}

	ptr, err := alloc.Malloc(len(in) * 16)
	if err != nil {
		t.Fatalf("malloc error: %v", err)
	}
	if err = alloc.CopyToDevice(ptr, in); err != nil {
		t.Fatalf("copy error: %v", err)
	}

	out := make([]record, len(in))
	if err = alloc.CopyToHost(out, ptr); err != nil {
		t.Fatalf("readback error: %v", err)
	}
	if out[0] != in[0] || out[1] != in[1] {
		t.Fatalf("records did not survive the round trip: %+v", out)
	}
}

func TestHostAllocatorBoundsChecks(t *testing.T) {
	alloc := NewHostAllocator()

	ptr, err := alloc.Malloc(8)
	if err != nil {
		t.Fatalf("malloc error: %v", err)
	}

	if err = alloc.CopyToDevice(ptr, make([]float32, 4)); err == nil {
		t.Fatal("expected an overflow error on write")
	}
	if err = alloc.CopyToHost(make([]float32, 4), ptr); err == nil {
		t.Fatal("expected an overflow error on read")
	}
	if err = alloc.CopyToDevice(Ptr(0xbad), []float32{1}); err == nil {
		t.Fatal("expected an error for an unknown pointer")
	}
}

func TestHostAllocatorCopy3D(t *testing.T) {
	alloc := NewHostAllocator()

	// Two 2x2 slices picked out of a source with a 16-byte row pitch.
	src := []float32{
		1, 2, 99, 99,
		3, 4, 99, 99,
		5, 6, 99, 99,
		7, 8, 99, 99,
	}

	ptr, err := alloc.Malloc(2 * 2 * 2 * 4)
	if err != nil {
		t.Fatalf("malloc error: %v", err)
	}
	err = alloc.Copy3D(ptr, src, 16, Extent{Width: 8, Height: 2, Depth: 2})
	if err != nil {
		t.Fatalf("copy error: %v", err)
	}

	out := make([]float32, 8)
	if err = alloc.CopyToHost(out, ptr); err != nil {
		t.Fatalf("readback error: %v", err)
	}
	exp := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	for i := range exp {
		if out[i] != exp[i] {
			t.Fatalf("expected packed rows %v; got %v", exp, out)
		}
	}
}
