package scene

import (
	"github.com/cpcdoy/cuda-pathtracer/asset/texture"
	"github.com/cpcdoy/cuda-pathtracer/device"
	"github.com/cpcdoy/cuda-pathtracer/log"
)

// uploader drives one upload attempt. Every device allocation it performs
// is journaled so that a failure partway through the pipeline can unwind
// the allocations made so far instead of leaking them.
type uploader struct {
	alloc  device.Allocator
	images texture.Loader
	logger log.Logger

	journal []device.Ptr

	faceCount    int
	textureBytes int
}

func (up *uploader) malloc(size int) (device.Ptr, error) {
	ptr, err := up.alloc.Malloc(size)
	if err != nil {
		return 0, err
	}
	up.journal = append(up.journal, ptr)
	return ptr, nil
}

// mallocAndCopy allocates size bytes and fills them from the supplied slice.
func (up *uploader) mallocAndCopy(size int, data interface{}) (device.Ptr, error) {
	ptr, err := up.malloc(size)
	if err != nil {
		return 0, err
	}
	if err = up.alloc.CopyToDevice(ptr, data); err != nil {
		return 0, err
	}
	return ptr, nil
}

// rollback frees journaled allocations in reverse order. Free errors are
// logged and do not stop the unwind.
func (up *uploader) rollback() {
	for i := len(up.journal) - 1; i >= 0; i-- {
		if err := up.alloc.Free(up.journal[i]); err != nil {
			up.logger.Errorf("error while unwinding partial scene upload: %v", err)
		}
	}
	up.journal = nil
}
