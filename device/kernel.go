package device

import (
	"fmt"
	"reflect"
	"time"
	"unsafe"

	"github.com/achilleasa/gopencl/v1.2/cl"
	"github.com/cpcdoy/cuda-pathtracer/types"
)

// A wrapper around opencl kernel handles.
type Kernel struct {
	device       *Device
	kernelHandle cl.Kernel
	name         string

	offsets         [2]uint64
	globalWorkSizes [2]uint64
	localWorkSizes  [2]uint64
}

// Free any allocated resources used by this kernel.
func (k *Kernel) Release() {
	if k.kernelHandle != nil {
		cl.ReleaseKernel(k.kernelHandle)
		k.kernelHandle = nil
	}
}

// Bind arguments to the kernel.
func (k *Kernel) SetArgs(args ...interface{}) error {
	var errCode cl.ErrorCode
	for argIndex, arg := range args {
		switch v := arg.(type) {
		case *Arena:
			memHandle := v.Handle()
			errCode = cl.SetKernelArg(k.kernelHandle, uint32(argIndex), 8, unsafe.Pointer(&memHandle))
		case Ptr:
			errCode = cl.SetKernelArg(k.kernelHandle, uint32(argIndex), 8, unsafe.Pointer(&v))
		case int32:
			errCode = cl.SetKernelArg(k.kernelHandle, uint32(argIndex), 4, unsafe.Pointer(&v))
		case uint32:
			errCode = cl.SetKernelArg(k.kernelHandle, uint32(argIndex), 4, unsafe.Pointer(&v))
		case float32:
			errCode = cl.SetKernelArg(k.kernelHandle, uint32(argIndex), 4, unsafe.Pointer(&v))
		case types.Vec2:
			errCode = cl.SetKernelArg(k.kernelHandle, uint32(argIndex), 8, unsafe.Pointer(&v[0]))
		case types.Vec3:
			errCode = cl.SetKernelArg(k.kernelHandle, uint32(argIndex), 12, unsafe.Pointer(&v[0]))
		case types.Vec4:
			errCode = cl.SetKernelArg(k.kernelHandle, uint32(argIndex), 16, unsafe.Pointer(&v[0]))
		default:
			return fmt.Errorf(
				"device (%s): could not set arg %d for kernel %s; unsupported arg type: %s",
				k.device.Name,
				argIndex,
				k.name,
				reflect.TypeOf(arg).Name(),
			)
		}

		if errCode != cl.SUCCESS {
			return fmt.Errorf(
				"device (%s): could not set arg %d for kernel %s (error: %s; code %d)",
				k.device.Name,
				argIndex,
				k.name,
				ErrorName(errCode),
				errCode,
			)
		}
	}

	return nil
}

// Execute a 2D kernel over a globalWorkSizeX x globalWorkSizeY grid. If both
// local work sizes are 0 the opencl implementation picks the optimal split
// for the underlying hardware.
func (k *Kernel) Exec2D(offsetX, offsetY, globalWorkSizeX, globalWorkSizeY, localWorkSizeX, localWorkSizeY int) (time.Duration, error) {
	var errCode cl.ErrorCode
	var offsetPtr *uint64
	var localSizePtr *uint64

	if offsetX > 0 || offsetY > 0 {
		k.offsets[0], k.offsets[1] = uint64(offsetX), uint64(offsetY)
		offsetPtr = (*uint64)(unsafe.Pointer(&k.offsets[0]))
	}
	k.globalWorkSizes[0], k.globalWorkSizes[1] = uint64(globalWorkSizeX), uint64(globalWorkSizeY)
	if localWorkSizeX != 0 && localWorkSizeY != 0 {
		k.localWorkSizes[0], k.localWorkSizes[1] = uint64(localWorkSizeX), uint64(localWorkSizeY)
		localSizePtr = (*uint64)(unsafe.Pointer(&k.localWorkSizes[0]))
	}

	tick := time.Now()
	errCode = cl.EnqueueNDRangeKernel(
		k.device.cmdQueue,
		k.kernelHandle,
		2,
		offsetPtr,
		(*uint64)(unsafe.Pointer(&k.globalWorkSizes[0])),
		localSizePtr,
		0,
		nil,
		nil,
	)
	if errCode != cl.SUCCESS {
		return 0, fmt.Errorf("device (%s): unable to execute kernel %s (error: %s; code %d)", k.device.Name, k.name, ErrorName(errCode), errCode)
	}

	errCode = cl.Finish(k.device.cmdQueue)
	if errCode != cl.SUCCESS {
		return 0, fmt.Errorf("device (%s): kernel %s did not complete successfully (error: %s; code %d)", k.device.Name, k.name, ErrorName(errCode), errCode)
	}

	return time.Since(tick), nil
}
