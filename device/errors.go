package device

import (
	"fmt"

	"github.com/achilleasa/gopencl/v1.2/cl"
)

// Return a textual description of an opencl error code.
func ErrorName(errCode cl.ErrorCode) string {
	switch errCode {
	case 0:
		return "SUCCESS"
	case -1:
		return "DEVICE_NOT_FOUND"
	case -2:
		return "DEVICE_NOT_AVAILABLE"
	case -3:
		return "COMPILER_NOT_AVAILABLE"
	case -4:
		return "MEM_OBJECT_ALLOCATION_FAILURE"
	case -5:
		return "OUT_OF_RESOURCES"
	case -6:
		return "OUT_OF_HOST_MEMORY"
	case -8:
		return "MEM_COPY_OVERLAP"
	case -10:
		return "IMAGE_FORMAT_NOT_SUPPORTED"
	case -11:
		return "BUILD_PROGRAM_FAILURE"
	case -12:
		return "MAP_FAILURE"
	case -30:
		return "INVALID_VALUE"
	case -31:
		return "INVALID_DEVICE_TYPE"
	case -32:
		return "INVALID_PLATFORM"
	case -33:
		return "INVALID_DEVICE"
	case -34:
		return "INVALID_CONTEXT"
	case -36:
		return "INVALID_COMMAND_QUEUE"
	case -37:
		return "INVALID_HOST_PTR"
	case -38:
		return "INVALID_MEM_OBJECT"
	case -44:
		return "INVALID_PROGRAM"
	case -45:
		return "INVALID_PROGRAM_EXECUTABLE"
	case -46:
		return "INVALID_KERNEL_NAME"
	case -48:
		return "INVALID_KERNEL"
	case -49:
		return "INVALID_ARG_INDEX"
	case -50:
		return "INVALID_ARG_VALUE"
	case -51:
		return "INVALID_ARG_SIZE"
	case -52:
		return "INVALID_KERNEL_ARGS"
	case -53:
		return "INVALID_WORK_DIMENSION"
	case -54:
		return "INVALID_WORK_GROUP_SIZE"
	case -55:
		return "INVALID_WORK_ITEM_SIZE"
	case -56:
		return "INVALID_GLOBAL_OFFSET"
	case -61:
		return "INVALID_BUFFER_SIZE"
	case -63:
		return "INVALID_GLOBAL_WORK_SIZE"
	default:
		return fmt.Sprintf("unknown error code %d", errCode)
	}
}
