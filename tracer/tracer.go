// Package tracer drives the opencl path tracing kernel: it owns the device
// arena that scene uploads target, the per-pixel accumulation buffers and
// the per-frame kernel dispatch.
package tracer

import (
	"path/filepath"
	"runtime"
	"time"

	"github.com/cpcdoy/cuda-pathtracer/device"
	"github.com/cpcdoy/cuda-pathtracer/log"
	"github.com/cpcdoy/cuda-pathtracer/scene"
	"github.com/pkg/errors"
)

const traceKernelName = "tracePixel"

type Options struct {
	// Output frame dimensions in pixels.
	FrameW uint32
	FrameH uint32

	// Device arena capacity in bytes; 0 selects the default capacity.
	ArenaCapacity int
}

type Tracer struct {
	logger log.Logger

	device *device.Device
	arena  *device.Arena
	kernel *device.Kernel

	options Options

	// rgba8 output and float4 radiance accumulation buffers.
	frameBuffer device.Ptr
	accumBuffer device.Ptr

	// Number of frames accumulated since the last camera change.
	frameCount uint32
}

// New initializes the target device with the tracing program and allocates
// the frame buffers. The caller keeps ownership of the device; Close only
// tears down what New allocated.
func New(dev *device.Device, options Options) (*Tracer, error) {
	logger := log.New("tracer")

	if err := dev.Init(kernelPath()); err != nil {
		return nil, errors.Wrapf(err, "could not initialize device %q", dev.Name)
	}

	capacity := options.ArenaCapacity
	if capacity == 0 {
		capacity = device.DefaultArenaCap
	}
	arena, err := dev.NewArena(capacity)
	if err != nil {
		return nil, err
	}

	tr := &Tracer{
		logger:  logger,
		device:  dev,
		arena:   arena,
		options: options,
	}

	pixels := int(options.FrameW) * int(options.FrameH)
	if tr.frameBuffer, err = arena.Malloc(pixels * 4); err != nil {
		tr.Close()
		return nil, errors.Wrap(err, "could not allocate frame buffer")
	}
	if tr.accumBuffer, err = arena.Malloc(pixels * 16); err != nil {
		tr.Close()
		return nil, errors.Wrap(err, "could not allocate accumulation buffer")
	}

	if tr.kernel, err = dev.Kernel(traceKernelName); err != nil {
		tr.Close()
		return nil, err
	}

	logger.Noticef("using device %s with a %d mb arena", dev.Name, capacity>>20)
	return tr, nil
}

// Arena returns the allocator that scene uploads should target so that
// scene pointers resolve inside the kernel address space.
func (tr *Tracer) Arena() *device.Arena {
	return tr.arena
}

// ResetAccumulation discards accumulated radiance. Call after any camera or
// scene change.
func (tr *Tracer) ResetAccumulation() {
	tr.frameCount = 0
}

// Trace renders one progressive sample per pixel on top of the accumulated
// radiance and tonemaps the running average into the rgba8 frame buffer.
func (tr *Tracer) Trace(sceneData device.Ptr, camera *scene.Camera) (time.Duration, error) {
	tr.frameCount++

	err := tr.kernel.SetArgs(
		tr.arena,
		sceneData,
		tr.frameBuffer,
		tr.accumBuffer,
		tr.options.FrameW,
		tr.options.FrameH,
		tr.frameCount,
		camera.Position.Vec4(0),
		camera.Dir.Vec4(0),
		camera.U.Vec4(0),
		camera.V.Vec4(0),
		camera.FovX,
		camera.FocusDist,
		camera.Aperture,
	)
	if err != nil {
		return 0, err
	}

	return tr.kernel.Exec2D(0, 0, int(tr.options.FrameW), int(tr.options.FrameH), 0, 0)
}

// ReadFrame copies the rgba8 frame buffer into out, which must hold
// FrameW * FrameH * 4 bytes.
func (tr *Tracer) ReadFrame(out []byte) error {
	return tr.arena.CopyToHost(out, tr.frameBuffer)
}

// Close releases the kernel and the device arena.
func (tr *Tracer) Close() {
	if tr.kernel != nil {
		tr.kernel.Release()
		tr.kernel = nil
	}
	if tr.arena != nil {
		tr.arena.Close()
		tr.arena = nil
	}
}

// The tracing program ships next to this package.
func kernelPath() string {
	_, thisFile, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(thisFile), "kernels", "trace.cl")
}
