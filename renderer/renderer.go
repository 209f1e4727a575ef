// Package renderer hosts the output surfaces for traced frames: a still
// renderer that accumulates a fixed sample count into a png and an
// interactive opengl window with camera controls and scene switching.
package renderer

import (
	"image"
	"image/png"
	"os"
	"time"

	"github.com/cpcdoy/cuda-pathtracer/log"
	"github.com/cpcdoy/cuda-pathtracer/scene"
	"github.com/cpcdoy/cuda-pathtracer/tracer"
	"github.com/pkg/errors"
)

type Renderer interface {
	// Render blocks until rendering completes or the user closes the
	// output surface.
	Render() error

	Close()
}

type Options struct {
	// Frame dimensions in pixels.
	FrameW uint32
	FrameH uint32

	// Samples per pixel to accumulate; 0 keeps accumulating until the
	// renderer is closed.
	SamplesPerPixel uint32

	// Output file for still rendering.
	OutFile string
}

// A still renderer: accumulate, read back, encode.
type stillRenderer struct {
	logger  log.Logger
	tracer  *tracer.Tracer
	scene   *scene.Scene
	camera  scene.Camera
	options Options
}

// NewStill renders the scene to the png file named by opts.OutFile. The
// scene must already be uploaded to the tracer arena.
func NewStill(sc *scene.Scene, tr *tracer.Tracer, camera scene.Camera, opts Options) Renderer {
	return &stillRenderer{
		logger:  log.New("renderer"),
		tracer:  tr,
		scene:   sc,
		camera:  camera,
		options: opts,
	}
}

func (r *stillRenderer) Render() error {
	spp := r.options.SamplesPerPixel
	if spp == 0 {
		spp = 1
	}

	start := time.Now()
	for sample := uint32(0); sample < spp; sample++ {
		if _, err := r.tracer.Trace(r.scene.DevicePtr(), &r.camera); err != nil {
			return err
		}
	}
	r.logger.Noticef("rendered %d samples in %v", spp, time.Since(start))

	frame := image.NewRGBA(image.Rect(0, 0, int(r.options.FrameW), int(r.options.FrameH)))
	if err := r.tracer.ReadFrame(frame.Pix); err != nil {
		return err
	}

	f, err := os.Create(r.options.OutFile)
	if err != nil {
		return errors.Wrap(err, "could not create output file")
	}
	defer f.Close()

	if err = png.Encode(f, frame); err != nil {
		return errors.Wrapf(err, "could not encode %s", r.options.OutFile)
	}
	r.logger.Noticef("wrote frame to %s", r.options.OutFile)
	return nil
}

func (r *stillRenderer) Close() {}
