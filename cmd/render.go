package cmd

import (
	"github.com/cpcdoy/cuda-pathtracer/asset/texture"
	"github.com/cpcdoy/cuda-pathtracer/device"
	"github.com/cpcdoy/cuda-pathtracer/renderer"
	"github.com/cpcdoy/cuda-pathtracer/scene"
	"github.com/cpcdoy/cuda-pathtracer/tracer"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

// Render a still frame to a png file.
func RenderFrame(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() != 1 {
		return errors.New("missing scene file argument")
	}

	opts := renderer.Options{
		FrameW:          uint32(ctx.Int("width")),
		FrameH:          uint32(ctx.Int("height")),
		SamplesPerPixel: uint32(ctx.Int("spp")),
		OutFile:         ctx.String("out"),
	}

	tr, err := setupTracer(ctx, opts)
	if err != nil {
		return err
	}
	defer tr.Close()

	sc := scene.New(ctx.Args().First(), tr.Arena(), texture.FileLoader{})
	camera := scene.DefaultCamera()
	sc.Upload(&camera)
	if !sc.Ready() {
		return errors.Errorf("could not load scene: %s", sc.Err())
	}
	defer sc.Release()
	logger.Noticef("scene statistics\n%s", sc.Stats())

	r := renderer.NewStill(sc, tr, camera, opts)
	defer r.Close()
	return r.Render()
}

// Render an interactive view of one or more scenes.
func RenderInteractive(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() == 0 {
		return errors.New("missing scene file argument")
	}

	opts := renderer.Options{
		FrameW: uint32(ctx.Int("width")),
		FrameH: uint32(ctx.Int("height")),
	}

	tr, err := setupTracer(ctx, opts)
	if err != nil {
		return err
	}
	defer tr.Close()

	playlist := make([]*scene.Scene, ctx.NArg())
	for i, scenePath := range ctx.Args() {
		playlist[i] = scene.New(scenePath, tr.Arena(), texture.FileLoader{})
	}

	r, err := renderer.NewInteractive(playlist, tr, opts)
	if err != nil {
		return err
	}
	defer r.Close()
	return r.Render()
}

// Pick an opencl device and stand up a tracer on it.
func setupTracer(ctx *cli.Context, opts renderer.Options) (*tracer.Tracer, error) {
	devices, err := device.SelectDevices(deviceTypeMask(ctx), ctx.String("device"))
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, errors.New("no matching opencl device")
	}

	// Devices are sorted by estimated speed; use the fastest match.
	return tracer.New(devices[0], tracer.Options{
		FrameW:        opts.FrameW,
		FrameH:        opts.FrameH,
		ArenaCapacity: ctx.Int("arena-size") << 20,
	})
}

func deviceTypeMask(ctx *cli.Context) device.DeviceType {
	if ctx.Bool("cpu") {
		return device.CpuDevice
	}
	return device.AllDevices
}
