package cmd

import (
	"github.com/cpcdoy/cuda-pathtracer/asset/texture"
	"github.com/cpcdoy/cuda-pathtracer/device"
	"github.com/cpcdoy/cuda-pathtracer/scene"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

// Load a scene into host memory and report its contents. Useful for
// validating scene files on machines without an opencl runtime.
func SceneInfo(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() != 1 {
		return errors.New("missing scene file argument")
	}

	alloc := device.NewHostAllocator()
	defer alloc.Close()

	sc := scene.New(ctx.Args().First(), alloc, texture.FileLoader{})
	sc.Upload(nil)
	if !sc.Ready() {
		return errors.Errorf("could not load scene: %s", sc.Err())
	}

	logger.Noticef("scene statistics for %s\n%s", sc.Name(), sc.Stats())
	sc.Release()
	return nil
}
