package main

import (
	"os"

	"github.com/cpcdoy/cuda-pathtracer/cmd"
	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "cuda-pathtracer"
	app.Usage = "render scenes using progressive path tracing"
	app.Version = "0.0.1"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
	}

	deviceFlags := []cli.Flag{
		cli.StringFlag{
			Name:  "device",
			Usage: "only use opencl devices whose name contains this value",
		},
		cli.BoolFlag{
			Name:  "cpu",
			Usage: "only use cpu opencl devices",
		},
		cli.IntFlag{
			Name:  "arena-size",
			Value: 512,
			Usage: "device memory arena size in mb",
		},
	}
	frameFlags := []cli.Flag{
		cli.IntFlag{
			Name:  "width",
			Value: 512,
			Usage: "frame width",
		},
		cli.IntFlag{
			Name:  "height",
			Value: 512,
			Usage: "frame height",
		},
	}

	app.Commands = []cli.Command{
		{
			Name:   "list-devices",
			Usage:  "list available opencl devices",
			Action: cmd.ListDevices,
		},
		{
			Name:      "info",
			Usage:     "inspect a scene file without uploading it to a device",
			ArgsUsage: "scene_file.scene",
			Action:    cmd.SceneInfo,
		},
		{
			Name:  "render",
			Usage: "render scene",
			Subcommands: []cli.Command{
				{
					Name:      "frame",
					Usage:     "render a single frame",
					ArgsUsage: "scene_file.scene",
					Flags: append(append([]cli.Flag{
						cli.IntFlag{
							Name:  "spp",
							Value: 16,
							Usage: "samples per pixel",
						},
						cli.StringFlag{
							Name:  "out, o",
							Value: "frame.png",
							Usage: "image filename for the rendered frame",
						},
					}, frameFlags...), deviceFlags...),
					Action: cmd.RenderFrame,
				},
				{
					Name:      "interactive",
					Usage:     "render an interactive view of one or more scenes",
					ArgsUsage: "scene_file1.scene scene_file2.scene ...",
					Description: `
Open an opengl window displaying the progressively refined frame. The camera
moves with the arrow keys or wasd (hold shift for extra speed) and rotates
while dragging with the left mouse button. When multiple scene files are given
the n and p keys cycle through them; only the displayed scene occupies device
memory.`,
					Flags:  append(frameFlags, deviceFlags...),
					Action: cmd.RenderInteractive,
				},
			},
		},
	}

	app.Run(os.Args)
}
