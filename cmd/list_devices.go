package cmd

import (
	"bytes"
	"fmt"

	"github.com/cpcdoy/cuda-pathtracer/device"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// List available opencl devices.
func ListDevices(ctx *cli.Context) error {
	setupLogging(ctx)

	platforms, err := device.GetPlatformInfo()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Platform", "Device", "Type", "Speed (GFlops)"})
	for _, platform := range platforms {
		for _, dev := range platform.Devices {
			table.Append([]string{
				platform.Name,
				dev.Name,
				dev.Type.String(),
				fmt.Sprintf("%d", dev.Speed),
			})
		}
	}
	table.Render()

	logger.Noticef("available opencl devices\n%s", buf.String())
	return nil
}
