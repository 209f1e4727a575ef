package device

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"unsafe"

	"github.com/achilleasa/gopencl/v1.2/cl"
)

const (
	platformBufferSize = 100
	deviceBufferSize   = 100
	dataBufferSize     = 1024
)

// Information about a system's opencl platform and its devices.
type PlatformInfo struct {
	Profile    string
	Version    string
	Name       string
	Vendor     string
	Extensions string
	Devices    DeviceList
}

func (pl PlatformInfo) String() string {
	var buf bytes.Buffer

	buf.WriteString(
		fmt.Sprintf(
			"Version:    %s\nName:       %s\nVendor:     %s\nExtensions: %s\nDevices:\n",
			pl.Version,
			pl.Name,
			pl.Vendor,
			pl.Extensions,
		),
	)

	for dIdx, d := range pl.Devices {
		buf.WriteString(fmt.Sprintf("  Device %02d:\n", dIdx))
		buf.WriteString(indentRegex.ReplaceAllString(d.String(), "    "))
		buf.WriteString("\n\n")
	}

	return buf.String()
}

// Get information about the supported opencl platforms and devices.
func GetPlatformInfo() ([]PlatformInfo, error) {
	pids := make([]cl.PlatformID, platformBufferSize)
	data := make([]byte, dataBufferSize)
	dataLen := uint64(0)

	devices := make([]cl.DeviceId, deviceBufferSize)
	deviceCount := uint32(0)

	pidCount := uint32(0)
	cl.GetPlatformIDs(uint32(len(pids)), &pids[0], &pidCount)

	queryPlatform := func(pid cl.PlatformID, param cl.PlatformInfo) string {
		dataLen = 0
		cl.GetPlatformInfo(pid, param, dataBufferSize, unsafe.Pointer(&data[0]), &dataLen)
		return string(data[0 : dataLen-1])
	}

	enumDevices := func(pid cl.PlatformID, clType cl.DeviceType, devType DeviceType) DeviceList {
		list := make(DeviceList, 0)
		deviceCount = 0
		cl.GetDeviceIDs(pid, clType, uint32(deviceBufferSize), &devices[0], &deviceCount)
		for dIdx := 0; dIdx < int(deviceCount); dIdx++ {
			cl.GetDeviceInfo(devices[dIdx], cl.DEVICE_NAME, dataBufferSize, unsafe.Pointer(&data[0]), &dataLen)
			list = append(list, &Device{
				Name: string(data[0 : dataLen-1]),
				Id:   devices[dIdx],
				Type: devType,
			})
		}
		return list
	}

	infoList := make([]PlatformInfo, int(pidCount))
	for pIdx := 0; pIdx < int(pidCount); pIdx++ {
		infoList[pIdx].Profile = queryPlatform(pids[pIdx], cl.PLATFORM_PROFILE)
		infoList[pIdx].Version = queryPlatform(pids[pIdx], cl.PLATFORM_VERSION)
		infoList[pIdx].Name = queryPlatform(pids[pIdx], cl.PLATFORM_NAME)
		infoList[pIdx].Vendor = queryPlatform(pids[pIdx], cl.PLATFORM_VENDOR)
		infoList[pIdx].Extensions = queryPlatform(pids[pIdx], cl.PLATFORM_EXTENSIONS)

		infoList[pIdx].Devices = append(
			enumDevices(pids[pIdx], cl.DEVICE_TYPE_CPU, CpuDevice),
			enumDevices(pids[pIdx], cl.DEVICE_TYPE_GPU, GpuDevice)...,
		)

		for _, dev := range infoList[pIdx].Devices {
			if err := dev.detectSpeed(); err != nil {
				return nil, err
			}
		}
	}

	return infoList, nil
}

// Scan all available opencl platforms and select devices matching the query.
func SelectDevices(typeMask DeviceType, matchName string) (DeviceList, error) {
	platforms, err := GetPlatformInfo()
	if err != nil {
		return nil, err
	}

	list := make(DeviceList, 0)
	for _, p := range platforms {
		for _, d := range p.Devices {
			if d.Type&typeMask != d.Type {
				continue
			}
			if matchName != "" && !strings.Contains(d.Name, matchName) {
				continue
			}
			list = append(list, d)
		}
	}

	// Fastest device first.
	sort.Slice(list, func(i, j int) bool {
		return list[i].Speed > list[j].Speed
	})
	return list, nil
}
