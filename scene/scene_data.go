// Package scene implements the gpu scene lifecycle: parsing the .scene text
// description, loading the referenced wavefront model and mirroring the
// resulting geometry, materials, lights and environment cubemap into device
// memory behind a single device-resident aggregate struct.
package scene

import (
	"bytes"
	"fmt"
	"unsafe"

	"github.com/cpcdoy/cuda-pathtracer/device"
	"github.com/cpcdoy/cuda-pathtracer/types"
	"github.com/olekukonko/tablewriter"
)

// A {count, device pointer} pair describing one device array of T. A zero
// Size always pairs with a null Data pointer; such buffers are never
// dereferenced or freed.
type Buffer[T any] struct {
	Size uint64
	Data device.Ptr
}

// One flattened triangle: the intersection-test unit consumed by the trace
// kernel. Resolving all attribute indices up front trades memory for
// branch-light, pointer-chasing-free intersection loops.
type Face struct {
	Vertices  [3]types.Vec3
	Normals   [3]types.Vec3
	Texcoords [3]types.Vec2

	// Per-face tangent derived from the uv parameterization.
	Tangent types.Vec3

	// Index into the material buffer; -1 when the face has no material.
	MaterialID int32
}

// A mesh owns exactly one device buffer of flattened faces. Textures and
// materials are referenced from faces by index only, never owned here.
type Mesh struct {
	Faces Buffer[Face]
}

// Texture indices into the texture buffer; -1 means "no texture". Indices
// stay stable if the texture buffer ever relocates.
type Material struct {
	DiffuseSpecMap int32
	NormalMap      int32
}

// A texture descriptor. Data points at an independent device allocation of
// W*H*NbChan float32 texels.
type Texture struct {
	W      int32
	H      int32
	NbChan int32

	padding int32

	Data device.Ptr
}

// A point light. Lights are stored as one contiguous device array with no
// per-light sub-allocations.
type LightProp struct {
	Color    types.Vec3
	Position types.Vec3
	Emission float32
	Radius   float32
}

// Channel format kinds understood by the trace kernel.
const ChannelFloat int32 = 0

// Per-channel bit layout of a device image array.
type ChannelDesc struct {
	X    int32
	Y    int32
	Z    int32
	W    int32
	Kind int32
}

// The environment cubemap: 6 square power-of-two faces stored back to back
// in +X, -X, +Y, -Y, +Z, -Z order.
type CubeArray struct {
	Desc     ChannelDesc
	FaceSize uint32
	Data     device.Ptr
}

// The aggregate scene struct consumed directly by the trace kernel. Before
// the struct itself is copied to the device every pointer it holds must
// already be a device address; after that copy only the release path may
// interpret those pointers again, and only by reading them back from the
// device.
type SceneData struct {
	Meshes    Buffer[Mesh]
	Materials Buffer[Material]
	Lights    Buffer[LightProp]
	Textures  Buffer[Texture]
	Cubemap   CubeArray
}

// Byte sizes of the device-resident records.
var (
	sizeofFace      = int(unsafe.Sizeof(Face{}))
	sizeofMesh      = int(unsafe.Sizeof(Mesh{}))
	sizeofMaterial  = int(unsafe.Sizeof(Material{}))
	sizeofTexture   = int(unsafe.Sizeof(Texture{}))
	sizeofLightProp = int(unsafe.Sizeof(LightProp{}))
	sizeofSceneData = int(unsafe.Sizeof(SceneData{}))
)

// Build a tabular representation of the uploaded scene.
func (s *Scene) Stats() string {
	if !s.ready {
		return "no scene data uploaded"
	}

	sd := s.sceneData
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Asset Type", "Count", "Device Size"})
	table.Append([]string{"Meshes", fmt.Sprintf("%d", sd.Meshes.Size), fmtSize(int(sd.Meshes.Size) * sizeofMesh)})
	table.Append([]string{"Faces", fmt.Sprintf("%d", s.faceCount), fmtSize(s.faceCount * sizeofFace)})
	table.Append([]string{"Materials", fmt.Sprintf("%d", sd.Materials.Size), fmtSize(int(sd.Materials.Size) * sizeofMaterial)})
	table.Append([]string{"Textures", fmt.Sprintf("%d", sd.Textures.Size), fmtSize(int(sd.Textures.Size)*sizeofTexture + s.textureBytes)})
	table.Append([]string{"Lights", fmt.Sprintf("%d", sd.Lights.Size), fmtSize(int(sd.Lights.Size) * sizeofLightProp)})
	table.Append([]string{"Cubemap", fmt.Sprintf("%dx%dx6", sd.Cubemap.FaceSize, sd.Cubemap.FaceSize), fmtSize(cubemapBytes(sd.Cubemap.FaceSize))})
	total := int(sd.Meshes.Size)*sizeofMesh +
		s.faceCount*sizeofFace +
		int(sd.Materials.Size)*sizeofMaterial +
		int(sd.Textures.Size)*sizeofTexture + s.textureBytes +
		int(sd.Lights.Size)*sizeofLightProp +
		cubemapBytes(sd.Cubemap.FaceSize) +
		sizeofSceneData
	table.SetFooter([]string{"Total", "", fmtSize(total)})

	table.Render()
	return buf.String()
}

func cubemapBytes(faceSize uint32) int {
	return int(faceSize) * int(faceSize) * cubemapComponents * cubemapFaces * 4
}

// Format a byte count with the appropriate byte/kb/mb unit.
func fmtSize(totalBytes int) string {
	switch {
	case totalBytes < 1e3:
		return fmt.Sprintf("%3d bytes", totalBytes)
	case totalBytes < 1e6:
		return fmt.Sprintf("%3.1f kb", float32(totalBytes)/1e3)
	}
	return fmt.Sprintf("%5.1f mb", float32(totalBytes)/1e6)
}
