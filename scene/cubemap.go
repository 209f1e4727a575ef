package scene

import (
	"strconv"
	"strings"

	"github.com/cpcdoy/cuda-pathtracer/device"
	"github.com/pkg/errors"
)

const (
	cubemapFaces      = 6
	cubemapComponents = 4

	// Fallback sky color when the scene provides no usable cubemap.
	defaultCubemapColor uint32 = 0x05070A
)

// Tile coordinates of each cubemap face inside a 4x3 horizontal cross
// image, in +X, -X, +Y, -Y, +Z, -Z face order.
var cubeCrossTiles = [cubemapFaces][2]int32{
	{2, 1}, // +X
	{0, 1}, // -X
	{1, 0}, // +Y
	{1, 2}, // -Y
	{1, 1}, // +Z
	{3, 1}, // -Z
}

// uploadCubemap builds the 6-face environment map and uploads it with a
// single 3D copy. The source argument selects the build mode: an empty
// string synthesizes the default sky color, a 0x-prefixed hex literal
// synthesizes that constant color and anything else is treated as a cube
// cross image path. A cross that fails to load or validate degrades to the
// default color instead of failing the scene.
func (up *uploader) uploadCubemap(source string, out *CubeArray) error {
	var (
		faceSize int32
		texels   []float32
	)

	switch {
	case source == "":
		faceSize, texels = unitCubemap(defaultCubemapColor)
	case isHexColor(source):
		color, _ := strconv.ParseUint(source[2:], 16, 32)
		faceSize, texels = unitCubemap(uint32(color))
	default:
		var err error
		if faceSize, texels, err = up.loadCubeCross(source); err != nil {
			up.logger.Warningf("could not load cubemap %q: %v; using default color", source, err)
			faceSize, texels = unitCubemap(defaultCubemapColor)
		}
	}

	rowPitch := int(faceSize) * cubemapComponents * 4
	ptr, err := up.malloc(len(texels) * 4)
	if err != nil {
		return errors.Wrap(err, "could not allocate cubemap")
	}
	err = up.alloc.Copy3D(ptr, texels, rowPitch, device.Extent{
		Width:  rowPitch,
		Height: int(faceSize),
		Depth:  cubemapFaces,
	})
	if err != nil {
		return errors.Wrap(err, "could not upload cubemap")
	}

	out.Desc = ChannelDesc{X: 32, Y: 32, Z: 32, W: 32, Kind: ChannelFloat}
	out.FaceSize = uint32(faceSize)
	out.Data = ptr
	return nil
}

// loadCubeCross decodes a 4x3 horizontal cross image and repacks its tiles
// into contiguous faces.
func (up *uploader) loadCubeCross(path string) (int32, []float32, error) {
	img, err := up.images.Load(path)
	if err != nil {
		return 0, nil, err
	}

	faceSize := img.Width / 4
	if img.Height/3 != faceSize {
		return 0, nil, errors.New("cubemap width and height are not the same")
	}
	if faceSize == 0 || faceSize&(faceSize-1) != 0 {
		return 0, nil, errors.New("cubemap size should be a power of 2")
	}

	faceTexels := int(faceSize) * int(faceSize) * cubemapComponents
	texels := make([]float32, cubemapFaces*faceTexels)
	for face, tile := range cubeCrossTiles {
		dst := texels[face*faceTexels:]
		originX := tile[0] * faceSize
		originY := tile[1] * faceSize
		for row := int32(0); row < faceSize; row++ {
			srcOff := ((originY+row)*img.Width + originX) * cubemapComponents
			copy(
				dst[int(row)*int(faceSize)*cubemapComponents:],
				img.Pix[srcOff:srcOff+faceSize*cubemapComponents],
			)
		}
	}

	return faceSize, texels, nil
}

// unitCubemap synthesizes six 1x1 faces of a constant 0xRRGGBB color.
func unitCubemap(color uint32) (int32, []float32) {
	r := float32((color>>16)&0xff) / 255.0
	g := float32((color>>8)&0xff) / 255.0
	b := float32(color&0xff) / 255.0

	texels := make([]float32, cubemapFaces*cubemapComponents)
	for face := 0; face < cubemapFaces; face++ {
		texels[face*cubemapComponents] = r
		texels[face*cubemapComponents+1] = g
		texels[face*cubemapComponents+2] = b
		texels[face*cubemapComponents+3] = 1.0
	}
	return 1, texels
}

// isHexColor reports whether the token is a 0x-prefixed hex color literal.
func isHexColor(token string) bool {
	if len(token) < 3 || !strings.HasPrefix(token, "0x") {
		return false
	}
	_, err := strconv.ParseUint(token[2:], 16, 32)
	return err == nil
}
