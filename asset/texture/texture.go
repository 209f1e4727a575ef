package texture

import (
	"fmt"

	"github.com/achilleasa/openimageigo"
	"github.com/pkg/errors"
)

// A decoded image. Pixel data is always expanded to 4 float32 channels per
// texel (RGBA, alpha defaulting to 1) as this keeps device-side addressing
// uniform across every texture the kernel samples.
type Image struct {
	Width  int32
	Height int32

	// Channels per texel after decoding; always 4.
	NbChan int32

	Pix []float32
}

// Loader loads and decodes images by path. The production implementation
// reads from disk; tests substitute synthetic images.
type Loader interface {
	Load(path string) (*Image, error)
}

// FileLoader decodes image files through OpenImageIO.
type FileLoader struct{}

func (FileLoader) Load(path string) (*Image, error) {
	return Load(path)
}

// Load an image file and decode it to float32 RGBA.
func Load(path string) (*Image, error) {
	input, err := oiio.OpenImageInput(path)
	if err != nil {
		return nil, errors.Wrapf(err, "texture: could not open %s", path)
	}
	defer input.Close()

	spec := input.Spec()

	if spec.NumChannels() != 1 && spec.NumChannels() != 3 && spec.NumChannels() != 4 {
		return nil, fmt.Errorf("texture: unsupported channel count %d while loading %s", spec.NumChannels(), path)
	}
	if spec.Depth() != 1 {
		return nil, fmt.Errorf("texture: unsupported depth %d while loading %s", spec.Depth(), path)
	}

	imgData, err := input.ReadImageFormat(oiio.TypeFloat, nil)
	if err != nil {
		return nil, fmt.Errorf("texture: could not read data from %s: %s", path, err.Error())
	}

	pix, ok := imgData.([]float32)
	if !ok {
		return nil, fmt.Errorf("texture: unexpected pixel data type while loading %s", path)
	}

	img := &Image{
		Width:  int32(spec.Width()),
		Height: int32(spec.Height()),
		NbChan: 4,
	}
	img.Pix = expandToRGBA(pix, spec.NumChannels())

	return img, nil
}

// Expand 1 or 3 channel pixel data to 4 channels. 4 channel input is
// returned as-is.
func expandToRGBA(pix []float32, nbChan int) []float32 {
	if nbChan == 4 {
		return pix
	}

	texels := len(pix) / nbChan
	out := make([]float32, texels*4)
	for t := 0; t < texels; t++ {
		switch nbChan {
		case 1:
			l := pix[t]
			out[t*4], out[t*4+1], out[t*4+2] = l, l, l
		case 3:
			out[t*4] = pix[t*3]
			out[t*4+1] = pix[t*3+1]
			out[t*4+2] = pix[t*3+2]
		}
		out[t*4+3] = 1.0
	}
	return out
}
