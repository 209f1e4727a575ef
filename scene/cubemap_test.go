package scene

import (
	"fmt"
	"math"
	"testing"

	"github.com/cpcdoy/cuda-pathtracer/asset/texture"
	"github.com/cpcdoy/cuda-pathtracer/device"
	"github.com/cpcdoy/cuda-pathtracer/log"
)

// An in-memory image source for exercising the upload pipeline without
// touching the filesystem.
type fakeImageLoader struct {
	images map[string]*texture.Image
}

func (l *fakeImageLoader) Load(path string) (*texture.Image, error) {
	img, exists := l.images[path]
	if !exists {
		return nil, fmt.Errorf("no image registered for %q", path)
	}
	return img, nil
}

func TestIsHexColor(t *testing.T) {
	specs := []struct {
		token string
		exp   bool
	}{
		{"0xff8040", true},
		{"0x05070A", true},
		{"0x", false},
		{"0xnotacolor", false},
		{"sky.png", false},
		{"", false},
	}

	for _, spec := range specs {
		if got := isHexColor(spec.token); got != spec.exp {
			t.Errorf("isHexColor(%q): expected %t; got %t", spec.token, spec.exp, got)
		}
	}
}

func TestUploadCubemapHexColor(t *testing.T) {
	alloc := device.NewHostAllocator()
	up := &uploader{alloc: alloc, logger: log.New("test")}

	var out CubeArray
	if err := up.uploadCubemap("0xff8040", &out); err != nil {
		t.Fatalf("upload error: %v", err)
	}

	if out.FaceSize != 1 || out.Data == 0 {
		t.Fatalf("unexpected cube array: %+v", out)
	}
	if out.Desc.X != 32 || out.Desc.Kind != ChannelFloat {
		t.Fatalf("unexpected channel descriptor: %+v", out.Desc)
	}

	texels := make([]float32, cubemapFaces*cubemapComponents)
	if err := alloc.CopyToHost(texels, out.Data); err != nil {
		t.Fatalf("readback error: %v", err)
	}
	for face := 0; face < cubemapFaces; face++ {
		r := texels[face*cubemapComponents]
		g := texels[face*cubemapComponents+1]
		b := texels[face*cubemapComponents+2]
		if !floatEq(r, 0xff/255.0) || !floatEq(g, 0x80/255.0) || !floatEq(b, 0x40/255.0) {
			t.Fatalf("face %d: unexpected color (%f, %f, %f)", face, r, g, b)
		}
	}
}

func TestUploadCubemapCross(t *testing.T) {
	const faceSize = 2

	// Each tile of the 4x3 cross is filled with its tile index so the
	// repacked face order can be verified.
	img := &texture.Image{Width: 4 * faceSize, Height: 3 * faceSize, NbChan: 4}
	img.Pix = make([]float32, img.Width*img.Height*4)
	for y := int32(0); y < img.Height; y++ {
		for x := int32(0); x < img.Width; x++ {
			tile := float32((y/faceSize)*4 + x/faceSize)
			for c := int32(0); c < 4; c++ {
				img.Pix[(y*img.Width+x)*4+c] = tile
			}
		}
	}

	alloc := device.NewHostAllocator()
	up := &uploader{
		alloc:  alloc,
		images: &fakeImageLoader{images: map[string]*texture.Image{"sky.exr": img}},
		logger: log.New("test"),
	}

	var out CubeArray
	if err := up.uploadCubemap("sky.exr", &out); err != nil {
		t.Fatalf("upload error: %v", err)
	}
	if out.FaceSize != faceSize {
		t.Fatalf("expected face size %d; got %d", faceSize, out.FaceSize)
	}

	faceTexels := faceSize * faceSize * cubemapComponents
	texels := make([]float32, cubemapFaces*faceTexels)
	if err := alloc.CopyToHost(texels, out.Data); err != nil {
		t.Fatalf("readback error: %v", err)
	}

	// Expected tile index per face in +X, -X, +Y, -Y, +Z, -Z order.
	expTiles := []float32{6, 4, 1, 9, 5, 7}
	for face, exp := range expTiles {
		for i := 0; i < faceTexels; i++ {
			if got := texels[face*faceTexels+i]; got != exp {
				t.Fatalf("face %d texel %d: expected tile %f; got %f", face, i, exp, got)
			}
		}
	}
}

func TestUploadCubemapInvalidCrossFallsBack(t *testing.T) {
	specs := []struct {
		name string
		img  *texture.Image
	}{
		{"wrong aspect", fillImage(8, 12)},
		{"not power of two", fillImage(12, 9)},
	}

	for _, spec := range specs {
		alloc := device.NewHostAllocator()
		up := &uploader{
			alloc:  alloc,
			images: &fakeImageLoader{images: map[string]*texture.Image{"sky.exr": spec.img}},
			logger: log.New("test"),
		}

		var out CubeArray
		if err := up.uploadCubemap("sky.exr", &out); err != nil {
			t.Fatalf("%s: expected fallback instead of error; got %v", spec.name, err)
		}
		if out.FaceSize != 1 {
			t.Fatalf("%s: expected 1x1 fallback faces; got %d", spec.name, out.FaceSize)
		}

		texels := make([]float32, cubemapFaces*cubemapComponents)
		if err := alloc.CopyToHost(texels, out.Data); err != nil {
			t.Fatalf("%s: readback error: %v", spec.name, err)
		}
		if !floatEq(texels[2], 0x0A/255.0) {
			t.Fatalf("%s: expected default color blue channel; got %f", spec.name, texels[2])
		}
	}
}

func TestUploadCubemapMissingFileFallsBack(t *testing.T) {
	alloc := device.NewHostAllocator()
	up := &uploader{
		alloc:  alloc,
		images: &fakeImageLoader{},
		logger: log.New("test"),
	}

	var out CubeArray
	if err := up.uploadCubemap("missing.exr", &out); err != nil {
		t.Fatalf("expected fallback instead of error; got %v", err)
	}
	if out.FaceSize != 1 || out.Data == 0 {
		t.Fatalf("unexpected cube array: %+v", out)
	}
}

func TestUploadCubemapDefault(t *testing.T) {
	alloc := device.NewHostAllocator()
	up := &uploader{alloc: alloc, logger: log.New("test")}

	// An empty source synthesizes the default sky color.
	var out CubeArray
	if err := up.uploadCubemap("", &out); err != nil {
		t.Fatalf("upload error: %v", err)
	}
	if out.FaceSize != 1 {
		t.Fatalf("expected 1x1 default faces; got %d", out.FaceSize)
	}

	texels := make([]float32, cubemapFaces*cubemapComponents)
	if err := alloc.CopyToHost(texels, out.Data); err != nil {
		t.Fatalf("readback error: %v", err)
	}
	if !floatEq(texels[0], 0x05/255.0) || !floatEq(texels[1], 0x07/255.0) || !floatEq(texels[2], 0x0A/255.0) {
		t.Fatalf("unexpected default color: %v", texels[:4])
	}
}

func fillImage(w, h int32) *texture.Image {
	return &texture.Image{Width: w, Height: h, NbChan: 4, Pix: make([]float32, w*h*4)}
}

func floatEq(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-6
}
