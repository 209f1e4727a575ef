package scene

import (
	"testing"

	"github.com/cpcdoy/cuda-pathtracer/asset/texture"
	"github.com/cpcdoy/cuda-pathtracer/asset/wavefront"
	"github.com/cpcdoy/cuda-pathtracer/device"
	"github.com/cpcdoy/cuda-pathtracer/log"
)

func TestUploadMaterials(t *testing.T) {
	shared := &texture.Image{Width: 2, Height: 2, NbChan: 4, Pix: make([]float32, 16)}
	normal := &texture.Image{Width: 1, Height: 1, NbChan: 4, Pix: make([]float32, 4)}

	alloc := device.NewHostAllocator()
	up := &uploader{
		alloc: alloc,
		images: &fakeImageLoader{images: map[string]*texture.Image{
			"assets/shared.png": shared,
			"assets/normal.png": normal,
		}},
		logger: log.New("test"),
	}

	materials := []wavefront.Material{
		{Name: "a", DiffuseTex: "shared.png", NormalTex: "normal.png"},
		{Name: "b", DiffuseTex: "shared.png", BumpTex: "missing.png"},
		{Name: "c"},
		{Name: "d", SpecularTex: "shared.png"},
	}

	var sd SceneData
	if err := up.uploadMaterials(materials, "assets", &sd); err != nil {
		t.Fatalf("upload error: %v", err)
	}

	// shared.png must be uploaded once despite being referenced twice.
	if sd.Textures.Size != 2 {
		t.Fatalf("expected 2 unique textures; got %d", sd.Textures.Size)
	}
	if sd.Materials.Size != 4 {
		t.Fatalf("expected 4 materials; got %d", sd.Materials.Size)
	}

	mats := make([]Material, sd.Materials.Size)
	if err := alloc.CopyToHost(mats, sd.Materials.Data); err != nil {
		t.Fatalf("readback error: %v", err)
	}
	if mats[0].DiffuseSpecMap != mats[1].DiffuseSpecMap {
		t.Fatalf("expected both materials to share a texture index; got %d and %d",
			mats[0].DiffuseSpecMap, mats[1].DiffuseSpecMap)
	}
	if mats[0].NormalMap == -1 {
		t.Fatal("expected the first material to carry a normal map")
	}
	// The unreadable bump map degrades to -1 without failing the upload.
	if mats[1].NormalMap != -1 {
		t.Fatalf("expected -1 for the missing bump map; got %d", mats[1].NormalMap)
	}
	if mats[2].DiffuseSpecMap != -1 || mats[2].NormalMap != -1 {
		t.Fatalf("expected -1 maps for the untextured material; got %+v", mats[2])
	}
	// A specular map without a diffuse one still lands in the combined slot.
	if mats[3].DiffuseSpecMap != mats[0].DiffuseSpecMap {
		t.Fatalf("expected the specular-only material to bind the shared map; got %d", mats[3].DiffuseSpecMap)
	}

	texs := make([]Texture, sd.Textures.Size)
	if err := alloc.CopyToHost(texs, sd.Textures.Data); err != nil {
		t.Fatalf("readback error: %v", err)
	}
	if texs[0].W != 2 || texs[0].NbChan != 4 || texs[0].Data == 0 {
		t.Fatalf("unexpected texture descriptor: %+v", texs[0])
	}
}

func TestUploadMaterialsEmpty(t *testing.T) {
	alloc := device.NewHostAllocator()
	up := &uploader{alloc: alloc, logger: log.New("test")}

	var sd SceneData
	if err := up.uploadMaterials(nil, "", &sd); err != nil {
		t.Fatalf("upload error: %v", err)
	}
	if sd.Materials.Size != 0 || sd.Materials.Data != 0 || alloc.Live() != 0 {
		t.Fatalf("expected no allocations for an empty material set; got %+v", sd.Materials)
	}
}
