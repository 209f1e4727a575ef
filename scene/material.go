package scene

import (
	"path/filepath"

	"github.com/cpcdoy/cuda-pathtracer/asset/wavefront"
	"github.com/pkg/errors"
)

// uploadMaterials loads every texture referenced by the material set, uploads
// the texel buffers plus the texture descriptor array and finally the
// material array pointing into it. Textures referenced by more than one
// material are loaded and uploaded once.
func (up *uploader) uploadMaterials(materials []wavefront.Material, texDir string, sd *SceneData) error {
	var (
		textures []Texture
		gpuMats  = make([]Material, len(materials))

		// Path to texture index; de-duplicates shared maps.
		texCache = make(map[string]int32)
	)

	loadTex := func(path string) (int32, error) {
		if path == "" {
			return -1, nil
		}
		if idx, exists := texCache[path]; exists {
			return idx, nil
		}

		// An unreadable texture degrades the material, not the scene.
		img, err := up.images.Load(filepath.Join(texDir, path))
		if err != nil {
			up.logger.Warningf("could not load texture %q: %v", path, err)
			texCache[path] = -1
			return -1, nil
		}

		texBytes := len(img.Pix) * 4
		ptr, err := up.mallocAndCopy(texBytes, img.Pix)
		if err != nil {
			return -1, errors.Wrapf(err, "could not upload texture %q", path)
		}
		up.textureBytes += texBytes

		idx := int32(len(textures))
		textures = append(textures, Texture{
			W:      img.Width,
			H:      img.Height,
			NbChan: img.NbChan,
			Data:   ptr,
		})
		texCache[path] = idx
		return idx, nil
	}

	var err error
	for i, mat := range materials {
		// The combined map carries diffuse rgb and specularity in alpha; a
		// specular-only material still binds its map through the same slot.
		diffuseSpec := mat.DiffuseTex
		if diffuseSpec == "" {
			diffuseSpec = mat.SpecularTex
		}
		if gpuMats[i].DiffuseSpecMap, err = loadTex(diffuseSpec); err != nil {
			return err
		}

		normalMap := mat.NormalTex
		if normalMap == "" {
			normalMap = mat.BumpTex
		}
		if gpuMats[i].NormalMap, err = loadTex(normalMap); err != nil {
			return err
		}
	}

	if len(textures) > 0 {
		ptr, err := up.mallocAndCopy(len(textures)*sizeofTexture, textures)
		if err != nil {
			return errors.Wrap(err, "could not upload texture list")
		}
		sd.Textures = Buffer[Texture]{Size: uint64(len(textures)), Data: ptr}
	}

	if len(gpuMats) > 0 {
		ptr, err := up.mallocAndCopy(len(gpuMats)*sizeofMaterial, gpuMats)
		if err != nil {
			return errors.Wrap(err, "could not upload material list")
		}
		sd.Materials = Buffer[Material]{Size: uint64(len(gpuMats)), Data: ptr}
	}

	return nil
}
