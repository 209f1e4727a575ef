package scene

import (
	"path/filepath"

	"github.com/cpcdoy/cuda-pathtracer/asset/texture"
	"github.com/cpcdoy/cuda-pathtracer/asset/wavefront"
	"github.com/cpcdoy/cuda-pathtracer/device"
	"github.com/cpcdoy/cuda-pathtracer/log"
	"github.com/pkg/errors"
)

// Scene ties a .scene description to its device mirror. A scene starts
// unloaded; Upload moves it to ready or failed and Release returns a ready
// scene to unloaded. Upload never retries after a failure and Release on
// anything but a ready scene is a no-op.
type Scene struct {
	logger log.Logger

	path   string
	alloc  device.Allocator
	images texture.Loader

	ready   bool
	failed  bool
	loadErr string

	// Host mirror of the device aggregate; only valid while ready.
	sceneData *SceneData
	devPtr    device.Ptr

	initCamera Camera

	faceCount    int
	textureBytes int
}

// New creates an unloaded scene backed by the given allocator. Nothing is
// parsed or allocated until Upload is called.
func New(scenePath string, alloc device.Allocator, images texture.Loader) *Scene {
	return &Scene{
		logger: log.New("scene"),
		path:   scenePath,
		alloc:  alloc,
		images: images,
	}
}

// Name returns the scene file path.
func (s *Scene) Name() string {
	return s.path
}

// Ready reports whether the scene is resident on the device.
func (s *Scene) Ready() bool {
	return s.ready
}

// Err returns the failure reason for a failed scene, or "".
func (s *Scene) Err() string {
	return s.loadErr
}

// DevicePtr returns the device address of the scene aggregate, or null when
// the scene is not ready.
func (s *Scene) DevicePtr() device.Ptr {
	return s.devPtr
}

// Upload parses the scene description, loads the referenced assets and
// mirrors everything into device memory. When the description contains a
// camera directive the parsed camera is written to the camera argument. A
// second call on a ready or failed scene does nothing.
func (s *Scene) Upload(camera *Camera) {
	if s.ready || s.failed {
		return
	}

	s.logger.Noticef("uploading scene %s", s.path)

	parsed, err := parseSceneFile(s.path, s.logger)
	if err != nil {
		s.fail(err)
		return
	}
	s.initCamera = parsed.camera
	if camera != nil {
		*camera = s.initCamera
	}

	if parsed.model == "" {
		s.fail(errors.New("scene description does not name a model"))
		return
	}

	baseDir := filepath.Dir(s.path)
	modelPath := filepath.Join(baseDir, parsed.model)
	attrib, shapes, materials, err := wavefront.Load(modelPath, filepath.Dir(modelPath))
	if err != nil {
		s.fail(errors.Wrap(err, "could not load scene model"))
		return
	}

	cubemap := parsed.cubemap
	if cubemap != "" && !isHexColor(cubemap) {
		cubemap = filepath.Join(baseDir, cubemap)
	}

	if err = s.uploadAll(parsed, attrib, shapes, materials, filepath.Dir(modelPath), cubemap); err != nil {
		s.fail(err)
		return
	}
	s.ready = true
}

// uploadAll runs the upload pipeline. On error all allocations made so far
// are unwound before returning.
func (s *Scene) uploadAll(parsed *sceneFile, attrib *wavefront.Attrib, shapes []wavefront.Shape, materials []wavefront.Material, texDir, cubemap string) error {
	up := &uploader{
		alloc:  s.alloc,
		images: s.images,
		logger: s.logger,
	}
	sd := &SceneData{}

	err := up.uploadMaterials(materials, texDir, sd)
	if err == nil {
		err = up.uploadMeshes(attrib, shapes, &sd.Meshes)
	}
	if err == nil {
		err = up.uploadLights(parsed.lights, &sd.Lights)
	}
	if err == nil {
		err = up.uploadCubemap(cubemap, &sd.Cubemap)
	}

	var devPtr device.Ptr
	if err == nil {
		devPtr, err = up.mallocAndCopy(sizeofSceneData, []SceneData{*sd})
	}

	if err != nil {
		up.rollback()
		return err
	}

	s.sceneData = sd
	s.devPtr = devPtr
	s.faceCount = up.faceCount
	s.textureBytes = up.textureBytes
	return nil
}

// Release frees every device allocation owned by the scene and returns it
// to the unloaded state. Nested allocations are discovered by reading the
// owning descriptor arrays back from the device and freed deepest first.
// Free and readback errors are logged and the walk continues so that one
// bad block never pins the rest of the scene.
func (s *Scene) Release() {
	if !s.ready {
		return
	}

	s.logger.Noticef("releasing scene %s", s.path)
	sd := s.sceneData

	if sd.Textures.Size > 0 {
		textures := make([]Texture, sd.Textures.Size)
		if err := s.alloc.CopyToHost(textures, sd.Textures.Data); err != nil {
			s.logger.Errorf("could not read back texture list: %v", err)
		} else {
			for _, tex := range textures {
				s.free(tex.Data)
			}
		}
		s.free(sd.Textures.Data)
	}

	if sd.Meshes.Size > 0 {
		meshes := make([]Mesh, sd.Meshes.Size)
		if err := s.alloc.CopyToHost(meshes, sd.Meshes.Data); err != nil {
			s.logger.Errorf("could not read back mesh list: %v", err)
		} else {
			for _, mesh := range meshes {
				s.free(mesh.Faces.Data)
			}
		}
		s.free(sd.Meshes.Data)
	}

	s.free(sd.Materials.Data)
	s.free(sd.Lights.Data)
	s.free(sd.Cubemap.Data)
	s.free(s.devPtr)

	s.sceneData = nil
	s.devPtr = 0
	s.faceCount = 0
	s.textureBytes = 0
	s.ready = false
}

func (s *Scene) free(ptr device.Ptr) {
	if ptr == 0 {
		return
	}
	if err := s.alloc.Free(ptr); err != nil {
		s.logger.Errorf("could not free device block %#x: %v", uint64(ptr), err)
	}
}

func (s *Scene) fail(err error) {
	s.failed = true
	s.loadErr = err.Error()
	s.logger.Errorf("scene %s failed to load: %v", s.path, err)
}
