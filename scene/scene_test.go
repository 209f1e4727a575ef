package scene

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/cpcdoy/cuda-pathtracer/device"
	"github.com/cpcdoy/cuda-pathtracer/types"
	"github.com/pkg/errors"
)

// Wraps a real allocator and fails Malloc after a fixed number of calls.
type flakyAllocator struct {
	device.Allocator
	failAfter int
	calls     int
}

func (f *flakyAllocator) Malloc(size int) (device.Ptr, error) {
	f.calls++
	if f.calls > f.failAfter {
		return 0, errors.New("simulated allocation failure")
	}
	return f.Allocator.Malloc(size)
}

func TestSceneUploadAndRelease(t *testing.T) {
	alloc := device.NewHostAllocator()
	s := New(writeTestScene(t), alloc, &fakeImageLoader{})

	var camera Camera
	s.Upload(&camera)
	if !s.Ready() {
		t.Fatalf("expected the scene to be ready; got error %q", s.Err())
	}
	if s.DevicePtr() == 0 {
		t.Fatal("expected a non-null scene device pointer")
	}
	if camera.Position != [3]float32{0, 1, 5} {
		t.Fatalf("expected the parsed camera to be written out; got %+v", camera)
	}

	// Walk the device mirror through the public pointer only.
	sd := make([]SceneData, 1)
	if err := alloc.CopyToHost(sd, s.DevicePtr()); err != nil {
		t.Fatalf("readback error: %v", err)
	}
	if sd[0].Meshes.Size != 1 || sd[0].Lights.Size != 2 {
		t.Fatalf("unexpected scene contents: %+v", sd[0])
	}
	if sd[0].Cubemap.FaceSize != 1 || sd[0].Cubemap.Data == 0 {
		t.Fatalf("unexpected cubemap: %+v", sd[0].Cubemap)
	}

	lights := make([]LightProp, sd[0].Lights.Size)
	if err := alloc.CopyToHost(lights, sd[0].Lights.Data); err != nil {
		t.Fatalf("readback error: %v", err)
	}
	wantLights := []LightProp{
		{Color: types.Vec3{1, 0.5, 0.25}, Position: types.Vec3{0, 5, 0}, Emission: 10, Radius: 0.1},
		{Color: types.Vec3{0.2, 0.4, 0.6}, Position: types.Vec3{-1, 2, 3}, Emission: 5, Radius: 0.5},
	}
	if !reflect.DeepEqual(lights, wantLights) {
		t.Fatalf("lights did not survive the device round trip:\ngot  %+v\nwant %+v", lights, wantLights)
	}

	s.Release()
	if s.Ready() || s.DevicePtr() != 0 {
		t.Fatal("expected the scene to return to the unloaded state")
	}
	if live := alloc.Live(); live != 0 {
		t.Fatalf("expected every device allocation to be freed; %d still live", live)
	}
}

func TestSceneUploadIdempotent(t *testing.T) {
	alloc := device.NewHostAllocator()
	s := New(writeTestScene(t), alloc, &fakeImageLoader{})

	s.Upload(nil)
	if !s.Ready() {
		t.Fatalf("expected the scene to be ready; got error %q", s.Err())
	}

	livePtr := s.DevicePtr()
	liveCount := alloc.Live()
	s.Upload(nil)
	if s.DevicePtr() != livePtr || alloc.Live() != liveCount {
		t.Fatal("expected the second upload to be a no-op")
	}
}

func TestSceneReleaseBeforeUpload(t *testing.T) {
	alloc := device.NewHostAllocator()
	s := New(writeTestScene(t), alloc, &fakeImageLoader{})

	// Must not panic or touch the allocator.
	s.Release()
	if alloc.Live() != 0 {
		t.Fatal("expected no allocator activity")
	}
}

func TestSceneUploadAfterRelease(t *testing.T) {
	alloc := device.NewHostAllocator()
	s := New(writeTestScene(t), alloc, &fakeImageLoader{})

	s.Upload(nil)
	s.Release()
	s.Upload(nil)
	if !s.Ready() {
		t.Fatalf("expected a released scene to accept a new upload; got error %q", s.Err())
	}

	s.Release()
	if live := alloc.Live(); live != 0 {
		t.Fatalf("expected every device allocation to be freed; %d still live", live)
	}
}

func TestSceneMissingFile(t *testing.T) {
	alloc := device.NewHostAllocator()
	s := New(filepath.Join(t.TempDir(), "missing.scene"), alloc, &fakeImageLoader{})

	s.Upload(nil)
	if s.Ready() || s.Err() == "" {
		t.Fatal("expected the scene to fail on a missing file")
	}

	// A failed scene never retries.
	s.Upload(nil)
	if s.Ready() || alloc.Live() != 0 {
		t.Fatal("expected the failed scene to stay failed")
	}

	// And releasing it is a no-op.
	s.Release()
}

func TestSceneMissingModel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.scene")
	if err := os.WriteFile(path, []byte("scene missing.obj\n"), 0644); err != nil {
		t.Fatal(err)
	}

	alloc := device.NewHostAllocator()
	s := New(path, alloc, &fakeImageLoader{})

	s.Upload(nil)
	if s.Ready() || s.Err() == "" {
		t.Fatal("expected the scene to fail on a missing model")
	}
	if alloc.Live() != 0 {
		t.Fatalf("expected no leaked allocations; %d still live", alloc.Live())
	}
}

func TestSceneUploadRollback(t *testing.T) {
	host := device.NewHostAllocator()

	// Let a few allocations through, then fail. The earlier allocations
	// must be unwound before the scene reports the failure.
	for failAfter := 1; failAfter <= 4; failAfter++ {
		alloc := &flakyAllocator{Allocator: host, failAfter: failAfter}
		s := New(writeTestScene(t), alloc, &fakeImageLoader{})

		s.Upload(nil)
		if s.Ready() || s.Err() == "" {
			t.Fatalf("failAfter %d: expected the upload to fail", failAfter)
		}
		if live := host.Live(); live != 0 {
			t.Fatalf("failAfter %d: %d allocations leaked", failAfter, live)
		}
	}
}

// Writes a minimal scene: one triangle model, two lights, a synthesized
// cubemap and a full camera directive.
func writeTestScene(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	model := `
v 0 0 0
v 1 0 0
v 0 1 0
vn 0 0 1
vt 0 0
vt 1 0
vt 0 1
f 1/1/1 2/2/1 3/3/1
`
	if err := os.WriteFile(filepath.Join(dir, "model.obj"), []byte(model), 0644); err != nil {
		t.Fatal(err)
	}

	descr := `
camera 0 1 5 0 0 -1 45
p_light 0 5 0 1 0.5 0.25 10 0.1
p_light -1 2 3 0.2 0.4 0.6 5 0.5
scene model.obj
cubemap 0x05070A
`
	path := filepath.Join(dir, "test.scene")
	if err := os.WriteFile(path, []byte(descr), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}
