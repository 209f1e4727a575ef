package scene

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/cpcdoy/cuda-pathtracer/log"
)

func TestParseSceneFile(t *testing.T) {
	path := writeSceneFile(t, `
# a test scene
camera 0 1 5 0 0 -2 45 3.5 0.25
p_light 0 5 0 1 0.5 0.25 10 0.1
p_light -1 2 3 0.2 0.4 0.6 5 0.5
scene model.obj
cubemap sky.png
`)

	parsed, err := parseSceneFile(path, log.New("test"))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	if parsed.model != "model.obj" {
		t.Fatalf("expected model 'model.obj'; got %q", parsed.model)
	}
	if parsed.cubemap != "sky.png" {
		t.Fatalf("expected cubemap 'sky.png'; got %q", parsed.cubemap)
	}
	if len(parsed.lights) != 2 {
		t.Fatalf("expected 2 lights; got %d", len(parsed.lights))
	}

	light := parsed.lights[0]
	if light.Position[1] != 5 || light.Color[0] != 1 || light.Emission != 10 || light.Radius != 0.1 {
		t.Fatalf("unexpected light values: %+v", light)
	}

	cam := parsed.camera
	if cam.Position[2] != 5 {
		t.Fatalf("expected camera z position 5; got %f", cam.Position[2])
	}
	if math.Abs(float64(cam.Dir[2]+1)) > 1e-6 {
		t.Fatalf("expected normalized camera direction (0, 0, -1); got %v", cam.Dir)
	}
	expFov := float32(45 * math.Pi / 180)
	if math.Abs(float64(cam.FovX-expFov)) > 1e-6 {
		t.Fatalf("expected fov %f; got %f", expFov, cam.FovX)
	}
	if cam.FocusDist != 3.5 || cam.Aperture != 0.25 {
		t.Fatalf("expected focus 3.5 and aperture 0.25; got %f and %f", cam.FocusDist, cam.Aperture)
	}
}

func TestParseSceneFileDefaults(t *testing.T) {
	path := writeSceneFile(t, "scene model.obj\n")

	parsed, err := parseSceneFile(path, log.New("test"))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	cam := parsed.camera
	if cam.Dir != [3]float32{0, 0, -1} {
		t.Fatalf("expected default direction (0, 0, -1); got %v", cam.Dir)
	}
	if cam.U != [3]float32{1, 0, 0} || cam.V != [3]float32{0, -1, 0} {
		t.Fatalf("unexpected default basis: u %v, v %v", cam.U, cam.V)
	}
	if math.Abs(float64(cam.FovX-math.Pi/2)) > 1e-6 {
		t.Fatalf("expected default fov pi/2; got %f", cam.FovX)
	}
	if cam.FocusDist != 2.0 || cam.Aperture != 0.125 {
		t.Fatalf("unexpected default focus %f or aperture %f", cam.FocusDist, cam.Aperture)
	}
	if parsed.cubemap != "" || len(parsed.lights) != 0 {
		t.Fatal("expected no cubemap or lights")
	}
}

func TestParseSceneFileSkipsMalformedDirectives(t *testing.T) {
	path := writeSceneFile(t, `
p_light 0 5 0
p_light 0 5 0 1 bogus 0.25 10 0.1
camera 0 0 0 0 0 -1
camera not a number at all 1 2 3
p_light 0 5 0 1 0.5 0.25 10 0.1
scene model.obj
`)

	parsed, err := parseSceneFile(path, log.New("test"))
	if err != nil {
		t.Fatalf("expected malformed directives to be non-fatal; got %v", err)
	}

	if len(parsed.lights) != 1 {
		t.Fatalf("expected the single well-formed light; got %d", len(parsed.lights))
	}
	if parsed.model != "model.obj" {
		t.Fatalf("expected model 'model.obj'; got %q", parsed.model)
	}
	// Both camera directives were malformed so the defaults survive.
	if parsed.camera.FocusDist != 2.0 {
		t.Fatalf("expected camera defaults to survive; got focus %f", parsed.camera.FocusDist)
	}
}

func TestParseSceneFileMissing(t *testing.T) {
	_, err := parseSceneFile(filepath.Join(t.TempDir(), "missing.scene"), log.New("test"))
	if err == nil {
		t.Fatal("expected an error for a missing scene file")
	}
}

func writeSceneFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.scene")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}
