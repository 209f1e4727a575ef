package scene

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/cpcdoy/cuda-pathtracer/log"
	"github.com/cpcdoy/cuda-pathtracer/types"
	"github.com/pkg/errors"
)

// The parsed scene description prior to any device interaction.
type sceneFile struct {
	camera  Camera
	lights  []LightProp
	model   string
	cubemap string
}

// parseSceneFile reads a .scene text description. A missing or unreadable
// file is fatal; individual malformed directives are logged and skipped so
// a single bad line never discards the rest of the scene.
func parseSceneFile(path string, logger log.Logger) (*sceneFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not open scene file")
	}
	defer f.Close()

	parsed := &sceneFile{
		camera: DefaultCamera(),
	}

	var lineNum int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		tokens := strings.Fields(line)
		var lineErr error
		switch tokens[0] {
		case "p_light":
			lineErr = parsed.parseLight(tokens)
		case "camera":
			lineErr = parsed.parseCamera(tokens)
		case "scene":
			if len(tokens) != 2 {
				lineErr = errors.New("scene directive requires a single file argument")
				break
			}
			parsed.model = tokens[1]
		case "cubemap":
			if len(tokens) != 2 {
				lineErr = errors.New("cubemap directive requires a single argument")
				break
			}
			parsed.cubemap = tokens[1]
		}

		if lineErr != nil {
			logger.Warningf("%s: line %d: %v; skipping directive", path, lineNum, lineErr)
		}
	}
	if err = scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "could not read scene file")
	}

	return parsed, nil
}

// p_light x y z r g b emission radius
func (p *sceneFile) parseLight(tokens []string) error {
	if len(tokens) != 9 {
		return errors.Errorf("p_light requires 8 arguments; got %d", len(tokens)-1)
	}

	pos, err := parseVec3(tokens[1:4])
	if err != nil {
		return errors.Wrap(err, "invalid light position")
	}
	color, err := parseVec3(tokens[4:7])
	if err != nil {
		return errors.Wrap(err, "invalid light color")
	}
	emission, err := parseFloat32(tokens[7])
	if err != nil {
		return errors.Wrap(err, "invalid light emission")
	}
	radius, err := parseFloat32(tokens[8])
	if err != nil {
		return errors.Wrap(err, "invalid light radius")
	}

	p.lights = append(p.lights, LightProp{
		Color:    color,
		Position: pos,
		Emission: emission,
		Radius:   radius,
	})
	return nil
}

// camera px py pz dx dy dz fov [focus_dist] [aperture]
func (p *sceneFile) parseCamera(tokens []string) error {
	if len(tokens) < 8 || len(tokens) > 10 {
		return errors.Errorf("camera requires 7 to 9 arguments; got %d", len(tokens)-1)
	}

	pos, err := parseVec3(tokens[1:4])
	if err != nil {
		return errors.Wrap(err, "invalid camera position")
	}
	dir, err := parseVec3(tokens[4:7])
	if err != nil {
		return errors.Wrap(err, "invalid camera direction")
	}
	fovDeg, err := parseFloat32(tokens[7])
	if err != nil {
		return errors.Wrap(err, "invalid camera fov")
	}

	focusDist, aperture := p.camera.FocusDist, p.camera.Aperture
	if len(tokens) >= 9 {
		if focusDist, err = parseFloat32(tokens[8]); err != nil {
			return errors.Wrap(err, "invalid camera focus distance")
		}
	}
	if len(tokens) == 10 {
		if aperture, err = parseFloat32(tokens[9]); err != nil {
			return errors.Wrap(err, "invalid camera aperture")
		}
	}

	p.camera.FocusDist = focusDist
	p.camera.Aperture = aperture
	p.camera.Position = pos
	p.camera.Dir = dir.Normalize()
	p.camera.FovX = types.DegToRad(fovDeg)
	return nil
}

func parseVec3(tokens []string) (types.Vec3, error) {
	var out [3]float32
	for i := 0; i < 3; i++ {
		val, err := parseFloat32(tokens[i])
		if err != nil {
			return types.Vec3{}, err
		}
		out[i] = val
	}
	return types.XYZ(out[0], out[1], out[2]), nil
}

func parseFloat32(token string) (float32, error) {
	val, err := strconv.ParseFloat(token, 32)
	if err != nil {
		return 0, errors.Errorf("%q is not a valid number", token)
	}
	return float32(val), nil
}
