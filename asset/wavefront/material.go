package wavefront

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// A parsed MTL material. Texture fields hold the paths exactly as written in
// the library file; resolving and decoding them is the material loader's job.
type Material struct {
	Name string

	// Diffuse/albedo color.
	Kd [3]float32

	// Texture maps modulating the material parameters.
	DiffuseTex  string
	SpecularTex string
	BumpTex     string
	NormalTex   string
}

// Parse a wavefront material library and register its materials.
func (p *objParser) parseMaterialLib(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "wavefront: could not open material library")
	}
	defer f.Close()

	var lineNum int
	var curMaterial *Material

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNum++
		lineTokens := strings.Fields(scanner.Text())
		if len(lineTokens) == 0 || strings.HasPrefix(lineTokens[0], "#") {
			continue
		}

		if lineTokens[0] == "newmtl" {
			if len(lineTokens) != 2 {
				return p.emitError(path, lineNum, `unsupported syntax for "newmtl"; expected 1 argument; got %d`, len(lineTokens)-1)
			}

			matName := lineTokens[1]
			if _, exists := p.matNameToIndex[matName]; exists {
				return p.emitError(path, lineNum, "material %q already defined", matName)
			}

			p.materials = append(p.materials, Material{Name: matName})
			curMaterial = &p.materials[len(p.materials)-1]
			p.matNameToIndex[matName] = len(p.materials) - 1
			continue
		}

		if curMaterial == nil {
			return p.emitError(path, lineNum, `got %q without a "newmtl"`, lineTokens[0])
		}

		switch lineTokens[0] {
		case "Kd":
			if len(lineTokens) < 4 {
				return p.emitError(path, lineNum, `unsupported syntax for "Kd"; expected 3 arguments; got %d`, len(lineTokens)-1)
			}
			for tokIdx := 1; tokIdx <= 3; tokIdx++ {
				coord, err := strconv.ParseFloat(lineTokens[tokIdx], 32)
				if err != nil {
					return p.emitError(path, lineNum, err.Error())
				}
				curMaterial.Kd[tokIdx-1] = float32(coord)
			}
		case "map_Kd", "map_Ks", "map_bump", "bump", "map_normal":
			if len(lineTokens) < 2 {
				return p.emitError(path, lineNum, "unsupported syntax for %q; expected 1 argument; got %d", lineTokens[0], len(lineTokens)-1)
			}

			var target *string
			switch lineTokens[0] {
			case "map_Kd":
				target = &curMaterial.DiffuseTex
			case "map_Ks":
				target = &curMaterial.SpecularTex
			case "map_bump", "bump":
				target = &curMaterial.BumpTex
			case "map_normal":
				target = &curMaterial.NormalTex
			}
			*target = lineTokens[1]
		}
	}

	if err = scanner.Err(); err != nil {
		return fmt.Errorf("wavefront: error reading %s: %s", path, err.Error())
	}
	return nil
}
