// Package wavefront implements the OBJ/MTL model loader feeding the scene
// upload path. It returns indexed triangle lists referencing shared
// vertex/normal/texcoord pools, leaving any flattening to the consumer.
package wavefront

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cpcdoy/cuda-pathtracer/types"
	"github.com/pkg/errors"
)

// Shared attribute pools referenced by shape indices. Vertices and normals
// are packed xyz triples, texcoords packed uv pairs.
type Attrib struct {
	Vertices  []float32
	Normals   []float32
	Texcoords []float32
}

// One corner of a triangle. Texcoord is -1 when the face carries no uv
// coordinates.
type Index struct {
	Vertex   int32
	Normal   int32
	Texcoord int32
}

// An indexed triangle list. Indices holds 3 entries per face; MaterialIDs
// holds one entry per face (-1 when no material is active).
type Shape struct {
	Name        string
	Indices     []Index
	MaterialIDs []int32
}

type objParser struct {
	attrib *Attrib
	shapes []Shape

	materials      []Material
	matNameToIndex map[string]int
	curMaterial    int32

	matDir string
}

// Load a wavefront object file. Material libraries referenced through
// "mtllib" are resolved against matDir.
func Load(objPath, matDir string) (*Attrib, []Shape, []Material, error) {
	f, err := os.Open(objPath)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "wavefront: could not open object file")
	}
	defer f.Close()

	p := &objParser{
		attrib:         &Attrib{},
		matNameToIndex: make(map[string]int),
		curMaterial:    -1,
		matDir:         matDir,
	}

	if err = p.parse(f, objPath); err != nil {
		return nil, nil, nil, err
	}

	return p.attrib, p.shapes, p.materials, nil
}

func (p *objParser) emitError(file string, line int, msgFormat string, args ...interface{}) error {
	return fmt.Errorf("[%s: %d] error: %s", file, line, fmt.Sprintf(msgFormat, args...))
}

func (p *objParser) parse(f *os.File, path string) error {
	var lineNum int

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNum++
		lineTokens := strings.Fields(scanner.Text())
		if len(lineTokens) == 0 || strings.HasPrefix(lineTokens[0], "#") {
			continue
		}

		switch lineTokens[0] {
		case "v":
			if err := p.appendCoords(lineTokens, &p.attrib.Vertices, 3); err != nil {
				return p.emitError(path, lineNum, err.Error())
			}
		case "vn":
			if err := p.appendCoords(lineTokens, &p.attrib.Normals, 3); err != nil {
				return p.emitError(path, lineNum, err.Error())
			}
		case "vt":
			if err := p.appendCoords(lineTokens, &p.attrib.Texcoords, 2); err != nil {
				return p.emitError(path, lineNum, err.Error())
			}
		case "o", "g":
			name := "default"
			if len(lineTokens) > 1 {
				name = lineTokens[1]
			}
			p.shapes = append(p.shapes, Shape{Name: name})
		case "usemtl":
			if len(lineTokens) != 2 {
				return p.emitError(path, lineNum, `unsupported syntax for "usemtl"; expected 1 argument; got %d`, len(lineTokens)-1)
			}
			matIndex, exists := p.matNameToIndex[lineTokens[1]]
			if !exists {
				return p.emitError(path, lineNum, "undefined material with name %q", lineTokens[1])
			}
			p.curMaterial = int32(matIndex)
		case "mtllib":
			if len(lineTokens) != 2 {
				return p.emitError(path, lineNum, `unsupported syntax for "mtllib"; expected 1 argument; got %d`, len(lineTokens)-1)
			}
			if err := p.parseMaterialLib(filepath.Join(p.matDir, lineTokens[1])); err != nil {
				return err
			}
		case "f":
			if err := p.parseFace(lineTokens); err != nil {
				return p.emitError(path, lineNum, err.Error())
			}
		}
	}

	return scanner.Err()
}

// Parse a coordinate row (v/vn/vt) and append it to the given pool.
func (p *objParser) appendCoords(lineTokens []string, pool *[]float32, want int) error {
	if len(lineTokens) < want+1 {
		return fmt.Errorf("unsupported syntax for %q; expected %d arguments; got %d", lineTokens[0], want, len(lineTokens)-1)
	}
	for tokIdx := 1; tokIdx <= want; tokIdx++ {
		coord, err := strconv.ParseFloat(lineTokens[tokIdx], 32)
		if err != nil {
			return err
		}
		*pool = append(*pool, float32(coord))
	}
	return nil
}

// Parse a face definition with 3 (triangle) or 4 (quad) corner arguments,
// each of the form v, v/t, v//n or v/t/n. Indices are 1-based; negative
// indices select from the end of the pool. Quads are split into two
// triangles. Corners without a normal index get a generated face normal.
func (p *objParser) parseFace(lineTokens []string) error {
	if len(lineTokens) < 4 || len(lineTokens) > 5 {
		return fmt.Errorf(`unsupported syntax for "f"; expected 3 or 4 arguments; got %d. Select the triangulation option in your exporter`, len(lineTokens)-1)
	}

	var corners [4]Index
	needNormal := false
	for arg := 0; arg < len(lineTokens)-1; arg++ {
		idx, err := p.parseCorner(lineTokens[arg+1])
		if err != nil {
			return fmt.Errorf("face argument %d: %s", arg, err.Error())
		}
		if idx.Normal < 0 {
			needNormal = true
		}
		corners[arg] = idx
	}

	// Generate a flat normal shared by every corner that lacks one.
	if needNormal {
		v0 := p.vertex(corners[0].Vertex)
		e01 := p.vertex(corners[1].Vertex).Sub(v0)
		e02 := p.vertex(corners[2].Vertex).Sub(v0)
		n := e01.Cross(e02).Normalize()

		genIndex := int32(len(p.attrib.Normals) / 3)
		p.attrib.Normals = append(p.attrib.Normals, n[0], n[1], n[2])
		for arg := 0; arg < len(lineTokens)-1; arg++ {
			if corners[arg].Normal < 0 {
				corners[arg].Normal = genIndex
			}
		}
	}

	if len(p.shapes) == 0 {
		p.shapes = append(p.shapes, Shape{Name: "default"})
	}
	shape := &p.shapes[len(p.shapes)-1]

	triangles := [][3]int{{0, 1, 2}}
	if len(lineTokens) == 5 {
		triangles = append(triangles, [3]int{0, 2, 3})
	}
	for _, tri := range triangles {
		shape.Indices = append(shape.Indices, corners[tri[0]], corners[tri[1]], corners[tri[2]])
		shape.MaterialIDs = append(shape.MaterialIDs, p.curMaterial)
	}

	return nil
}

// Parse one face corner argument into pool indices.
func (p *objParser) parseCorner(token string) (Index, error) {
	out := Index{Vertex: -1, Normal: -1, Texcoord: -1}

	vTokens := strings.Split(token, "/")
	if vTokens[0] == "" {
		return out, fmt.Errorf("missing vertex index")
	}

	var err error
	out.Vertex, err = resolveIndex(vTokens[0], len(p.attrib.Vertices)/3)
	if err != nil {
		return out, fmt.Errorf("could not parse vertex index: %s", err.Error())
	}

	if len(vTokens) > 1 && vTokens[1] != "" {
		out.Texcoord, err = resolveIndex(vTokens[1], len(p.attrib.Texcoords)/2)
		if err != nil {
			return out, fmt.Errorf("could not parse texcoord index: %s", err.Error())
		}
	}

	if len(vTokens) > 2 && vTokens[2] != "" {
		out.Normal, err = resolveIndex(vTokens[2], len(p.attrib.Normals)/3)
		if err != nil {
			return out, fmt.Errorf("could not parse normal index: %s", err.Error())
		}
	}

	return out, nil
}

func (p *objParser) vertex(index int32) types.Vec3 {
	return types.Vec3{
		p.attrib.Vertices[3*index],
		p.attrib.Vertices[3*index+1],
		p.attrib.Vertices[3*index+2],
	}
}

// Convert a 1-based (possibly negative) wavefront index into a 0-based pool
// offset.
func resolveIndex(indexToken string, poolLen int) (int32, error) {
	index, err := strconv.ParseInt(indexToken, 10, 32)
	if err != nil {
		return -1, err
	}

	var offset int
	if index < 0 {
		offset = poolLen + int(index)
	} else {
		offset = int(index - 1)
	}
	if offset < 0 || offset >= poolLen {
		return -1, fmt.Errorf("index out of bounds")
	}
	return int32(offset), nil
}
