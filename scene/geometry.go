package scene

import (
	"github.com/cpcdoy/cuda-pathtracer/asset/wavefront"
	"github.com/cpcdoy/cuda-pathtracer/types"
	"github.com/pkg/errors"
)

// uploadMeshes flattens each loaded shape into a device face buffer and then
// uploads the mesh descriptor array referencing those buffers.
func (up *uploader) uploadMeshes(attrib *wavefront.Attrib, shapes []wavefront.Shape, out *Buffer[Mesh]) error {
	if len(shapes) == 0 {
		return nil
	}

	meshes := make([]Mesh, len(shapes))
	for i, shape := range shapes {
		faces := flattenShape(attrib, shape)
		up.faceCount += len(faces)
		if len(faces) == 0 {
			// A mesh with no faces keeps a null face buffer.
			continue
		}

		ptr, err := up.mallocAndCopy(len(faces)*sizeofFace, faces)
		if err != nil {
			return errors.Wrapf(err, "could not upload faces for shape %q", shape.Name)
		}
		meshes[i] = Mesh{Faces: Buffer[Face]{Size: uint64(len(faces)), Data: ptr}}
	}

	ptr, err := up.mallocAndCopy(len(meshes)*sizeofMesh, meshes)
	if err != nil {
		return errors.Wrap(err, "could not upload mesh list")
	}

	out.Size = uint64(len(meshes))
	out.Data = ptr
	return nil
}

// flattenShape resolves the indexed shape attributes into self-contained
// face records.
func flattenShape(attrib *wavefront.Attrib, shape wavefront.Shape) []Face {
	faces := make([]Face, len(shape.Indices)/3)
	for f := range faces {
		face := &faces[f]
		for c := 0; c < 3; c++ {
			idx := shape.Indices[f*3+c]
			face.Vertices[c] = vec3At(attrib.Vertices, idx.Vertex)
			face.Normals[c] = vec3At(attrib.Normals, idx.Normal)
			if idx.Texcoord >= 0 {
				face.Texcoords[c] = vec2At(attrib.Texcoords, idx.Texcoord)
			}
		}
		face.Tangent = faceTangent(face)
		face.MaterialID = shape.MaterialIDs[f]
	}
	return faces
}

// faceTangent derives the surface tangent from the uv parameterization of
// the triangle. Faces with a degenerate parameterization (all texcoords
// equal) produce non-finite components; shading falls back to the geometric
// normal for such faces.
func faceTangent(face *Face) types.Vec3 {
	e1 := face.Vertices[1].Sub(face.Vertices[0])
	e2 := face.Vertices[2].Sub(face.Vertices[0])
	du1 := face.Texcoords[1].Sub(face.Texcoords[0])
	du2 := face.Texcoords[2].Sub(face.Texcoords[0])

	f := 1.0 / (du1[0]*du2[1] - du2[0]*du1[1])
	return types.XYZ(
		f*(du2[1]*e1[0]-du1[1]*e2[0]),
		f*(du2[1]*e1[1]-du1[1]*e2[1]),
		f*(du2[1]*e1[2]-du1[1]*e2[2]),
	).Normalize()
}

func vec3At(pool []float32, index int32) types.Vec3 {
	return types.XYZ(pool[index*3], pool[index*3+1], pool[index*3+2])
}

func vec2At(pool []float32, index int32) types.Vec2 {
	return types.XY(pool[index*2], pool[index*2+1])
}
