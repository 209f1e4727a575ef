package scene

import (
	"math"

	"github.com/cpcdoy/cuda-pathtracer/types"
	"github.com/go-gl/mathgl/mgl32"
)

// Camera movement directions.
const (
	Forward CameraDirection = iota
	Backward
	Left
	Right
)

type CameraDirection uint8

// The host-side camera. Never uploaded to the device; the tracer passes its
// fields to the trace kernel as plain arguments each frame.
type Camera struct {
	Position types.Vec3
	Dir      types.Vec3

	// Screen-plane basis vectors. U points right and V points down so that
	// pixel rows grow downward like the output framebuffer.
	U types.Vec3
	V types.Vec3

	// Horizontal field of view in radians.
	FovX float32

	FocusDist float32
	Aperture  float32
}

// DefaultCamera returns a camera looking down -Z with a 90 degree horizontal
// field of view. Position is intentionally left at the origin; the scene
// description is expected to provide one.
func DefaultCamera() Camera {
	u := types.XYZ(1, 0, 0)
	v := types.XYZ(0, -1, 0)
	return Camera{
		Dir:       u.Cross(v),
		U:         u,
		V:         v,
		FovX:      float32(90.0 * math.Pi / 180.0),
		FocusDist: 2.0,
		Aperture:  0.125,
	}
}

// Move translates the camera along its basis vectors.
func (c *Camera) Move(direction CameraDirection, amount float32) {
	switch direction {
	case Forward:
		c.Position = c.Position.Add(c.Dir.Mul(amount))
	case Backward:
		c.Position = c.Position.Sub(c.Dir.Mul(amount))
	case Left:
		c.Position = c.Position.Sub(c.U.Mul(amount))
	case Right:
		c.Position = c.Position.Add(c.U.Mul(amount))
	}
}

// Rotate applies a yaw rotation around the screen V axis followed by a pitch
// rotation around the screen U axis. Angles are in radians.
func (c *Camera) Rotate(yaw, pitch float32) {
	yawQuat := mgl32.QuatRotate(yaw, mglVec3(c.V))
	pitchQuat := mgl32.QuatRotate(pitch, mglVec3(c.U))

	rot := yawQuat.Mul(pitchQuat)
	c.Dir = fromMglVec3(rot.Rotate(mglVec3(c.Dir))).Normalize()
	c.U = fromMglVec3(yawQuat.Rotate(mglVec3(c.U))).Normalize()
	c.V = c.Dir.Cross(c.U).Normalize()
}

func mglVec3(v types.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{v[0], v[1], v[2]}
}

func fromMglVec3(v mgl32.Vec3) types.Vec3 {
	return types.XYZ(v[0], v[1], v[2])
}
