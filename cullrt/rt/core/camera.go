package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// CameraState is a free-flying Y-up camera producing world-to-clip transforms
// for the culling pipeline.
type CameraState struct {
	Position    mgl32.Vec3
	Yaw         float32
	Pitch       float32
	FovY        float32 // radians
	Near        float32
	Speed       float32
	Sensitivity float32
}

func NewCameraState() *CameraState {
	return &CameraState{
		Position:    mgl32.Vec3{0, 0, 0},
		FovY:        math.Pi / 2,
		Near:        1.0,
		Speed:       1.5,
		Sensitivity: 0.0015,
	}
}

func (c *CameraState) GetForward() mgl32.Vec3 {
	return mgl32.Vec3{
		float32(math.Cos(float64(c.Pitch)) * math.Sin(float64(c.Yaw))),
		float32(math.Sin(float64(c.Pitch))),
		float32(-math.Cos(float64(c.Pitch)) * math.Cos(float64(c.Yaw))),
	}
}

func (c *CameraState) GetRight() mgl32.Vec3 {
	return mgl32.Vec3{
		float32(math.Cos(float64(c.Yaw))),
		0,
		float32(math.Sin(float64(c.Yaw))),
	}
}

func (c *CameraState) GetViewMatrix() mgl32.Mat4 {
	eye := c.Position
	target := eye.Add(c.GetForward())
	return mgl32.LookAtV(eye, target, mgl32.Vec3{0, 1, 0})
}

// WorldToClip returns projection * view for the given aspect ratio using an
// infinite reversed-Z projection.
func (c *CameraState) WorldToClip(aspect float32) mgl32.Mat4 {
	if aspect == 0 {
		aspect = 1
	}
	return ReversedZPerspective(c.FovY, aspect, c.Near).Mul4(c.GetViewMatrix())
}

// ReversedZPerspective builds a right-handed infinite-far projection mapping
// the near plane to depth 1 and infinity to depth 0 (clip z in [0, w]).
func ReversedZPerspective(fovy, aspect, near float32) mgl32.Mat4 {
	f := float32(1.0 / math.Tan(float64(fovy)/2.0))
	return mgl32.Mat4{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, 0, -1,
		0, 0, near, 0,
	}
}
