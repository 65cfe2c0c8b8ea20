package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Frustum holds six inward-facing planes (Ax + By + Cz + D >= 0 is inside) in
// the order Left, Right, Bottom, Top, Near, Far.
type Frustum [6]mgl32.Vec4

const (
	PlaneLeft = iota
	PlaneRight
	PlaneBottom
	PlaneTop
	PlaneNear
	PlaneFar
)

// alwaysInside replaces planes that vanish for the projection in use, e.g.
// the far plane of an infinite projection.
var alwaysInside = mgl32.Vec4{0, 0, 0, 1}

// ExtractFrustum extracts the frustum planes from a world-to-clip matrix.
// The near/far pair depends on the clip depth range of the projection; for a
// reversed-Z projection the two planes trade names but bound the same volume.
func ExtractFrustum(vp mgl32.Mat4, clip ClipDepthRange) Frustum {
	row := func(r int) mgl32.Vec4 {
		return mgl32.Vec4{vp.At(r, 0), vp.At(r, 1), vp.At(r, 2), vp.At(r, 3)}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	var f Frustum
	f[PlaneLeft] = r3.Add(r0)
	f[PlaneRight] = r3.Sub(r0)
	f[PlaneBottom] = r3.Add(r1)
	f[PlaneTop] = r3.Sub(r1)
	if clip == ClipMinusOneToOne {
		f[PlaneNear] = r3.Add(r2)
	} else {
		f[PlaneNear] = r2
	}
	f[PlaneFar] = r3.Sub(r2)

	for i := range f {
		length := float32(math.Sqrt(float64(f[i][0]*f[i][0] + f[i][1]*f[i][1] + f[i][2]*f[i][2])))
		if length < 1e-12 {
			f[i] = alwaysInside
			continue
		}
		f[i] = f[i].Mul(1.0 / length)
	}
	return f
}

// SphereInFrustum reports whether the sphere is at least partially inside.
func (f *Frustum) SphereInFrustum(center mgl32.Vec3, radius float32) bool {
	for i := range f {
		p := f[i]
		if p[0]*center[0]+p[1]*center[1]+p[2]*center[2]+p[3] < -radius {
			return false
		}
	}
	return true
}
