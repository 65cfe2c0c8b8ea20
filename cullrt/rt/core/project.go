package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// minClipW keeps projected corners away from the camera plane.
const minClipW = 1e-5

// ScreenBounds is the screen footprint of a bounding volume in UV space
// (u right, v down, both in [0,1] on screen) plus its nearest depth.
type ScreenBounds struct {
	MinU, MinV float32
	MaxU, MaxV float32
	Nearest    float32
}

// ProjectSphere projects the axis-aligned box enclosing the sphere. The box is
// conservative for both the footprint and the nearest depth: depth is a
// monotonic function of view distance so its extreme lies on a box vertex.
// ok is false when the box reaches behind the camera plane; such instances
// cannot be occlusion tested and must be kept.
func ProjectSphere(vp mgl32.Mat4, center mgl32.Vec3, radius float32, clip ClipDepthRange, conv DepthConvention) (b ScreenBounds, ok bool) {
	minX, minY := float32(math.MaxFloat32), float32(math.MaxFloat32)
	maxX, maxY := float32(-math.MaxFloat32), float32(-math.MaxFloat32)
	nearest := conv.FarthestValue()

	for corner := 0; corner < 8; corner++ {
		p := mgl32.Vec4{center[0] - radius, center[1] - radius, center[2] - radius, 1}
		if corner&1 != 0 {
			p[0] = center[0] + radius
		}
		if corner&2 != 0 {
			p[1] = center[1] + radius
		}
		if corner&4 != 0 {
			p[2] = center[2] + radius
		}
		c := vp.Mul4x1(p)
		if c[3] < minClipW {
			return ScreenBounds{}, false
		}
		inv := 1 / c[3]
		x, y := c[0]*inv, c[1]*inv
		minX = min(minX, x)
		maxX = max(maxX, x)
		minY = min(minY, y)
		maxY = max(maxY, y)
		nearest = conv.Nearer(nearest, clip.Depth(c[2]*inv))
	}

	return ScreenBounds{
		MinU:    minX*0.5 + 0.5,
		MaxU:    maxX*0.5 + 0.5,
		MinV:    0.5 - maxY*0.5,
		MaxV:    0.5 - minY*0.5,
		Nearest: nearest,
	}, true
}

// OnScreen reports whether any part of the footprint overlaps the viewport.
func (b ScreenBounds) OnScreen() bool {
	return b.MaxU > 0 && b.MinU < 1 && b.MaxV > 0 && b.MinV < 1
}

// Clamp restricts the footprint to the viewport.
func (b ScreenBounds) Clamp() ScreenBounds {
	b.MinU = clamp01(b.MinU)
	b.MaxU = clamp01(b.MaxU)
	b.MinV = clamp01(b.MinV)
	b.MaxV = clamp01(b.MaxV)
	return b
}

func clamp01(v float32) float32 {
	return min(max(v, 0), 1)
}
