package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrustumCulling(t *testing.T) {
	// Camera at origin looking down -Z, 90 deg FOV, aspect 1, near 1, far 100
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1.0, 1.0, 100.0)
	view := mgl32.LookAtV(
		mgl32.Vec3{0, 0, 0},
		mgl32.Vec3{0, 0, -1},
		mgl32.Vec3{0, 1, 0},
	)
	planes := ExtractFrustum(proj.Mul4(view), ClipMinusOneToOne)

	tests := []struct {
		name     string
		center   mgl32.Vec3
		radius   float32
		expected bool
	}{
		{"Inside (center)", mgl32.Vec3{0, 0, -7.5}, 2, true},
		{"Outside (Left)", mgl32.Vec3{-17.5, 0, -7.5}, 3, false},
		{"Outside (Right)", mgl32.Vec3{17.5, 0, -7.5}, 3, false},
		{"Outside (Behind/Near)", mgl32.Vec3{0, 0, 3.5}, 1.5, false},
		{"Outside (Far)", mgl32.Vec3{0, 0, -175}, 25, false},
		// Left edge is at roughly -7.5 (tan(45)*7.5)
		{"Intersecting (Left Plane)", mgl32.Vec3{-10, 0, -7.5}, 5, true},
		{"Encompassing (Huge sphere)", mgl32.Vec3{0, 0, 0}, 1000, true},
	}

	for _, tc := range tests {
		visible := planes.SphereInFrustum(tc.center, tc.radius)
		if visible != tc.expected {
			t.Errorf("Test %s failed: expected %v, got %v", tc.name, tc.expected, visible)
			for i, p := range planes {
				t.Logf("  P%d: %v, Dist(Center)=%f", i, p, p.Dot(tc.center.Vec4(1.0)))
			}
		}
	}
}

func TestFrustumOrtho(t *testing.T) {
	// Near=0 => Z=0. Far=20 => Z=-20.
	proj := mgl32.Ortho(-10, 10, -10, 10, 0, 20)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0})
	planes := ExtractFrustum(proj.Mul4(view), ClipMinusOneToOne)

	if !planes.SphereInFrustum(mgl32.Vec3{0, 0, -5}, 1) {
		t.Error("Ortho: sphere should be inside")
	}
	if planes.SphereInFrustum(mgl32.Vec3{0, 0, -25}, 1) {
		t.Error("Ortho: sphere at -25 should be outside (Far=20 => Z=-20)")
	}
}

func TestFrustumReversedZInfinite(t *testing.T) {
	vp := ReversedZPerspective(mgl32.DegToRad(90), 1, 1)
	planes := ExtractFrustum(vp, ClipZeroToOne)

	// With reversed-Z the z >= 0 plane lies at infinity and vanishes.
	assert.Equal(t, alwaysInside, planes[PlaneNear])

	tests := []struct {
		name    string
		center  mgl32.Vec3
		radius  float32
		visible bool
	}{
		{"ahead", mgl32.Vec3{0, 0, -10}, 1, true},
		{"very far ahead", mgl32.Vec3{0, 0, -1e6}, 1, true},
		{"behind camera", mgl32.Vec3{0, 0, 10}, 1, false},
		{"before near plane", mgl32.Vec3{0, 0, -0.2}, 0.1, false},
		{"straddles near plane", mgl32.Vec3{0, 0, -1}, 0.5, true},
		{"left of frustum", mgl32.Vec3{-30, 0, -10}, 1, false},
		{"touches top plane", mgl32.Vec3{0, 10.5, -10}, 1, true},
		{"above frustum", mgl32.Vec3{0, 13, -10}, 1, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.visible, planes.SphereInFrustum(tc.center, tc.radius))
		})
	}
}

func TestProjectSphereReversedZ(t *testing.T) {
	vp := ReversedZPerspective(mgl32.DegToRad(90), 1, 1)

	b, ok := ProjectSphere(vp, mgl32.Vec3{0, 0, -10}, 1, ClipZeroToOne, ReversedZ)
	require.True(t, ok)
	// Nearest face of the enclosing box sits 9 units away: depth = near/9.
	assert.InDelta(t, 1.0/9.0, b.Nearest, 1e-6)
	assert.InDelta(t, 0.5-1.0/18.0, b.MinU, 1e-6)
	assert.InDelta(t, 0.5+1.0/18.0, b.MaxU, 1e-6)
	assert.InDelta(t, 0.5-1.0/18.0, b.MinV, 1e-6)
	assert.InDelta(t, 0.5+1.0/18.0, b.MaxV, 1e-6)
	assert.True(t, b.OnScreen())

	_, ok = ProjectSphere(vp, mgl32.Vec3{0, 0, -1}, 2, ClipZeroToOne, ReversedZ)
	assert.False(t, ok, "a box reaching behind the camera cannot be projected")
}

func TestProjectSphereOffsetIsUpperLeft(t *testing.T) {
	vp := ReversedZPerspective(mgl32.DegToRad(90), 1, 1)

	// +Y in world is up on screen, i.e. toward v = 0.
	b, ok := ProjectSphere(vp, mgl32.Vec3{-5, 5, -10}, 0.5, ClipZeroToOne, ReversedZ)
	require.True(t, ok)
	assert.Less(t, b.MaxU, float32(0.5))
	assert.Less(t, b.MaxV, float32(0.5))
}

func TestProjectSphereConventional(t *testing.T) {
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1, 1, 100)

	near, ok := ProjectSphere(proj, mgl32.Vec3{0, 0, -5}, 1, ClipMinusOneToOne, ConventionalZ)
	require.True(t, ok)
	far, ok := ProjectSphere(proj, mgl32.Vec3{0, 0, -50}, 1, ClipMinusOneToOne, ConventionalZ)
	require.True(t, ok)

	assert.Less(t, near.Nearest, far.Nearest, "lesser depth is nearer")
	assert.GreaterOrEqual(t, near.Nearest, float32(0))
	assert.LessOrEqual(t, far.Nearest, float32(1))
}

func TestScreenBoundsClamp(t *testing.T) {
	b := ScreenBounds{MinU: -0.5, MaxU: 0.25, MinV: 0.9, MaxV: 1.4}
	assert.True(t, b.OnScreen())
	c := b.Clamp()
	assert.Equal(t, float32(0), c.MinU)
	assert.Equal(t, float32(1), c.MaxV)

	off := ScreenBounds{MinU: 1.2, MaxU: 1.5, MinV: 0, MaxV: 1}
	assert.False(t, off.OnScreen())
}
