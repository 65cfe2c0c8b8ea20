package core

import "fmt"

// DepthConvention fixes which depth values are nearer. The pyramid reduction
// operator and the culler's comparison both come from here so they cannot
// disagree.
type DepthConvention uint8

const (
	// ReversedZ: 1 at the near plane, 0 at infinity. Greater is nearer.
	ReversedZ DepthConvention = iota
	// ConventionalZ: 0 at the near plane, 1 at the far plane. Lesser is nearer.
	ConventionalZ
)

func (c DepthConvention) String() string {
	switch c {
	case ReversedZ:
		return "reversed-z"
	case ConventionalZ:
		return "conventional-z"
	}
	return fmt.Sprintf("DepthConvention(%d)", uint8(c))
}

func ParseDepthConvention(s string) (DepthConvention, error) {
	switch s {
	case "reversed-z", "reversed":
		return ReversedZ, nil
	case "conventional-z", "conventional":
		return ConventionalZ, nil
	}
	return 0, fmt.Errorf("unknown depth convention %q", s)
}

// Farther returns whichever of a, b is farther from the camera. This is the
// conservative pyramid reduction (min for reversed-Z, max for conventional).
func (c DepthConvention) Farther(a, b float32) float32 {
	if c == ReversedZ {
		if a < b {
			return a
		}
		return b
	}
	if a > b {
		return a
	}
	return b
}

// Nearer returns whichever of a, b is nearer to the camera.
func (c DepthConvention) Nearer(a, b float32) float32 {
	if c == ReversedZ {
		if a > b {
			return a
		}
		return b
	}
	if a < b {
		return a
	}
	return b
}

// FarthestValue is the "infinitely far" depth, i.e. the cleared depth buffer.
func (c DepthConvention) FarthestValue() float32 {
	if c == ReversedZ {
		return 0
	}
	return 1
}

// NearestValue is the depth of the near plane.
func (c DepthConvention) NearestValue() float32 {
	if c == ReversedZ {
		return 1
	}
	return 0
}

// IsOccluded reports whether an object whose nearest point has depth nearest
// lies strictly behind the occluder aggregate.
func (c DepthConvention) IsOccluded(nearest, aggregate float32) bool {
	if c == ReversedZ {
		return nearest < aggregate
	}
	return nearest > aggregate
}

// ClipDepthRange is the clip-space depth range of the projection in use.
type ClipDepthRange uint8

const (
	// ClipZeroToOne is the WebGPU/Vulkan/D3D range 0 <= z <= w.
	ClipZeroToOne ClipDepthRange = iota
	// ClipMinusOneToOne is the OpenGL range -w <= z <= w.
	ClipMinusOneToOne
)

func (r ClipDepthRange) String() string {
	if r == ClipMinusOneToOne {
		return "minus-one-to-one"
	}
	return "zero-to-one"
}

func ParseClipDepthRange(s string) (ClipDepthRange, error) {
	switch s {
	case "zero-to-one", "0..1":
		return ClipZeroToOne, nil
	case "minus-one-to-one", "-1..1":
		return ClipMinusOneToOne, nil
	}
	return 0, fmt.Errorf("unknown clip depth range %q", s)
}

// Depth maps an NDC z to the value stored in the depth buffer.
func (r ClipDepthRange) Depth(ndcZ float32) float32 {
	if r == ClipMinusOneToOne {
		return ndcZ*0.5 + 0.5
	}
	return ndcZ
}
