package pyramid

import (
	"fmt"
	"math/bits"

	"github.com/gekko3d/sdfcull/cullrt/rt/core"
)

// Layout fixes the dimensions of a depth pyramid built from a W×H source.
//
// The pyramid starts at half the previous power of two of each source
// dimension:
//
//	Source:  1920x1080
//	Level 0:  512x512
//	Level 1:  256x256
//	...
type Layout struct {
	SourceWidth  int
	SourceHeight int
	BaseWidth    int
	BaseHeight   int
	Levels       int
}

// NewLayout derives the pyramid layout. baseDim caps the level 0 dimensions
// and must be a power of two when set; maxLevels caps the level count. Zero
// leaves either unconstrained.
func NewLayout(srcW, srcH, baseDim, maxLevels int) (Layout, error) {
	if srcW < 2 || srcH < 2 {
		return Layout{}, fmt.Errorf("%w: depth source %dx%d is smaller than 2x2", core.ErrResourceCreation, srcW, srcH)
	}
	if baseDim < 0 || (baseDim > 0 && !IsPow2(baseDim)) {
		return Layout{}, fmt.Errorf("%w: pyramid base dimension %d is not a power of two", core.ErrResourceCreation, baseDim)
	}
	if maxLevels < 0 {
		return Layout{}, fmt.Errorf("%w: negative pyramid level count %d", core.ErrResourceCreation, maxLevels)
	}

	bw := PrevPow2(srcW) / 2
	bh := PrevPow2(srcH) / 2
	if baseDim > 0 {
		bw = min(bw, baseDim)
		bh = min(bh, baseDim)
	}

	levels := Log2(min(bw, bh)) + 1
	if maxLevels > 0 {
		levels = min(levels, maxLevels)
	}

	return Layout{
		SourceWidth:  srcW,
		SourceHeight: srcH,
		BaseWidth:    bw,
		BaseHeight:   bh,
		Levels:       levels,
	}, nil
}

// LevelSize returns the dimensions of level k.
func (l Layout) LevelSize(k int) (w, h int) {
	return l.BaseWidth >> k, l.BaseHeight >> k
}

func (l Layout) String() string {
	return fmt.Sprintf("%dx%d -> %dx%d x%d", l.SourceWidth, l.SourceHeight, l.BaseWidth, l.BaseHeight, l.Levels)
}

func IsPow2(v int) bool { return v > 0 && v&(v-1) == 0 }

// PrevPow2 returns the largest power of two <= v (v >= 1).
func PrevPow2(v int) int {
	return 1 << (bits.Len(uint(v)) - 1)
}

// Log2 returns floor(log2(v)) for v >= 1.
func Log2(v int) int {
	return bits.Len(uint(v)) - 1
}
