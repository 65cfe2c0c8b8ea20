package pyramid

import (
	"fmt"
	"math"

	"github.com/gekko3d/sdfcull/cullrt/rt/core"
)

type Level struct {
	Width  int
	Height int
	Data   []float32
}

func (l *Level) At(x, y int) float32 { return l.Data[y*l.Width+x] }

// DepthPyramid is a hierarchical depth map. Every texel of level k holds the
// farthest depth (per Convention) of its 2×2 footprint in level k-1, so it
// never reports more occlusion than the source depth it was built from.
type DepthPyramid struct {
	Layout     Layout
	Convention core.DepthConvention
	Levels     []Level
}

// New allocates a pyramid for layout. Contents are cleared to "infinitely far".
func New(layout Layout, conv core.DepthConvention) (*DepthPyramid, error) {
	if layout.Levels <= 0 || layout.BaseWidth <= 0 || layout.BaseHeight <= 0 {
		return nil, fmt.Errorf("%w: empty pyramid layout %s", core.ErrResourceCreation, layout)
	}
	p := &DepthPyramid{
		Layout:     layout,
		Convention: conv,
		Levels:     make([]Level, layout.Levels),
	}
	for k := range p.Levels {
		w, h := layout.LevelSize(k)
		p.Levels[k] = Level{Width: w, Height: h, Data: make([]float32, w*h)}
	}
	p.Fill(conv.FarthestValue())
	return p, nil
}

// Fill overwrites every texel of every level with v.
func (p *DepthPyramid) Fill(v float32) {
	for k := range p.Levels {
		data := p.Levels[k].Data
		for i := range data {
			data[i] = v
		}
	}
}

func (p *DepthPyramid) Texel(level, x, y int) float32 {
	return p.Levels[level].At(x, y)
}

// SelectLevel picks the level whose texels best match the footprint of b.
// It rounds toward the finer level, so the footprint spans at most three
// texels per axis at the returned level.
func (p *DepthPyramid) SelectLevel(b core.ScreenBounds) int {
	w := (b.MaxU - b.MinU) * float32(p.Layout.BaseWidth)
	h := (b.MaxV - b.MinV) * float32(p.Layout.BaseHeight)
	size := max(w, h)
	if size <= 1 {
		return 0
	}
	level := int(math.Floor(math.Log2(float64(size))))
	return min(max(level, 0), len(p.Levels)-1)
}

// FarthestInRect returns the farthest depth over every texel of level that the
// clamped footprint b touches. ok is false when b does not overlap the
// pyramid; callers must then treat the object as visible.
func (p *DepthPyramid) FarthestInRect(level int, b core.ScreenBounds) (float32, bool) {
	if !b.OnScreen() || level < 0 || level >= len(p.Levels) {
		return 0, false
	}
	b = b.Clamp()
	lv := &p.Levels[level]

	x0, x1 := texelSpan(b.MinU, b.MaxU, lv.Width)
	y0, y1 := texelSpan(b.MinV, b.MaxV, lv.Height)

	conv := p.Convention
	agg := conv.NearestValue()
	for y := y0; y <= y1; y++ {
		row := lv.Data[y*lv.Width : (y+1)*lv.Width]
		for x := x0; x <= x1; x++ {
			agg = conv.Farther(agg, row[x])
		}
	}
	return agg, true
}

// texelSpan returns the inclusive texel range covering [lo, hi] on an axis of
// n texels.
func texelSpan(lo, hi float32, n int) (int, int) {
	first := int(math.Floor(float64(lo * float32(n))))
	last := int(math.Ceil(float64(hi*float32(n)))) - 1
	first = min(max(first, 0), n-1)
	last = min(max(last, first), n-1)
	return first, last
}
