package pyramid

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gekko3d/sdfcull/cullrt/rt/core"
	"github.com/gekko3d/sdfcull/cullrt/rt/dispatch"
)

// Strategy selects how the levels are scheduled. Both produce identical
// pyramids.
type Strategy uint8

const (
	// MultiPass issues one dispatch per level. Each dispatch completes before
	// the next level reads it.
	MultiPass Strategy = iota
	// SinglePass issues one dispatch. Each group reduces its tile through all
	// tile-local levels in group scratch memory and the last group to finish
	// reduces the remaining levels.
	SinglePass
)

func (s Strategy) String() string {
	if s == SinglePass {
		return "single-pass"
	}
	return "multi-pass"
}

func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "multi-pass", "multi":
		return MultiPass, nil
	case "single-pass", "single":
		return SinglePass, nil
	}
	return 0, fmt.Errorf("unknown pyramid strategy %q", s)
}

const (
	// groupTile is the side of the texel block one group writes per level in
	// the multi-pass strategy.
	groupTile = 8
	// maxSinglePassTile is the largest tile reduced in group scratch memory.
	maxSinglePassTile = 64
)

type Builder struct {
	layout     Layout
	conv       core.DepthConvention
	strategy   Strategy
	dispatcher dispatch.Dispatcher

	tile    int
	scratch sync.Pool
}

func NewBuilder(layout Layout, conv core.DepthConvention, strategy Strategy, d dispatch.Dispatcher) (*Builder, error) {
	if layout.Levels <= 0 {
		return nil, fmt.Errorf("%w: pyramid layout %s has no levels", core.ErrResourceCreation, layout)
	}
	if d == nil {
		d = dispatch.SerialDispatcher{}
	}
	b := &Builder{
		layout:     layout,
		conv:       conv,
		strategy:   strategy,
		dispatcher: d,
		tile:       min(maxSinglePassTile, layout.BaseWidth, layout.BaseHeight),
	}
	b.scratch.New = func() any {
		s := make([]float32, b.tile*b.tile)
		return &s
	}
	return b, nil
}

func (b *Builder) Layout() Layout { return b.layout }

func (b *Builder) Strategy() Strategy { return b.strategy }

// Build rebuilds dst from src. dst must have been created for the builder's
// layout and convention.
func (b *Builder) Build(ctx context.Context, src *DepthBuffer, dst *DepthPyramid) error {
	if err := src.validate(); err != nil {
		return err
	}
	if src.Width != b.layout.SourceWidth || src.Height != b.layout.SourceHeight {
		return fmt.Errorf("depth source %dx%d does not match pyramid layout %s", src.Width, src.Height, b.layout)
	}
	if dst == nil || dst.Layout != b.layout || dst.Convention != b.conv {
		return fmt.Errorf("destination pyramid does not match builder layout %s", b.layout)
	}

	if b.strategy == SinglePass {
		return b.buildSinglePass(ctx, src, dst)
	}
	return b.buildMultiPass(ctx, src, dst)
}

func (b *Builder) buildMultiPass(ctx context.Context, src *DepthBuffer, dst *DepthPyramid) error {
	for k := 0; k < len(dst.Levels); k++ {
		lv := &dst.Levels[k]
		gx := (lv.Width + groupTile - 1) / groupTile
		gy := (lv.Height + groupTile - 1) / groupTile

		var texel func(x, y int) float32
		if k == 0 {
			texel = func(x, y int) float32 { return b.seedTexel(src, x, y) }
		} else {
			prev := &dst.Levels[k-1]
			texel = func(x, y int) float32 { return b.reduceTexel(prev, x, y) }
		}

		err := b.dispatcher.Dispatch(ctx, uint32(gx*gy), func(g uint32) {
			x0 := int(g) % gx * groupTile
			y0 := int(g) / gx * groupTile
			for y := y0; y < min(y0+groupTile, lv.Height); y++ {
				row := lv.Data[y*lv.Width : (y+1)*lv.Width]
				for x := x0; x < min(x0+groupTile, lv.Width); x++ {
					row[x] = texel(x, y)
				}
			}
		})
		if err != nil {
			return fmt.Errorf("pyramid level %d: %w", k, err)
		}
	}
	return nil
}

func (b *Builder) buildSinglePass(ctx context.Context, src *DepthBuffer, dst *DepthPyramid) error {
	t := b.tile
	tilesX := b.layout.BaseWidth / t
	tilesY := b.layout.BaseHeight / t
	groups := uint32(tilesX * tilesY)
	tileLevels := min(Log2(t)+1, len(dst.Levels))

	var finished atomic.Uint32
	return b.dispatcher.Dispatch(ctx, groups, func(g uint32) {
		tx, ty := int(g)%tilesX, int(g)/tilesX

		sp := b.scratch.Get().(*[]float32)
		defer b.scratch.Put(sp)
		s := *sp

		// Level 0 tile from the source.
		base := &dst.Levels[0]
		for y := 0; y < t; y++ {
			for x := 0; x < t; x++ {
				v := b.seedTexel(src, tx*t+x, ty*t+y)
				s[y*t+x] = v
				base.Data[(ty*t+y)*base.Width+tx*t+x] = v
			}
		}

		// Tile-local levels, reduced in place: texel (x,y) of the new level
		// only reads texels at or after (2x,2y) of the old one.
		for k := 1; k < tileLevels; k++ {
			n := t >> k
			prevN := n * 2
			lv := &dst.Levels[k]
			for y := 0; y < n; y++ {
				for x := 0; x < n; x++ {
					i := 2*y*prevN + 2*x
					v := b.conv.Farther(
						b.conv.Farther(s[i], s[i+1]),
						b.conv.Farther(s[i+prevN], s[i+prevN+1]),
					)
					s[y*n+x] = v
					lv.Data[(ty*n+y)*lv.Width+tx*n+x] = v
				}
			}
		}

		// The last group to finish sees every tile and owns the tail levels.
		if finished.Add(1) != groups {
			return
		}
		for k := tileLevels; k < len(dst.Levels); k++ {
			prev, lv := &dst.Levels[k-1], &dst.Levels[k]
			for y := 0; y < lv.Height; y++ {
				for x := 0; x < lv.Width; x++ {
					lv.Data[y*lv.Width+x] = b.reduceTexel(prev, x, y)
				}
			}
		}
	})
}

// seedTexel aggregates every source texel touched by level 0 texel (x,y).
// When the source is not an exact multiple of the base size the footprint is
// rounded outward so neighbouring texels overlap rather than leave gaps.
func (b *Builder) seedTexel(src *DepthBuffer, x, y int) float32 {
	bw, bh := b.layout.BaseWidth, b.layout.BaseHeight
	sx0 := x * src.Width / bw
	sx1 := ((x+1)*src.Width + bw - 1) / bw
	sy0 := y * src.Height / bh
	sy1 := ((y+1)*src.Height + bh - 1) / bh

	agg := b.conv.NearestValue()
	for sy := sy0; sy < sy1; sy++ {
		row := src.Data[sy*src.Width : (sy+1)*src.Width]
		for sx := sx0; sx < sx1; sx++ {
			agg = b.conv.Farther(agg, row[sx])
		}
	}
	return agg
}

func (b *Builder) reduceTexel(prev *Level, x, y int) float32 {
	i := 2*y*prev.Width + 2*x
	return b.conv.Farther(
		b.conv.Farther(prev.Data[i], prev.Data[i+1]),
		b.conv.Farther(prev.Data[i+prev.Width], prev.Data[i+prev.Width+1]),
	)
}
