package sdfcull

import (
	"context"
	"sync"

	"github.com/gekko3d/sdfcull/cullrt/rt/core"
	"github.com/gekko3d/sdfcull/cullrt/rt/pyramid"
	"github.com/gekko3d/sdfcull/cullrt/rt/visibility"
)

// occluderScale shrinks each sphere to a box that lies inside it. Writing the
// center depth over that box's footprint never claims more occlusion than
// the sphere itself provides.
const occluderScale = 0.5

// SplatRasterizer is a host DrawConsumer and DepthSink for headless runs. It
// renders every drawn instance into the depth buffer as a flat rectangle at
// the depth of its center.
type SplatRasterizer struct {
	store *core.InstanceStore
	conv  core.DepthConvention

	mu      sync.Mutex
	frame   uint64
	entries []uint32
	drawn   bool
}

func NewSplatRasterizer(store *core.InstanceStore, conv core.DepthConvention) *SplatRasterizer {
	return &SplatRasterizer{store: store, conv: conv}
}

func (s *SplatRasterizer) Draw(_ context.Context, u FrameUniforms, args visibility.DrawIndexedIndirect, entries []uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = u.Frame
	s.entries = append(s.entries[:0], entries[:min(int(args.InstanceCount), len(entries))]...)
	s.drawn = true
	return nil
}

// RenderDepth rasterizes the instances drawn in frame u.Frame, or the whole
// store when nothing has been drawn for it yet (a depth pre-pass).
func (s *SplatRasterizer) RenderDepth(_ context.Context, u FrameUniforms, dst *pyramid.DepthBuffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dst.Clear(s.conv.FarthestValue())
	if s.drawn && s.frame == u.Frame {
		for _, i := range s.entries {
			s.splat(u, dst, s.store.At(int(i)))
		}
		return nil
	}
	for _, inst := range s.store.All() {
		s.splat(u, dst, inst)
	}
	return nil
}

func (s *SplatRasterizer) splat(u FrameUniforms, dst *pyramid.DepthBuffer, inst core.Instance) {
	c := u.ViewProj.Mul4x1(inst.Position.Vec4(1))
	if c[3] <= 0 {
		return
	}
	b, ok := core.ProjectSphere(u.ViewProj, inst.Position, inst.Radius*occluderScale, u.Clip, s.conv)
	if !ok || !b.OnScreen() {
		return
	}
	depth := u.Clip.Depth(c[2] / c[3])
	b = b.Clamp()

	// Only texels whose center is covered.
	w, h := float32(dst.Width), float32(dst.Height)
	x0, x1 := int(b.MinU*w+0.5), int(b.MaxU*w+0.5)
	y0, y1 := int(b.MinV*h+0.5), int(b.MaxV*h+0.5)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			dst.Set(x, y, s.conv.Nearer(dst.At(x, y), depth))
		}
	}
}
