// Package visibility tests every instance against the view frustum and the
// depth pyramid and compacts the survivors into an indirect draw.
package visibility

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/gekko3d/sdfcull/cullrt/rt/core"
	"github.com/gekko3d/sdfcull/cullrt/rt/dispatch"
	"github.com/gekko3d/sdfcull/cullrt/rt/pyramid"
	"github.com/go-gl/mathgl/mgl32"
)

const DefaultWorkGroupSize = 64

type Config struct {
	// WorkGroupSize is the number of instances handled by one worker group.
	WorkGroupSize uint32
	// Capacity of the visibility entry buffer. Zero sizes it to the store,
	// which makes overflow impossible for a correctly cleared pass.
	Capacity uint32
	// Mesh drawn once per visible instance.
	IndexCount uint32
	FirstIndex uint32
	BaseVertex int32
}

// Params are the per-frame inputs of a culling pass.
type Params struct {
	ViewProj mgl32.Mat4
	Clip     core.ClipDepthRange
	// Pyramid may be nil, in which case only frustum culling is performed.
	Pyramid *pyramid.DepthPyramid
}

// Stats counts the outcome of one pass.
type Stats struct {
	Tested          uint32
	FrustumRejected uint32
	Occluded        uint32
	Unprojectable   uint32
	Accepted        uint32
}

type Culler struct {
	store      *core.InstanceStore
	conv       core.DepthConvention
	groupSize  uint32
	dispatcher dispatch.Dispatcher

	args     *DrawArgs
	entries  []uint32
	slots    atomic.Uint32
	overflow atomic.Bool
}

func NewCuller(store *core.InstanceStore, conv core.DepthConvention, cfg Config, d dispatch.Dispatcher) (*Culler, error) {
	if store == nil || store.Len() == 0 {
		return nil, fmt.Errorf("%w: empty instance store", core.ErrResourceCreation)
	}
	if cfg.WorkGroupSize == 0 {
		cfg.WorkGroupSize = DefaultWorkGroupSize
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = uint32(store.Len())
	}
	if d == nil {
		d = dispatch.SerialDispatcher{}
	}
	return &Culler{
		store:      store,
		conv:       conv,
		groupSize:  cfg.WorkGroupSize,
		dispatcher: d,
		args:       NewDrawArgs(cfg.IndexCount, cfg.FirstIndex, cfg.BaseVertex),
		entries:    make([]uint32, cfg.Capacity),
	}, nil
}

func (c *Culler) Args() *DrawArgs { return c.args }

func (c *Culler) Capacity() int { return len(c.entries) }

func (c *Culler) Convention() core.DepthConvention { return c.conv }

// ClearArgs resets the instance count and the slot counter. It must complete
// before the next Cull starts.
func (c *Culler) ClearArgs() {
	c.args.reset()
	c.slots.Store(0)
	c.overflow.Store(false)
}

// Entries returns the compacted indices of the instances accepted by the
// last pass, in no particular order. The slice aliases the culler's buffer
// and is only valid until the next ClearArgs.
func (c *Culler) Entries() []uint32 {
	n := min(int(c.args.InstanceCount()), len(c.entries))
	return c.entries[:n]
}

// Cull runs one pass over every instance. Accepted instances are appended to
// the entries after those of any pass since the last ClearArgs.
func (c *Culler) Cull(ctx context.Context, p Params) (Stats, error) {
	if p.Pyramid != nil && p.Pyramid.Convention != c.conv {
		return Stats{}, fmt.Errorf("pyramid convention %s does not match culler convention %s", p.Pyramid.Convention, c.conv)
	}

	frustum := core.ExtractFrustum(p.ViewProj, p.Clip)
	n := uint32(c.store.Len())

	var stats [5]atomic.Uint32
	err := c.dispatcher.Dispatch(ctx, dispatch.Groups(n, c.groupSize), func(g uint32) {
		var local Stats
		first := g * c.groupSize
		last := min(first+c.groupSize, n)
		for i := first; i < last; i++ {
			c.testInstance(i, &frustum, &p, &local)
		}
		stats[0].Add(local.Tested)
		stats[1].Add(local.FrustumRejected)
		stats[2].Add(local.Occluded)
		stats[3].Add(local.Unprojectable)
		stats[4].Add(local.Accepted)
	})
	if err != nil {
		return Stats{}, fmt.Errorf("culling dispatch: %w", err)
	}

	s := Stats{
		Tested:          stats[0].Load(),
		FrustumRejected: stats[1].Load(),
		Occluded:        stats[2].Load(),
		Unprojectable:   stats[3].Load(),
		Accepted:        stats[4].Load(),
	}
	if c.overflow.Load() {
		return s, fmt.Errorf("%w: %d visible instances, capacity %d", core.ErrCapacityOverflow, c.slots.Load(), len(c.entries))
	}
	return s, nil
}

func (c *Culler) testInstance(i uint32, f *core.Frustum, p *Params, s *Stats) {
	s.Tested++
	inst := c.store.At(int(i))
	if !f.SphereInFrustum(inst.Position, inst.Radius) {
		s.FrustumRejected++
		return
	}

	if p.Pyramid != nil {
		b, ok := core.ProjectSphere(p.ViewProj, inst.Position, inst.Radius, p.Clip, c.conv)
		if !ok {
			s.Unprojectable++
		} else if agg, ok := p.Pyramid.FarthestInRect(p.Pyramid.SelectLevel(b), b); ok && c.conv.IsOccluded(b.Nearest, agg) {
			s.Occluded++
			return
		}
	}

	slot := c.slots.Add(1) - 1
	if slot >= uint32(len(c.entries)) {
		c.overflow.Store(true)
		return
	}
	c.entries[slot] = i
	c.args.increment()
	s.Accepted++
}
