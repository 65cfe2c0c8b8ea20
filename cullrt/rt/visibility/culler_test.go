package visibility

import (
	"context"
	"sort"
	"testing"

	"github.com/gekko3d/sdfcull/cullrt/rt/core"
	"github.com/gekko3d/sdfcull/cullrt/rt/dispatch"
	"github.com/gekko3d/sdfcull/cullrt/rt/pyramid"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Camera at the origin looking down -Z, 90 deg FOV, near plane at 1, so depth
// is 1/distance and the frustum half-width at distance d is d.
func testViewProj() mgl32.Mat4 {
	return core.ReversedZPerspective(mgl32.DegToRad(90), 1, 1)
}

func occluderPyramid(t *testing.T, depth float32) *pyramid.DepthPyramid {
	t.Helper()
	layout, err := pyramid.NewLayout(512, 512, 0, 0)
	require.NoError(t, err)
	p, err := pyramid.New(layout, core.ReversedZ)
	require.NoError(t, err)
	b, err := pyramid.NewBuilder(layout, core.ReversedZ, pyramid.MultiPass, nil)
	require.NoError(t, err)
	require.NoError(t, b.Build(context.Background(), pyramid.NewDepthBuffer(512, 512, depth), p))
	return p
}

func newCuller(t *testing.T, instances []core.Instance, d dispatch.Dispatcher) *Culler {
	t.Helper()
	c, err := NewCuller(core.NewInstanceStore(instances), core.ReversedZ, Config{IndexCount: 36}, d)
	require.NoError(t, err)
	return c
}

func sorted(entries []uint32) []uint32 {
	out := append([]uint32(nil), entries...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestOccluderScenario(t *testing.T) {
	var instances []core.Instance
	var want []uint32
	for i := 0; i < 1000; i++ {
		fx := float32(i%25)/24 - 0.5
		fy := float32(i/25%40)/39 - 0.5
		if i%5 < 2 {
			// Behind the occluder: nearest point 9.5 away, depth ~0.105.
			instances = append(instances, core.Instance{Position: mgl32.Vec3{fx * 10, fy * 10, -10}, Radius: 0.5})
			continue
		}
		// In front of it: nearest point at depth 0.95.
		instances = append(instances, core.Instance{Position: mgl32.Vec3{fx, fy, -(1/0.95 + 0.01)}, Radius: 0.01})
		want = append(want, uint32(i))
	}
	require.Len(t, want, 600)

	c := newCuller(t, instances, dispatch.NewPoolDispatcher(4))
	c.ClearArgs()
	stats, err := c.Cull(context.Background(), Params{
		ViewProj: testViewProj(),
		Clip:     core.ClipZeroToOne,
		Pyramid:  occluderPyramid(t, 0.9),
	})
	require.NoError(t, err)

	assert.Equal(t, uint32(600), c.Args().InstanceCount())
	assert.Equal(t, want, sorted(c.Entries()))
	assert.Equal(t, uint32(1000), stats.Tested)
	assert.Equal(t, uint32(400), stats.Occluded)
	assert.Equal(t, uint32(600), stats.Accepted)
}

func TestFrustumCulledNeverDrawn(t *testing.T) {
	instances := []core.Instance{
		{Position: mgl32.Vec3{0, 0, -10}, Radius: 1},
		{Position: mgl32.Vec3{100, 0, -10}, Radius: 1},
		{Position: mgl32.Vec3{0, 0, 10}, Radius: 1},
		{Position: mgl32.Vec3{0, -50, -10}, Radius: 1},
		{Position: mgl32.Vec3{3, 3, -1e5}, Radius: 1},
	}
	c := newCuller(t, instances, nil)
	c.ClearArgs()
	stats, err := c.Cull(context.Background(), Params{ViewProj: testViewProj(), Clip: core.ClipZeroToOne})
	require.NoError(t, err)

	assert.Equal(t, []uint32{0, 4}, sorted(c.Entries()))
	assert.Equal(t, uint32(3), stats.FrustumRejected)
}

func TestNoOccluderKeepsFrustumSurvivors(t *testing.T) {
	store := core.NewRandomCloud(5000, 100, 0.5, 3)
	c, err := NewCuller(store, core.ReversedZ, Config{}, dispatch.NewPoolDispatcher(4))
	require.NoError(t, err)

	vp := testViewProj()
	c.ClearArgs()
	_, err = c.Cull(context.Background(), Params{ViewProj: vp, Clip: core.ClipZeroToOne, Pyramid: occluderPyramid(t, 0)})
	require.NoError(t, err)

	f := core.ExtractFrustum(vp, core.ClipZeroToOne)
	var want []uint32
	for i, inst := range store.All() {
		if f.SphereInFrustum(inst.Position, inst.Radius) {
			want = append(want, uint32(i))
		}
	}
	require.NotEmpty(t, want)
	assert.Equal(t, want, sorted(c.Entries()))
}

func TestFullOccluderIsIdempotent(t *testing.T) {
	instances := []core.Instance{
		{Position: mgl32.Vec3{0, 0, -20}, Radius: 1},
		{Position: mgl32.Vec3{5, 5, -50}, Radius: 2},
		{Position: mgl32.Vec3{-1, 0, -3}, Radius: 0.5},
		// Straddles the camera plane, cannot be projected and is kept.
		{Position: mgl32.Vec3{0, 0, -1}, Radius: 2},
		{Position: mgl32.Vec3{0, 0, -1.2}, Radius: 0.05},
	}
	c := newCuller(t, instances, dispatch.NewPoolDispatcher(2))
	params := Params{ViewProj: testViewProj(), Clip: core.ClipZeroToOne, Pyramid: occluderPyramid(t, 0.5)}

	var counts []uint32
	var sets [][]uint32
	for run := 0; run < 3; run++ {
		c.ClearArgs()
		stats, err := c.Cull(context.Background(), params)
		require.NoError(t, err)
		assert.Equal(t, uint32(1), stats.Unprojectable)
		counts = append(counts, c.Args().InstanceCount())
		sets = append(sets, sorted(c.Entries()))
	}

	// Everything farther than 2 units is behind the occluder.
	assert.Equal(t, []uint32{3, 4}, sets[0])
	assert.Equal(t, counts[0], counts[1])
	assert.Equal(t, counts[0], counts[2])
	assert.Equal(t, sets[0], sets[2])
}

func TestCountMatchesEntriesUnderContention(t *testing.T) {
	store := core.NewRandomCloud(200_000, 500, 0.5, 11)
	vp := core.NewCameraState().WorldToClip(16.0 / 9.0)
	params := Params{ViewProj: vp, Clip: core.ClipZeroToOne, Pyramid: occluderPyramid(t, 0.01)}

	serial, err := NewCuller(store, core.ReversedZ, Config{}, dispatch.SerialDispatcher{})
	require.NoError(t, err)
	serial.ClearArgs()
	_, err = serial.Cull(context.Background(), params)
	require.NoError(t, err)

	parallel, err := NewCuller(store, core.ReversedZ, Config{WorkGroupSize: 32}, dispatch.NewPoolDispatcher(8))
	require.NoError(t, err)
	for frame := 0; frame < 4; frame++ {
		parallel.ClearArgs()
		_, err = parallel.Cull(context.Background(), params)
		require.NoError(t, err)

		entries := parallel.Entries()
		require.Len(t, entries, int(parallel.Args().InstanceCount()))
		seen := make(map[uint32]bool, len(entries))
		for _, e := range entries {
			require.False(t, seen[e], "instance %d written twice", e)
			seen[e] = true
		}
		assert.Equal(t, sorted(serial.Entries()), sorted(entries))
	}
}

func TestCapacityOverflow(t *testing.T) {
	instances := []core.Instance{
		{Position: mgl32.Vec3{0, 0, -10}, Radius: 1},
		{Position: mgl32.Vec3{1, 0, -10}, Radius: 1},
	}
	c := newCuller(t, instances, nil)
	params := Params{ViewProj: testViewProj(), Clip: core.ClipZeroToOne}

	c.ClearArgs()
	_, err := c.Cull(context.Background(), params)
	require.NoError(t, err)

	// A second pass without clearing would need four slots.
	_, err = c.Cull(context.Background(), params)
	assert.ErrorIs(t, err, core.ErrCapacityOverflow)
	assert.Len(t, c.Entries(), 2)

	small, err := NewCuller(core.NewInstanceStore(instances), core.ReversedZ, Config{Capacity: 1}, nil)
	require.NoError(t, err)
	small.ClearArgs()
	_, err = small.Cull(context.Background(), params)
	assert.ErrorIs(t, err, core.ErrCapacityOverflow)
}

func TestCullRejectsMismatchedPyramid(t *testing.T) {
	layout, err := pyramid.NewLayout(64, 64, 0, 0)
	require.NoError(t, err)
	p, err := pyramid.New(layout, core.ConventionalZ)
	require.NoError(t, err)

	c := newCuller(t, []core.Instance{{Position: mgl32.Vec3{0, 0, -5}, Radius: 1}}, nil)
	_, err = c.Cull(context.Background(), Params{ViewProj: testViewProj(), Pyramid: p})
	assert.Error(t, err)
}

func TestDrawArgs(t *testing.T) {
	a := NewDrawArgs(36, 6, -2)
	a.increment()
	a.increment()

	snap := a.Snapshot()
	assert.Equal(t, DrawIndexedIndirect{IndexCount: 36, InstanceCount: 2, FirstIndex: 6, BaseVertex: -2}, snap)
	assert.Equal(t, uint32(0), a.Template().InstanceCount)

	buf := snap.Marshal()
	require.Len(t, buf, DrawIndexedIndirectSize)
	assert.Equal(t, []byte{36, 0, 0, 0, 2, 0, 0, 0}, buf[:8])
	back, ok := UnmarshalDrawIndexedIndirect(buf)
	require.True(t, ok)
	assert.Equal(t, snap, back)

	a.reset()
	assert.Equal(t, uint32(0), a.InstanceCount())
}
