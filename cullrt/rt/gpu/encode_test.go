package gpu

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gekko3d/sdfcull/cullrt/rt/core"
	"github.com/gekko3d/sdfcull/cullrt/rt/pyramid"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f32At(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

func TestEncodeInstances(t *testing.T) {
	store := core.NewInstanceStore([]core.Instance{
		{Position: mgl32.Vec3{1, 2, 3}, Radius: 0.5},
		{Position: mgl32.Vec3{-4, 5, -6}, Radius: 2},
	})
	buf := EncodeInstances(store)
	require.Len(t, buf, 2*InstanceStride)

	assert.Equal(t, float32(1), f32At(buf, 0))
	assert.Equal(t, float32(3), f32At(buf, 8))
	assert.Equal(t, float32(0.5), f32At(buf, 12))
	assert.Equal(t, float32(-4), f32At(buf, 16))
	assert.Equal(t, float32(2), f32At(buf, 28))
}

func TestCullUniformsLayout(t *testing.T) {
	layout, err := pyramid.NewLayout(1920, 1080, 0, 0)
	require.NoError(t, err)

	vp := core.ReversedZPerspective(mgl32.DegToRad(90), 16.0/9.0, 1)
	u := NewCullUniforms(vp, layout, core.ReversedZ, core.ClipZeroToOne, 1000)
	buf := u.Marshal()
	require.Len(t, buf, CullUniformsSize)

	// Column-major: element [col*4+row].
	for i := 0; i < 16; i++ {
		assert.Equal(t, vp[i], f32At(buf, i*4))
	}
	le := binary.LittleEndian
	assert.Equal(t, uint32(layout.BaseWidth), le.Uint32(buf[64:]))
	assert.Equal(t, uint32(layout.BaseHeight), le.Uint32(buf[68:]))
	assert.Equal(t, uint32(layout.Levels), le.Uint32(buf[72:]))
	assert.Equal(t, uint32(1000), le.Uint32(buf[76:]))
	assert.Equal(t, uint32(1), le.Uint32(buf[80:]), "reversed-z flag")
	assert.Equal(t, uint32(0), le.Uint32(buf[84:]), "zero-to-one clip")
	assert.Equal(t, uint32(1000), le.Uint32(buf[88:]))

	gl := NewCullUniforms(vp, layout, core.ConventionalZ, core.ClipMinusOneToOne, 1).Marshal()
	assert.Equal(t, uint32(0), le.Uint32(gl[80:]))
	assert.Equal(t, uint32(1), le.Uint32(gl[84:]))
}

func TestHiZParams(t *testing.T) {
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(EncodeHiZParams(core.ReversedZ)))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(EncodeHiZParams(core.ConventionalZ)))
}

func TestWorkGroups(t *testing.T) {
	assert.Equal(t, uint32(0), WorkGroups(0, 64))
	assert.Equal(t, uint32(1), WorkGroups(64, 64))
	assert.Equal(t, uint32(2), WorkGroups(65, 64))
	assert.Equal(t, uint32(16384), WorkGroups(1024*1024, 64))
	assert.Equal(t, uint32(0), WorkGroups(10, 0))

	layout, err := pyramid.NewLayout(1920, 1080, 0, 0)
	require.NoError(t, err)
	groups := HiZWorkGroups(layout)
	require.Len(t, groups, layout.Levels)
	assert.Equal(t, [2]uint32{64, 64}, groups[0])
	assert.Equal(t, [2]uint32{1, 1}, groups[len(groups)-1])
}

func TestBoxIndices(t *testing.T) {
	assert.Len(t, BoxIndices, 36)
	seen := make(map[uint32]int)
	for _, i := range BoxIndices {
		require.Less(t, i, uint32(8))
		seen[i]++
	}
	assert.Len(t, seen, 8, "every corner is used")

	// Each face's four corners share one fixed axis bit.
	for face := 0; face < 6; face++ {
		tri := BoxIndices[face*6 : face*6+6]
		and, or := uint32(7), uint32(0)
		for _, i := range tri {
			and &= i
			or |= i
		}
		assert.NotEqual(t, uint32(7), and^or, "face %d spans all axes", face)
	}

	buf := EncodeIndices(BoxIndices[:])
	require.Len(t, buf, 36*4)
	assert.Equal(t, BoxIndices[5], binary.LittleEndian.Uint32(buf[20:]))
}
