package gpu

import (
	"encoding/binary"
	"math"

	"github.com/gekko3d/sdfcull/cullrt/rt/core"
	"github.com/gekko3d/sdfcull/cullrt/rt/pyramid"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/exp/constraints"
)

const (
	// InstanceStride is one vec4<f32>: xyz center, w radius.
	InstanceStride = 16
	// CullUniformsSize matches CullUniforms in cull.wgsl and draw.wgsl.
	CullUniformsSize = 96
	// HiZParamsSize matches HiZParams in hiz_seed.wgsl and hiz_reduce.wgsl.
	HiZParamsSize = 16
	// EntryStride is one u32 instance index.
	EntryStride = 4

	hizGroupSize = 8
)

// BoxIndices indexes the 8 box corners generated in draw.wgsl, where bit 0 of
// the vertex index selects +X, bit 1 +Y and bit 2 +Z.
var BoxIndices = [36]uint32{
	0, 2, 6, 0, 6, 4, // -X
	1, 5, 7, 1, 7, 3, // +X
	0, 4, 5, 0, 5, 1, // -Y
	2, 3, 7, 2, 7, 6, // +Y
	0, 1, 3, 0, 3, 2, // -Z
	4, 6, 7, 4, 7, 5, // +Z
}

// EncodeInstances packs the store into the instance storage buffer layout.
func EncodeInstances(s *core.InstanceStore) []byte {
	all := s.All()
	buf := make([]byte, len(all)*InstanceStride)
	for i, inst := range all {
		o := i * InstanceStride
		putF32(buf[o:], inst.Position[0])
		putF32(buf[o+4:], inst.Position[1])
		putF32(buf[o+8:], inst.Position[2])
		putF32(buf[o+12:], inst.Radius)
	}
	return buf
}

func EncodeIndices(idx []uint32) []byte {
	buf := make([]byte, len(idx)*4)
	for i, v := range idx {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return buf
}

// CullUniforms is the per-frame uniform block shared by the cull and draw
// shaders.
type CullUniforms struct {
	ViewProj      mgl32.Mat4
	PyramidWidth  uint32
	PyramidHeight uint32
	LevelCount    uint32
	InstanceCount uint32
	Convention    core.DepthConvention
	Clip          core.ClipDepthRange
	Capacity      uint32
}

func NewCullUniforms(viewProj mgl32.Mat4, l pyramid.Layout, conv core.DepthConvention, clip core.ClipDepthRange, instances int) CullUniforms {
	return CullUniforms{
		ViewProj:      viewProj,
		PyramidWidth:  uint32(l.BaseWidth),
		PyramidHeight: uint32(l.BaseHeight),
		LevelCount:    uint32(l.Levels),
		InstanceCount: uint32(instances),
		Convention:    conv,
		Clip:          clip,
		Capacity:      uint32(instances),
	}
}

// Marshal lays the block out as std140-compatible bytes. mgl32 matrices are
// column-major like WGSL's mat4x4.
func (u CullUniforms) Marshal() []byte {
	buf := make([]byte, CullUniformsSize)
	for i, v := range u.ViewProj {
		putF32(buf[i*4:], v)
	}
	le := binary.LittleEndian
	le.PutUint32(buf[64:], u.PyramidWidth)
	le.PutUint32(buf[68:], u.PyramidHeight)
	le.PutUint32(buf[72:], u.LevelCount)
	le.PutUint32(buf[76:], u.InstanceCount)
	le.PutUint32(buf[80:], boolU32(u.Convention == core.ReversedZ))
	le.PutUint32(buf[84:], boolU32(u.Clip == core.ClipMinusOneToOne))
	le.PutUint32(buf[88:], u.Capacity)
	return buf
}

func EncodeHiZParams(conv core.DepthConvention) []byte {
	buf := make([]byte, HiZParamsSize)
	binary.LittleEndian.PutUint32(buf, boolU32(conv == core.ReversedZ))
	return buf
}

// WorkGroups returns the number of groups of size covering n items.
func WorkGroups(n, size uint32) uint32 {
	if size == 0 {
		return 0
	}
	return nextMultipleOf(n, size) / size
}

func nextMultipleOf[T constraints.Integer](x, y T) T {
	if r := x % y; r != 0 {
		return x + y - r
	}
	return x
}

// HiZWorkGroups returns the 8x8 dispatch size for every pyramid level.
func HiZWorkGroups(l pyramid.Layout) [][2]uint32 {
	out := make([][2]uint32, l.Levels)
	for k := range out {
		w, h := l.LevelSize(k)
		out[k] = [2]uint32{WorkGroups(uint32(w), hizGroupSize), WorkGroups(uint32(h), hizGroupSize)}
	}
	return out
}

func putF32(b []byte, v float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
}

func boolU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
