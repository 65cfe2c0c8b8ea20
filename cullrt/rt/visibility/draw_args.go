package visibility

import (
	"encoding/binary"
	"sync/atomic"
)

// DrawIndexedIndirectSize is the byte size of one indexed indirect draw
// record as consumed by DrawIndexedIndirect.
const DrawIndexedIndirectSize = 20

// DrawIndexedIndirect mirrors the GPU indirect draw record.
type DrawIndexedIndirect struct {
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	BaseVertex    int32
	FirstInstance uint32
}

// Marshal encodes the record in the little-endian layout of the indirect
// buffer.
func (a DrawIndexedIndirect) Marshal() []byte {
	buf := make([]byte, DrawIndexedIndirectSize)
	binary.LittleEndian.PutUint32(buf[0:4], a.IndexCount)
	binary.LittleEndian.PutUint32(buf[4:8], a.InstanceCount)
	binary.LittleEndian.PutUint32(buf[8:12], a.FirstIndex)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(a.BaseVertex))
	binary.LittleEndian.PutUint32(buf[16:20], a.FirstInstance)
	return buf
}

// UnmarshalDrawIndexedIndirect decodes a record read back from the GPU.
func UnmarshalDrawIndexedIndirect(buf []byte) (DrawIndexedIndirect, bool) {
	if len(buf) < DrawIndexedIndirectSize {
		return DrawIndexedIndirect{}, false
	}
	return DrawIndexedIndirect{
		IndexCount:    binary.LittleEndian.Uint32(buf[0:4]),
		InstanceCount: binary.LittleEndian.Uint32(buf[4:8]),
		FirstIndex:    binary.LittleEndian.Uint32(buf[8:12]),
		BaseVertex:    int32(binary.LittleEndian.Uint32(buf[12:16])),
		FirstInstance: binary.LittleEndian.Uint32(buf[16:20]),
	}, true
}

// DrawArgs is the indirect argument buffer of the instanced draw. Everything
// but the instance count is fixed at creation. The count is only written by
// the culler of this package.
type DrawArgs struct {
	indexCount    uint32
	firstIndex    uint32
	baseVertex    int32
	firstInstance uint32

	instanceCount atomic.Uint32
}

// NewDrawArgs describes one mesh of indexCount indices drawn per visible
// instance. firstInstance is always 0 since entries index from the start of
// the visibility buffer.
func NewDrawArgs(indexCount, firstIndex uint32, baseVertex int32) *DrawArgs {
	return &DrawArgs{
		indexCount: indexCount,
		firstIndex: firstIndex,
		baseVertex: baseVertex,
	}
}

func (a *DrawArgs) InstanceCount() uint32 { return a.instanceCount.Load() }

func (a *DrawArgs) reset() { a.instanceCount.Store(0) }

func (a *DrawArgs) increment() { a.instanceCount.Add(1) }

// Snapshot reads the record. It must only be taken once the culling pass that
// last wrote the count has completed.
func (a *DrawArgs) Snapshot() DrawIndexedIndirect {
	return DrawIndexedIndirect{
		IndexCount:    a.indexCount,
		InstanceCount: a.instanceCount.Load(),
		FirstIndex:    a.firstIndex,
		BaseVertex:    a.baseVertex,
		FirstInstance: a.firstInstance,
	}
}

// Template is the record with a zero instance count, i.e. the contents the
// argument buffer is reset to before every culling pass.
func (a *DrawArgs) Template() DrawIndexedIndirect {
	s := a.Snapshot()
	s.InstanceCount = 0
	return s
}
