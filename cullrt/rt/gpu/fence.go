package gpu

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/sdfcull/cullrt/rt/core"
	"github.com/gekko3d/sdfcull/cullrt/rt/visibility"
)

type fenceState uint8

const (
	fenceSignaled fenceState = iota
	fencePending             // reset, nothing submitted yet
	fenceMapping             // MapAsync issued
	fenceMapped              // callback fired, range not read yet
)

const pollInterval = 200 * time.Microsecond

// ReadbackFence is a ring.Fence backed by the frame's draw-argument
// readback buffer: the map callback only fires once every command before the
// copy has executed, so a completed map means the frame has retired.
type ReadbackFence struct {
	device *wgpu.Device
	buffer *wgpu.Buffer

	mu    sync.Mutex
	state fenceState
	err   error
	args  visibility.DrawIndexedIndirect
}

func NewReadbackFence(device *wgpu.Device, label string) (*ReadbackFence, error) {
	buf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  visibility.DrawIndexedIndirectSize,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrResourceCreation, label, err)
	}
	return &ReadbackFence{device: device, buffer: buf}, nil
}

func (f *ReadbackFence) Buffer() *wgpu.Buffer { return f.buffer }

// Args returns the draw arguments read back by the last signaled frame.
func (f *ReadbackFence) Args() visibility.DrawIndexedIndirect {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.args
}

// Arm requests the mapping. Call it right after the queue submit that
// contains the copy into Buffer.
func (f *ReadbackFence) Arm() {
	f.mu.Lock()
	if f.state != fencePending {
		f.mu.Unlock()
		return
	}
	f.state = fenceMapping
	f.mu.Unlock()

	f.buffer.MapAsync(wgpu.MapModeRead, 0, visibility.DrawIndexedIndirectSize, func(status wgpu.BufferMapAsyncStatus) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.state != fenceMapping {
			// Signaled from elsewhere in the meantime.
			if status == wgpu.BufferMapAsyncStatusSuccess {
				f.buffer.Unmap()
			}
			return
		}
		if status != wgpu.BufferMapAsyncStatusSuccess {
			f.err = fmt.Errorf("%w: readback map failed: %v", core.ErrDeviceLost, status)
			f.state = fenceSignaled
			return
		}
		f.state = fenceMapped
	})
}

// resolve finishes a completed mapping. Caller holds mu.
func (f *ReadbackFence) resolve() {
	if f.state != fenceMapped {
		return
	}
	data := f.buffer.GetMappedRange(0, visibility.DrawIndexedIndirectSize)
	args, ok := visibility.UnmarshalDrawIndexedIndirect(data)
	f.buffer.Unmap()
	if ok {
		f.args = args
	} else {
		f.err = fmt.Errorf("%w: short draw-argument readback (%d bytes)", core.ErrDeviceLost, len(data))
	}
	f.state = fenceSignaled
}

func (f *ReadbackFence) poll() (done bool, err error) {
	f.device.Poll(false, nil)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolve()
	return f.state == fenceSignaled, f.err
}

func (f *ReadbackFence) Wait(ctx context.Context, timeout time.Duration) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		if done, err := f.poll(); done {
			return err
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return fmt.Errorf("%w: %w: readback not mapped after %s", core.ErrDeviceLost, core.ErrSynchronizationTimeout, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (f *ReadbackFence) Signal(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == fenceSignaled {
		return
	}
	f.err = err
	f.state = fenceSignaled
}

func (f *ReadbackFence) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == fenceSignaled {
		f.state = fencePending
		f.err = nil
	}
}

func (f *ReadbackFence) Signaled() bool {
	done, _ := f.poll()
	return done
}

func (f *ReadbackFence) Release() {
	if f.buffer != nil {
		f.buffer.Release()
	}
}
