package ring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gekko3d/sdfcull/cullrt/rt/core"
)

// Fence signals completion of the work submitted with it.
type Fence interface {
	// Wait blocks until the fence signals, timeout expires or ctx is done.
	// Expiry is reported as a lost device. The error passed to Signal, if
	// any, is returned.
	Wait(ctx context.Context, timeout time.Duration) error
	// Signal marks the work complete; err reports a failed submission.
	Signal(err error)
	// Reset arms the fence for a new submission.
	Reset()
	Signaled() bool
}

// HostFence is a Fence signaled from another goroutine.
type HostFence struct {
	mu   sync.Mutex
	done chan struct{}
	err  error
}

// NewHostFence creates a fence, optionally already signaled so the first wait
// on a fresh frame slot returns at once.
func NewHostFence(signaled bool) *HostFence {
	f := &HostFence{done: make(chan struct{})}
	if signaled {
		close(f.done)
	}
	return f
}

func (f *HostFence) channel() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

func (f *HostFence) Wait(ctx context.Context, timeout time.Duration) error {
	done := f.channel()
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	select {
	case <-done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.err
	case <-expired:
		return fmt.Errorf("%w: %w: fence not signaled after %s", core.ErrDeviceLost, core.ErrSynchronizationTimeout, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *HostFence) Signal(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.done:
		return
	default:
	}
	f.err = err
	close(f.done)
}

func (f *HostFence) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.done:
		f.done = make(chan struct{})
		f.err = nil
	default:
	}
}

func (f *HostFence) Signaled() bool {
	select {
	case <-f.channel():
		return true
	default:
		return false
	}
}
