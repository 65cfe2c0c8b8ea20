// Package ring rotates a fixed set of frame slots so the host can record
// frame N+1 while frame N is still executing.
package ring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const DefaultDepth = 3

var (
	ErrSlotBusy     = errors.New("frame slot is still recording")
	ErrNotRecording = errors.New("frame slot is not recording")
)

type State uint8

const (
	Idle State = iota
	Recording
	InFlight
)

func (s State) String() string {
	switch s {
	case Recording:
		return "recording"
	case InFlight:
		return "in-flight"
	}
	return "idle"
}

// Slot is one reusable {payload, fence} pair. Payload holds whatever the
// frame records into, e.g. a command stream and its uniforms.
type Slot[T any] struct {
	Index   int
	Payload T
	Fence   Fence

	state State
	frame uint64
	// acquiring is set while a caller waits on the fence to record into
	// the slot.
	acquiring bool
}

// Frame is the sequence number of the frame last recorded into the slot.
func (s *Slot[T]) Frame() uint64 { return s.frame }

type Ring[T any] struct {
	mu      sync.Mutex
	slots   []*Slot[T]
	next    int
	frame   uint64
	timeout time.Duration
	lost    error
}

// New creates a ring of depth slots. newSlot builds each slot's payload and
// fence; fences must start signaled.
func New[T any](depth int, timeout time.Duration, newSlot func(i int) (T, Fence, error)) (*Ring[T], error) {
	if depth < 2 {
		return nil, fmt.Errorf("frame ring depth %d: need at least 2 slots", depth)
	}
	r := &Ring[T]{slots: make([]*Slot[T], depth), timeout: timeout}
	for i := range r.slots {
		payload, fence, err := newSlot(i)
		if err != nil {
			return nil, fmt.Errorf("frame slot %d: %w", i, err)
		}
		r.slots[i] = &Slot[T]{Index: i, Payload: payload, Fence: fence}
	}
	return r, nil
}

func (r *Ring[T]) Depth() int { return len(r.slots) }

// Lost returns the fatal error that stopped the ring, if any.
func (r *Ring[T]) Lost() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lost
}

// Acquire waits for the next slot in round-robin order to retire and hands it
// out for recording. The slot is reserved before the wait, so concurrent
// callers never share a slot: a second caller reaching a reserved slot gets
// ErrSlotBusy. A failed wait is fatal: the ring stays lost and every later
// call returns the same error. Cancelling ctx only abandons this wait and
// releases the reservation.
func (r *Ring[T]) Acquire(ctx context.Context) (*Slot[T], error) {
	r.mu.Lock()
	if r.lost != nil {
		r.mu.Unlock()
		return nil, r.lost
	}
	s := r.slots[r.next]
	if s.state == Recording || s.acquiring {
		r.mu.Unlock()
		return nil, fmt.Errorf("acquire slot %d: %w", s.Index, ErrSlotBusy)
	}
	s.acquiring = true
	r.next = (r.next + 1) % len(r.slots)
	r.mu.Unlock()

	if err := s.Fence.Wait(ctx, r.timeout); err != nil {
		r.release(s)
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil, err
		}
		return nil, r.fail(fmt.Errorf("slot %d (frame %d): %w", s.Index, s.frame, err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	s.acquiring = false
	if r.lost != nil {
		return nil, r.lost
	}
	r.frame++
	s.state = Recording
	s.frame = r.frame
	return s, nil
}

// release drops an abandoned reservation. The round-robin cursor only steps
// back if no other caller has reserved a slot since.
func (r *Ring[T]) release(s *Slot[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.acquiring = false
	if r.next == (s.Index+1)%len(r.slots) {
		r.next = s.Index
	}
}

// Submit arms the slot's fence and hands it to submit, which must arrange for
// the fence to be signaled once the recorded work has executed. If submit
// fails the fence is signaled with its error and the ring is lost.
func (r *Ring[T]) Submit(s *Slot[T], submit func(Fence) error) error {
	r.mu.Lock()
	if r.lost != nil {
		r.mu.Unlock()
		return r.lost
	}
	if s.state != Recording {
		r.mu.Unlock()
		return fmt.Errorf("submit slot %d (%s): %w", s.Index, s.state, ErrNotRecording)
	}
	s.Fence.Reset()
	s.state = InFlight
	r.mu.Unlock()

	if err := submit(s.Fence); err != nil {
		s.Fence.Signal(err)
		return r.fail(fmt.Errorf("submit slot %d: %w", s.Index, err))
	}
	return nil
}

// State reports the slot's position in its lifecycle. An in-flight slot
// whose fence has signaled is idle.
func (r *Ring[T]) State(i int) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.slots[i]
	if s.state == InFlight && s.Fence.Signaled() {
		s.state = Idle
	}
	return s.state
}

// InFlight counts slots whose fence has not signaled yet.
func (r *Ring[T]) InFlight() int {
	n := 0
	for i := range r.slots {
		if r.State(i) == InFlight {
			n++
		}
	}
	return n
}

// Drain waits for every in-flight slot and returns the first error.
func (r *Ring[T]) Drain(ctx context.Context) error {
	if err := r.Lost(); err != nil {
		return err
	}
	for _, s := range r.slots {
		r.mu.Lock()
		state := s.state
		r.mu.Unlock()
		if state != InFlight {
			continue
		}
		if err := s.Fence.Wait(ctx, r.timeout); err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return err
			}
			return r.fail(fmt.Errorf("drain slot %d: %w", s.Index, err))
		}
		r.mu.Lock()
		s.state = Idle
		r.mu.Unlock()
	}
	return r.Lost()
}

func (r *Ring[T]) fail(err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lost == nil {
		r.lost = err
	}
	return r.lost
}
