// Package device executes recorded frames on a goroutine of their own, the
// way a GPU queue executes command buffers while the host records the next
// frame.
package device

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gekko3d/sdfcull/cullrt/rt/core"
)

var ErrQueueClosed = errors.New("device queue closed")

// CommandStream is the recorded work of one frame.
type CommandStream interface {
	Execute(ctx context.Context) error
}

// CommandFunc adapts a function to CommandStream.
type CommandFunc func(ctx context.Context) error

func (f CommandFunc) Execute(ctx context.Context) error { return f(ctx) }

// Signaler is told the outcome of a submission, typically a frame fence.
type Signaler interface {
	Signal(err error)
}

type submission struct {
	stream CommandStream
	done   Signaler
}

// Queue runs submissions strictly in order. The first failing stream loses
// the device: every later submission is rejected with the same error.
type Queue struct {
	work chan submission
	done chan struct{}

	// sendMu guards closed and sends on work; lostMu only guards lost, so the
	// executing goroutine never waits on a blocked Submit.
	sendMu sync.Mutex
	closed bool
	lostMu sync.Mutex
	lost   error
}

// NewQueue starts a queue accepting up to depth pending submissions before
// Submit blocks.
func NewQueue(depth int) *Queue {
	q := &Queue{
		work: make(chan submission, max(depth, 1)),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	// Work submitted before the device was lost still retires, with the loss.
	ctx := context.Background()
	for s := range q.work {
		if err := q.Lost(); err != nil {
			s.done.Signal(err)
			continue
		}
		err := execute(ctx, s.stream)
		if err != nil {
			err = q.markLost(err)
		}
		s.done.Signal(err)
	}
}

func execute(ctx context.Context, cs CommandStream) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("command stream panicked: %v", r)
		}
	}()
	return cs.Execute(ctx)
}

func (q *Queue) markLost(err error) error {
	q.lostMu.Lock()
	defer q.lostMu.Unlock()
	if q.lost == nil {
		if errors.Is(err, core.ErrDeviceLost) {
			q.lost = err
		} else {
			q.lost = fmt.Errorf("%w: %w", core.ErrDeviceLost, err)
		}
	}
	return q.lost
}

// Lost returns the error that lost the device, if any.
func (q *Queue) Lost() error {
	q.lostMu.Lock()
	defer q.lostMu.Unlock()
	return q.lost
}

// Submit enqueues cs; done is signaled once it has executed.
func (q *Queue) Submit(cs CommandStream, done Signaler) error {
	if err := q.Lost(); err != nil {
		return err
	}
	q.sendMu.Lock()
	defer q.sendMu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.work <- submission{stream: cs, done: done}
	return nil
}

// Close stops accepting work and waits for pending submissions to retire.
// If ctx ends first the executor is abandoned, still running whatever stream
// it is stuck in, and ctx's error is returned.
func (q *Queue) Close(ctx context.Context) error {
	q.sendMu.Lock()
	if !q.closed {
		q.closed = true
		close(q.work)
	}
	q.sendMu.Unlock()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("close device queue: %w", ctx.Err())
	}
}
