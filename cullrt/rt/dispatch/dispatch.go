// Package dispatch runs compute kernels as host-side parallel loops. A kernel
// is invoked once per worker group; groups run concurrently with no ordering
// guarantee, like workgroups of a GPU compute dispatch.
package dispatch

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

// Kernel processes one worker group.
type Kernel func(group uint32)

type Dispatcher interface {
	// Dispatch runs kernel for every group in [0, groups) and returns once all
	// of them have finished. A dispatch that has started always runs to
	// completion; ctx is only checked before the first group is issued.
	Dispatch(ctx context.Context, groups uint32, kernel Kernel) error
	// Workers is the number of groups that may run at the same time.
	Workers() int
}

// Groups returns the number of groups of size needed to cover n items.
func Groups(n, size uint32) uint32 {
	if size == 0 {
		return 0
	}
	return (n + size - 1) / size
}

// PoolDispatcher spreads groups over a reusable worker pool. Workers are kept
// alive across frames so a dispatch costs no goroutine spawns.
type PoolDispatcher struct {
	workers int
	pool    worker.DynamicWorkerPool
	taskID  atomic.Int64
}

// NewPoolDispatcher creates a dispatcher with the given number of workers;
// workers <= 0 picks one per CPU, leaving one for the recording thread.
func NewPoolDispatcher(workers int) *PoolDispatcher {
	if workers <= 0 {
		workers = max(runtime.NumCPU()-1, 1)
	}
	return &PoolDispatcher{
		workers: workers,
		// One task per worker per dispatch; the queue holds a few dispatches.
		pool: worker.NewDynamicWorkerPool(workers, workers*4, 1*time.Second),
	}
}

func (d *PoolDispatcher) Workers() int { return d.workers }

func (d *PoolDispatcher) Dispatch(ctx context.Context, groups uint32, kernel Kernel) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if groups == 0 {
		return nil
	}

	tasks := min(d.workers, int(groups))
	var (
		next  atomic.Uint32
		fault atomic.Value
		wg    sync.WaitGroup
	)
	// A WaitGroup joins the dispatch; pool.Wait only returns once workers
	// idle out, which is far too late for a per-frame barrier.
	wg.Add(tasks)
	for i := 0; i < tasks; i++ {
		d.pool.SubmitTask(worker.Task{
			ID: int(d.taskID.Add(1)),
			Do: func() (any, error) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						fault.CompareAndSwap(nil, fmt.Sprint(r))
					}
				}()
				for {
					g := next.Add(1) - 1
					if g >= groups {
						return nil, nil
					}
					kernel(g)
				}
			},
		})
	}
	wg.Wait()

	if msg := fault.Load(); msg != nil {
		return fmt.Errorf("dispatch: kernel panicked: %s", msg)
	}
	return nil
}

// SerialDispatcher runs groups in order on the calling goroutine. Useful when
// stepping through a kernel in a debugger.
type SerialDispatcher struct{}

func (SerialDispatcher) Workers() int { return 1 }

func (SerialDispatcher) Dispatch(ctx context.Context, groups uint32, kernel Kernel) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch: kernel panicked: %v", r)
		}
	}()
	for g := uint32(0); g < groups; g++ {
		kernel(g)
	}
	return nil
}
