package dispatch

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroups(t *testing.T) {
	assert.Equal(t, uint32(0), Groups(0, 64))
	assert.Equal(t, uint32(1), Groups(1, 64))
	assert.Equal(t, uint32(1), Groups(64, 64))
	assert.Equal(t, uint32(2), Groups(65, 64))
	assert.Equal(t, uint32(0), Groups(10, 0))
}

func dispatchers() map[string]Dispatcher {
	return map[string]Dispatcher{
		"pool":   NewPoolDispatcher(4),
		"serial": SerialDispatcher{},
	}
}

func TestDispatchRunsEveryGroupOnce(t *testing.T) {
	for name, d := range dispatchers() {
		t.Run(name, func(t *testing.T) {
			const groups = 1000
			var hits [groups]atomic.Int32
			err := d.Dispatch(context.Background(), groups, func(g uint32) {
				hits[g].Add(1)
			})
			require.NoError(t, err)
			for g := range hits {
				require.Equal(t, int32(1), hits[g].Load(), "group %d", g)
			}
		})
	}
}

func TestDispatchReusedAcrossFrames(t *testing.T) {
	d := NewPoolDispatcher(3)
	var total atomic.Int64
	for frame := 0; frame < 50; frame++ {
		require.NoError(t, d.Dispatch(context.Background(), 17, func(uint32) { total.Add(1) }))
	}
	assert.Equal(t, int64(50*17), total.Load())
}

func TestDispatchCancelledBeforeStart(t *testing.T) {
	for name, d := range dispatchers() {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			called := false
			err := d.Dispatch(ctx, 8, func(uint32) { called = true })
			assert.ErrorIs(t, err, context.Canceled)
			assert.False(t, called)
		})
	}
}

func TestDispatchReportsPanics(t *testing.T) {
	for name, d := range dispatchers() {
		t.Run(name, func(t *testing.T) {
			err := d.Dispatch(context.Background(), 4, func(g uint32) {
				if g == 2 {
					panic("boom")
				}
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "boom")
		})
	}
}

func TestDefaultWorkerCount(t *testing.T) {
	assert.GreaterOrEqual(t, NewPoolDispatcher(0).Workers(), 1)
}
