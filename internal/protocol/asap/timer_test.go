package asap

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryTimer_ScheduleAndFire(t *testing.T) {
	clk := clock.NewMock()
	var rt retryTimer
	fired := make(chan uint64, 1)

	rt.schedule(clk, time.Second, func(gen uint64) { fired <- gen })
	assert.True(t, rt.pending())

	clk.Add(time.Second)
	select {
	case gen := <-fired:
		assert.True(t, rt.fire(gen))
		assert.False(t, rt.pending())
		assert.False(t, rt.fire(gen), "a generation fires once")
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestRetryTimer_RescheduleCancelsPrevious(t *testing.T) {
	clk := clock.NewMock()
	var rt retryTimer
	var calls atomic.Int32

	for i := 0; i < 5; i++ {
		rt.schedule(clk, time.Second, func(uint64) { calls.Add(1) })
	}
	clk.Add(time.Second)

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return calls.Load() > 1 }, 30*time.Millisecond, 5*time.Millisecond)
}

func TestRetryTimer_StaleGeneration(t *testing.T) {
	clk := clock.NewMock()
	var rt retryTimer

	rt.schedule(clk, time.Second, func(uint64) {})
	stale := rt.gen
	rt.cancel()
	assert.False(t, rt.pending())
	assert.False(t, rt.fire(stale))

	rt.schedule(clk, time.Second, func(uint64) {})
	assert.False(t, rt.fire(stale))
	assert.True(t, rt.fire(rt.gen))
}
