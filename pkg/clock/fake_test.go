package clock_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-stepchain/pkg/clock"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeAfterFuncFiresOnAdvance(t *testing.T) {
	t.Parallel()

	fake := clock.NewFake(epoch)
	var fired atomic.Int32
	fake.AfterFunc(50*time.Millisecond, func() { fired.Add(1) })

	fake.Advance(49 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
	assert.Equal(t, 1, fake.PendingCount())

	fake.Advance(time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
	assert.Equal(t, 0, fake.PendingCount())

	fake.Advance(time.Hour)
	assert.Equal(t, int32(1), fired.Load())
}

func TestFakeStop(t *testing.T) {
	t.Parallel()

	fake := clock.NewFake(epoch)
	var fired atomic.Bool
	timer := fake.AfterFunc(time.Second, func() { fired.Store(true) })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	fake.Advance(2 * time.Second)
	assert.False(t, fired.Load())
}

func TestFakeStopAfterFire(t *testing.T) {
	t.Parallel()

	fake := clock.NewFake(epoch)
	timer := fake.AfterFunc(time.Second, func() {})
	fake.Advance(time.Second)

	assert.False(t, timer.Stop())
}

func TestFakeDeadlineOrder(t *testing.T) {
	t.Parallel()

	fake := clock.NewFake(epoch)
	var order []int
	fake.AfterFunc(3*time.Second, func() { order = append(order, 3) })
	fake.AfterFunc(time.Second, func() { order = append(order, 1) })
	fake.AfterFunc(2*time.Second, func() { order = append(order, 2) })

	fake.Advance(5 * time.Second)
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, epoch.Add(5*time.Second), fake.Now())
}

func TestFakeNonPositiveDuration(t *testing.T) {
	t.Parallel()

	fake := clock.NewFake(epoch)
	fired := false
	fake.AfterFunc(0, func() { fired = true })
	assert.True(t, fired)
}

func TestFakeWaitForTimers(t *testing.T) {
	t.Parallel()

	fake := clock.NewFake(epoch)
	done := make(chan struct{})

	go func() {
		fake.AfterFunc(time.Second, func() { close(done) })
	}()

	fake.WaitForTimers(1)
	fake.Advance(time.Second)

	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "timer did not fire")
	}
}

func TestNilTimerStop(t *testing.T) {
	t.Parallel()

	var timer *clock.Timer
	assert.False(t, timer.Stop())
}

func TestRealAfterFunc(t *testing.T) {
	t.Parallel()

	done := make(chan struct{})
	clock.Real().AfterFunc(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "real timer did not fire")
	}
}
