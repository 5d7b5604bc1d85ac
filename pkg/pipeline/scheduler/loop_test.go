package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/askiada/go-stepchain/pkg/pipeline/scheduler"
)

func runLoop(t *testing.T, loop *scheduler.Loop) {
	t.Helper()

	done := make(chan error, 1)
	go func() {
		done <- loop.Run(context.Background())
	}()
	t.Cleanup(func() {
		loop.Close()
		assert.NoError(t, <-done)
	})
}

func TestLoopRunsTasksInOrder(t *testing.T) {
	t.Parallel()

	loop := scheduler.New()

	var got []int
	done := make(chan struct{})
	for i := 0; i < 3; i++ {
		i := i
		require.NoError(t, loop.Post(func() { got = append(got, i) }))
	}
	require.NoError(t, loop.Post(func() { close(done) }))
	assert.Equal(t, 4, loop.Pending())

	runLoop(t, loop)
	<-done
	assert.Equal(t, []int{0, 1, 2}, got)
}

func TestLoopPostFromTaskIsDeferred(t *testing.T) {
	t.Parallel()

	loop := scheduler.New()
	runLoop(t, loop)

	var got []string
	done := make(chan struct{})
	require.NoError(t, loop.Post(func() {
		assert.NoError(t, loop.Post(func() {
			got = append(got, "inner")
			close(done)
		}))
		got = append(got, "outer")
	}))

	<-done
	assert.Equal(t, []string{"outer", "inner"}, got)
}

func TestLoopConcurrentPosters(t *testing.T) {
	t.Parallel()

	loop := scheduler.New()
	runLoop(t, loop)

	const posters, perPoster = 8, 50

	var (
		mu    sync.Mutex
		count int
		wg    sync.WaitGroup
	)
	wg.Add(posters * perPoster)

	errGrp := errgroup.Group{}
	for p := 0; p < posters; p++ {
		errGrp.Go(func() error {
			for i := 0; i < perPoster; i++ {
				err := loop.Post(func() {
					mu.Lock()
					count++
					mu.Unlock()
					wg.Done()
				})
				if err != nil {
					return err
				}
			}

			return nil
		})
	}
	require.NoError(t, errGrp.Wait())
	wg.Wait()
	assert.Equal(t, posters*perPoster, count)
}

func TestLoopClose(t *testing.T) {
	t.Parallel()

	loop := scheduler.New()
	require.NoError(t, loop.Post(func() {}))
	loop.Close()
	loop.Close()

	assert.ErrorIs(t, loop.Post(func() {}), scheduler.ErrLoopClosed)
	assert.Equal(t, 0, loop.Pending())
	assert.NoError(t, loop.Run(context.Background()))
}

func TestLoopContextCancel(t *testing.T) {
	t.Parallel()

	loop := scheduler.New()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, loop.Run(ctx), context.DeadlineExceeded)
}

func TestLoopRunTwice(t *testing.T) {
	t.Parallel()

	loop := scheduler.New()
	started := make(chan struct{})
	require.NoError(t, loop.Post(func() { close(started) }))
	runLoop(t, loop)
	<-started

	assert.ErrorIs(t, loop.Run(context.Background()), scheduler.ErrLoopRunning)
}

func TestLoopNilTask(t *testing.T) {
	t.Parallel()

	assert.Error(t, scheduler.New().Post(nil))
}
