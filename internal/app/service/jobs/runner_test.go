package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/tenantmaster/pkg/config"
)

func newRunner(workers, size int) *Runner {
	return NewRunner(zap.NewNop().Sugar(), &config.Config{Jobs: config.JobsConfig{Workers: workers, QueueSize: size}})
}

func TestRunner_RunsJobs(t *testing.T) {
	r := newRunner(2, 8)
	r.Start()

	var n atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, r.Submit(context.Background(), "count", func(context.Context) error {
			n.Add(1)
			return nil
		}))
	}
	require.NoError(t, r.Stop(context.Background()))
	require.EqualValues(t, 5, n.Load())
}

func TestRunner_DetachesSubmitterCancellation(t *testing.T) {
	r := newRunner(1, 1)
	r.Start()
	defer r.Stop(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	require.NoError(t, r.Submit(ctx, "detached", func(jobCtx context.Context) error {
		time.Sleep(20 * time.Millisecond)
		done <- jobCtx.Err()
		return nil
	}))
	cancel()
	require.NoError(t, <-done)
}

func TestRunner_QueueFull(t *testing.T) {
	r := newRunner(1, 1)
	// workers not started, so the single slot stays taken
	require.NoError(t, r.Submit(context.Background(), "a", func(context.Context) error { return nil }))
	err := r.Submit(context.Background(), "b", func(context.Context) error { return nil })
	require.ErrorIs(t, err, ErrQueueFull)
}

func TestRunner_RecoversPanics(t *testing.T) {
	r := newRunner(1, 4)
	r.Start()

	var ran atomic.Bool
	require.NoError(t, r.Submit(context.Background(), "boom", func(context.Context) error { panic("boom") }))
	require.NoError(t, r.Submit(context.Background(), "fails", func(context.Context) error { return errors.New("nope") }))
	require.NoError(t, r.Submit(context.Background(), "after", func(context.Context) error {
		ran.Store(true)
		return nil
	}))
	require.NoError(t, r.Stop(context.Background()))
	require.True(t, ran.Load())
}

func TestRunner_SubmitAfterStop(t *testing.T) {
	r := newRunner(1, 1)
	r.Start()
	require.NoError(t, r.Stop(context.Background()))
	require.NoError(t, r.Stop(context.Background()))
	require.ErrorIs(t, r.Submit(context.Background(), "late", func(context.Context) error { return nil }), ErrStopped)
}

func TestRunner_StopTimeoutCancelsRunningJobs(t *testing.T) {
	r := newRunner(1, 1)
	r.Start()

	started := make(chan struct{})
	require.NoError(t, r.Submit(context.Background(), "long", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, r.Stop(ctx), context.DeadlineExceeded)
}
