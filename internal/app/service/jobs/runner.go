// Package jobs runs lifecycle work outside the request that asked for it.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/tenantmaster/pkg/config"
	"github.com/fatflowers/tenantmaster/pkg/logctx"
)

var (
	ErrQueueFull = errors.New("job queue is full")
	ErrStopped   = errors.New("job runner is stopped")
)

// Job is executed by one worker. ctx is detached from the submitter and is
// only cancelled when the runner stops.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
	// ctx carries the submitter's logging values.
	ctx context.Context
}

type Runner struct {
	log     *zap.SugaredLogger
	workers int
	queue   chan *Job

	mu      sync.RWMutex
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewRunner(log *zap.SugaredLogger, cfg *config.Config) *Runner {
	workers := cfg.Jobs.Workers
	if workers <= 0 {
		workers = 1
	}
	size := cfg.Jobs.QueueSize
	if size <= 0 {
		size = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{log: log, workers: workers, queue: make(chan *Job, size), ctx: ctx, cancel: cancel}
}

// Start launches the workers.
func (r *Runner) Start() {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.work(i)
	}
	r.log.Infow("job runner started", "workers", r.workers, "queue_size", cap(r.queue))
}

// Stop refuses new jobs, lets queued ones drain and waits for the workers
// until ctx expires, after which running jobs are cancelled.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	close(r.queue)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return fmt.Errorf("job runner stop: %w", ctx.Err())
	}
}

// Submit enqueues a job without blocking.
func (r *Runner) Submit(ctx context.Context, name string, run func(ctx context.Context) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		return ErrStopped
	}
	job := &Job{Name: name, Run: run, ctx: ctx}
	select {
	case r.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (r *Runner) work(id int) {
	defer r.wg.Done()
	for job := range r.queue {
		r.execute(id, job)
	}
}

func (r *Runner) execute(worker int, job *Job) {
	ctx := r.ctx
	if job.ctx != nil {
		ctx = context.WithoutCancel(job.ctx)
		var cancel context.CancelFunc
		ctx, cancel = mergeCancel(ctx, r.ctx)
		defer cancel()
	}
	log := logctx.FromCtx(ctx, r.log).With("job", job.Name, "worker", worker)
	defer func() {
		if p := recover(); p != nil {
			log.Errorw("job panicked", "panic", p, "stack", string(debug.Stack()))
		}
	}()
	log.Infow("job started")
	if err := job.Run(ctx); err != nil {
		log.Warnw("job failed", "err", err)
		return
	}
	log.Infow("job finished")
}

// mergeCancel returns ctx cancelled also when stop is cancelled.
func mergeCancel(ctx, stop context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	unregister := context.AfterFunc(stop, cancel)
	return ctx, func() {
		unregister()
		cancel()
	}
}

func registerLifecycle(lc fx.Lifecycle, r *Runner) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			r.Start()
			return nil
		},
		OnStop: r.Stop,
	})
}

var Module = fx.Options(
	fx.Provide(NewRunner),
	fx.Invoke(registerLifecycle),
)
