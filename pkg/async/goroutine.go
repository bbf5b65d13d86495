package async

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"
)

// SafeGo runs fn in a goroutine with panic recovery and a deadline.
// A panic or error is logged and swallowed; the work is best-effort
// by contract, which is exactly what post-commit side effects like
// cache invalidation and reminder sends want.
//
//	SafeGo(context.WithoutCancel(ctx), 5*time.Second, "cache invalidation", func(ctx context.Context) error {
//	    return cache.InvalidateMother(ctx, motherID)
//	})
func SafeGo(parent context.Context, timeout time.Duration, job string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				log.Printf("[SafeGo] PANIC in %s: %v\nStack trace:\n%s",
					job, r, string(debug.Stack()))
			}
		}()

		if err := fn(ctx); err != nil {
			log.Printf("[SafeGo] Error in %s: %v", job, err)
		}
	}()
}

// WorkerPool runs queued jobs on a fixed number of goroutines, each
// job under its own deadline. Errors are buffered on a channel rather
// than aborting the pool; a mailbox backfill keeps going when one
// day's sync fails.
type WorkerPool struct {
	workers int
	job     string
	timeout time.Duration

	tasks    chan func(context.Context) error
	done     chan struct{}
	errs     chan error
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// NewWorkerPool starts the workers immediately. Shut the pool down
// when finished submitting or the goroutines stay parked on the queue.
func NewWorkerPool(ctx context.Context, workers int, job string, timeout time.Duration) *WorkerPool {
	ctx, cancel := context.WithCancel(ctx)

	p := &WorkerPool{
		workers: workers,
		job:     job,
		timeout: timeout,
		tasks:   make(chan func(context.Context) error, workers*2),
		done:    make(chan struct{}),
		errs:    make(chan error, workers*10),
		ctx:     ctx,
		cancel:  cancel,
	}

	go func() {
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				p.run(id)
			}(i)
		}
		wg.Wait()
		close(p.done)
	}()

	return p
}

// Submit queues one job. It fails once the pool has shut down.
func (p *WorkerPool) Submit(fn func(context.Context) error) error {
	select {
	case <-p.done:
		return fmt.Errorf("worker pool shut down")
	default:
	}

	// Shutdown may close the queue between the check above and the
	// send below; the recover turns that race into a no-op.
	defer func() {
		recover()
	}()

	select {
	case p.tasks <- fn:
		return nil
	case <-p.done:
		return fmt.Errorf("worker pool shut down")
	}
}

// Shutdown closes the queue, lets the workers drain it, and waits up
// to timeout before cancelling whatever is still running.
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	var shutdownErr error

	p.stopOnce.Do(func() {
		func() {
			// Batch closes the queue itself.
			defer func() { recover() }()
			close(p.tasks)
		}()

		select {
		case <-p.done:
			p.cancel()
		case <-time.After(timeout):
			p.cancel()
			shutdownErr = fmt.Errorf("worker pool shutdown timed out after %v", timeout)
		}
	})

	return shutdownErr
}

// Errors is the buffered error stream. Read it with a select; the
// workers drop errors rather than block when nobody drains it.
func (p *WorkerPool) Errors() <-chan error {
	return p.errs
}

func (p *WorkerPool) run(id int) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[WorkerPool] PANIC in worker %d (%s): %v\nStack trace:\n%s",
				id, p.job, r, string(debug.Stack()))
		}
	}()

	for {
		select {
		case <-p.ctx.Done():
			return

		case fn, ok := <-p.tasks:
			if !ok {
				return
			}

			ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
			func() {
				defer cancel()
				defer func() {
					if r := recover(); r != nil {
						p.report(fmt.Errorf("panic: %v", r))
					}
				}()

				if err := fn(ctx); err != nil {
					p.report(err)
				}
			}()
		}
	}
}

func (p *WorkerPool) report(err error) {
	select {
	case p.errs <- err:
	default:
		log.Printf("[WorkerPool] Error channel full, dropping error: %v", err)
	}
}

// Batch fans items out over a temporary pool and returns every error
// collected. Submission order is not completion order.
//
//	errs := Batch(ctx, days, 4, "mailbox backfill", time.Minute, func(ctx context.Context, day time.Time) error {
//	    return syncDay(ctx, day)
//	})
func Batch[T any](ctx context.Context, items []T, workers int, job string, timeout time.Duration,
	fn func(context.Context, T) error) []error {

	pool := NewWorkerPool(ctx, workers, job, timeout)
	defer pool.Shutdown(5 * time.Second)

	for _, item := range items {
		item := item
		if err := pool.Submit(func(ctx context.Context) error {
			return fn(ctx, item)
		}); err != nil {
			return []error{err}
		}
	}

	// Closing the queue lets the workers drain everything queued
	// before done fires.
	close(pool.tasks)
	<-pool.done
	pool.cancel()

	var errs []error
	for {
		select {
		case err := <-pool.errs:
			errs = append(errs, err)
		default:
			return errs
		}
	}
}
