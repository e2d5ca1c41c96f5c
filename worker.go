package dfr

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// command is one serialized state transition the worker goroutine
// executes against the facade's single Session, in submission order.
// Only the worker ever reads or mutates session state; every Facade
// method that touches the session builds a command, sends it, and waits
// on done.
type command struct {
	run  func(ctx context.Context)
	done chan struct{}
}

// worker owns the facade's Session and drains cmds strictly in
// submission order: this is the engine's "total ordering of state
// transitions, no locking on the session" guarantee. Preview execution
// and export run on executorPool so the worker loop itself never blocks
// on them; opening and probing the source for a command runs on the
// worker.
type worker struct {
	cmds chan command
	pool *executorPool
	done chan struct{}
}

func newWorker(parallelism int) *worker {
	return &worker{
		cmds: make(chan command, 16),
		pool: newExecutorPool(parallelism),
		done: make(chan struct{}),
	}
}

// run drains cmds until ctx is cancelled, executing each command's run
// function before picking up the next. Intended to be started as
// `go w.run(ctx)` once, for the lifetime of the Facade.
func (w *worker) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-w.cmds:
			if !ok {
				return
			}
			c.run(ctx)
			close(c.done)
		}
	}
}

// submit enqueues fn to run on the worker goroutine and blocks until it
// completes, or ctx is cancelled first.
func (w *worker) submit(ctx context.Context, fn func(ctx context.Context)) error {
	c := command{run: fn, done: make(chan struct{})}
	select {
	case w.cmds <- c:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// executorPool bounds how many preview/export jobs may run
// concurrently, independent of the single-goroutine command-ordering
// discipline worker.run enforces for session mutation itself.
type executorPool struct {
	sem chan struct{}
}

func newExecutorPool(parallelism int) *executorPool {
	if parallelism <= 0 {
		parallelism = 4
	}
	return &executorPool{sem: make(chan struct{}, parallelism)}
}

// Go runs fn on a pooled goroutine, blocking until a slot is free or ctx
// is cancelled, and returns its error. fn runs inside an errgroup whose
// context derives from ctx.
func (p *executorPool) Go(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.sem }()

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return fn(egCtx)
	})
	return eg.Wait()
}
