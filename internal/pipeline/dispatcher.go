package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the default number of invocations running at once.
const DefaultConcurrency = 10

// Dispatcher runs invocations on their own goroutines, bounded by a
// concurrency limit.
//
// Design decision: We use errgroup.SetLimit rather than a worker pool
// because it's simpler and errgroup handles the concurrency correctly.
// Go blocks while the limit is reached, which pushes back on the event
// source instead of queueing without bound.
type Dispatcher struct {
	group       *errgroup.Group
	concurrency int
}

// NewDispatcher creates a Dispatcher running at most concurrency
// invocations at once. Values below 1 use DefaultConcurrency.
func NewDispatcher(concurrency int) *Dispatcher {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}

	g := new(errgroup.Group)
	g.SetLimit(concurrency)

	return &Dispatcher{
		group:       g,
		concurrency: concurrency,
	}
}

// Concurrency returns the configured limit.
func (d *Dispatcher) Concurrency() int {
	return d.concurrency
}

// Go runs fn on a new goroutine. The context passed to fn keeps the
// values of ctx but is never cancelled, so an invocation outlives the
// request or command that triggered it.
func (d *Dispatcher) Go(ctx context.Context, fn func(ctx context.Context)) {
	detached := context.WithoutCancel(ctx)
	d.group.Go(func() error {
		fn(detached)
		return nil
	})
}

// Wait blocks until every started invocation has finished.
func (d *Dispatcher) Wait() {
	_ = d.group.Wait() //nolint:errcheck // invocations never return errors
}
