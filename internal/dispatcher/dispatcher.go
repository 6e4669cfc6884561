// Package dispatcher manages worker fan-out over the job store.
package dispatcher

import (
	"context"
	"sync"

	"github.com/ailens/domain-audit/internal/worker"
)

// Dispatcher runs a pool of workers against the shared job store. The
// store's atomic claim is the only coordination between them.
type Dispatcher struct {
	workers []*worker.Worker
}

// New creates a Dispatcher.
func New(workers []*worker.Worker) *Dispatcher {
	return &Dispatcher{workers: workers}
}

// Run starts all workers and blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}
