package container

import (
	"sync"

	"github.com/panjf2000/ants"
	"go.uber.org/multierr"
)

// DefaultWarmWorkers is the pool size Warm uses when given workers <= 0.
const DefaultWarmWorkers = 8

// Warm resolves every abstract concurrently on a pool of workers and returns
// all failures combined. Booting code calls it with its critical keys so
// wiring defects (unbound keys, cycles, failing factories) surface at startup
// rather than on first use.
//
//	if err := c.Warm(4, "config", "log", "router"); err != nil {
//	    for _, e := range multierr.Errors(err) { ... }
//	}
func (c *Container) Warm(workers int, abstracts ...string) error {
	if len(abstracts) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = DefaultWarmWorkers
	}
	workers = min(workers, len(abstracts))

	pool, err := ants.NewPool(workers)
	if err != nil {
		return err
	}
	defer pool.Release()

	var (
		mu   sync.Mutex
		errs error
		wg   sync.WaitGroup
	)
	record := func(e error) {
		mu.Lock()
		errs = multierr.Append(errs, e)
		mu.Unlock()
	}

	for _, abstract := range abstracts {
		abstract := abstract
		wg.Add(1)
		task := func() {
			defer wg.Done()
			if _, err := c.Make(abstract); err != nil {
				record(err)
			}
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			record(err)
		}
	}
	wg.Wait()
	return errs
}
