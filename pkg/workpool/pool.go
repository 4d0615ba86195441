// Package workpool runs short, fixed-size batches of independent tasks on a
// bounded number of goroutines and joins them before returning.
package workpool

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Workers resolves a configured worker count (0 = use CPU count)
func Workers(numWorkers int) int {
	if numWorkers <= 0 {
		return runtime.NumCPU()
	}
	return numWorkers
}

// Run calls task(i) for every i in [0, n) using at most numWorkers goroutines
// and returns after all tasks have finished. Tasks must only write to state
// owned by index i.
func Run(n, numWorkers int, task func(i int)) {
	_ = RunErr(n, numWorkers, func(i int) error {
		task(i)
		return nil
	})
}

// RunErr is Run for tasks that can fail. It returns the first error; tasks
// already started still run to completion.
func RunErr(n, numWorkers int, task func(i int) error) error {
	if n <= 0 {
		return nil
	}
	var g errgroup.Group
	g.SetLimit(min(Workers(numWorkers), n))
	for i := 0; i < n; i++ {
		g.Go(func() error {
			return task(i)
		})
	}
	return g.Wait()
}

// Map runs task for every index and collects the results in index order
func Map[T any](n, numWorkers int, task func(i int) T) []T {
	results := make([]T, max(n, 0))
	Run(n, numWorkers, func(i int) {
		results[i] = task(i)
	})
	return results
}
