package testutil

import (
	"errors"
	"sync"
	"sync/atomic"

	"caskhouse/pkg/platform/sentinel"
)

// ConcurrentResult tallies the outcomes of RunConcurrent.
type ConcurrentResult struct {
	Successes int32
	Errors    int32
	Conflicts int32
	NotFounds int32
}

func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Errors + r.Conflicts + r.NotFounds
}

// RunConcurrent runs fn on n goroutines released at the same moment and
// buckets the results by sentinel.
func RunConcurrent(n int, fn func(idx int) error) *ConcurrentResult {
	var (
		wg                                 sync.WaitGroup
		successes, errs, conflicts, misses atomic.Int32
		start                              = make(chan struct{})
	)

	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := fn(i)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			case errors.Is(err, sentinel.ErrNotFound):
				misses.Add(1)
			default:
				errs.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	return &ConcurrentResult{
		Successes: successes.Load(),
		Errors:    errs.Load(),
		Conflicts: conflicts.Load(),
		NotFounds: misses.Load(),
	}
}
