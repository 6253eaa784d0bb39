package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/exp/slices"

	"vegcover/internal/period"
	"vegcover/internal/remote"
)

// ComputeFunc computes one period. Returned errors in the remote.ErrQuery
// class are recovered with placeholder substitution; anything else is a
// programming error and fails the run after the join.
type ComputeFunc func(ctx context.Context, p period.Period) (Result, error)

// FallbackFunc synthesizes the placeholder Result for a failed period.
// It must not perform I/O.
type FallbackFunc func(p period.Period) Result

// Executor fans periods out to a bounded worker pool and joins the
// results back in period order.
//
// Concurrency model:
//   - A fixed set of Workers goroutines drains an index queue.
//   - Results land in a preallocated slot array; slot i is written
//     exactly once, by the single worker that dequeued index i, so the
//     result collection needs no lock.
//   - One task's failure never cancels or delays its siblings.
//
// Ordering: completion order is unspecified; the returned slice is
// always ascending by period index. Downstream grouping relies on this
// and must not re-derive it.
type Executor struct {
	Compute  ComputeFunc
	Fallback FallbackFunc
	Workers  int

	// Logf receives per-period progress lines; it must be safe for
	// concurrent use. Optional.
	Logf func(format string, args ...any)
}

func (e *Executor) logf(format string, args ...any) {
	if e.Logf != nil {
		e.Logf(format, args...)
	}
}

// Run executes every period and returns one Result per period, sorted
// ascending by index.
//
// Failure isolation: a period whose computation fails with a
// remote.ErrQuery-class error is logged and replaced by its placeholder;
// the error never propagates. A non-remote error also yields a
// placeholder (so the result set stays total) but is returned after the
// join — masking a programming bug as missing imagery would hide real
// defects. When several periods hit programming errors, the one with
// the lowest index is reported.
func (e *Executor) Run(ctx context.Context, periods []period.Period) ([]Result, error) {
	if e.Workers < 1 {
		return nil, fmt.Errorf("workers must be > 0")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	slots := make([]Result, len(periods))
	workCh := make(chan int)

	var mu sync.Mutex // guards fatal/fatalIndex only; slots are lock-free by construction
	var fatal error
	fatalIndex := 0

	var wg sync.WaitGroup
	for w := 0; w < e.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range workCh {
				p := periods[i]
				res, err := e.Compute(ctx, p)
				if err == nil {
					slots[i] = res
					e.logf("period %d: %s (%d images)", p.Index, p.Label, res.ImageCount)
					continue
				}

				slots[i] = e.Fallback(p)
				if errors.Is(err, remote.ErrQuery) {
					e.logf("period %d failed, substituting placeholder: %v", p.Index, err)
					continue
				}
				mu.Lock()
				if fatal == nil || p.Index < fatalIndex {
					fatal = err
					fatalIndex = p.Index
				}
				mu.Unlock()
			}
		}()
	}

	for i := range periods {
		workCh <- i
	}
	close(workCh)
	wg.Wait()

	// Restore the deterministic order consumers depend on. The planner
	// already emits ascending indices, so this is normally a no-op scan.
	slices.SortFunc(slots, func(a, b Result) int { return a.Period.Index - b.Period.Index })

	if fatal != nil {
		return slots, fmt.Errorf("period %d: %w", fatalIndex, fatal)
	}
	return slots, nil
}
