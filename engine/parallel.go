package engine

import (
	"golang.org/x/sync/errgroup"

	"github.com/teranos/rtsne/errors"
)

// parallelFor splits [0, n) into at most workers contiguous chunks and runs
// fn once per chunk. Chunk boundaries depend only on workers and n, so
// callers that reduce per-chunk partials in chunk order get the same answer
// on every run with the same thread count.
//
// A panic in any chunk is re-raised on the calling goroutine after all chunks
// finish, where the caller of Embed can recover it.
func parallelFor(workers, n int, fn func(chunk, lo, hi int)) {
	chunks := numChunks(workers, n)
	if chunks == 0 {
		return
	}
	if chunks == 1 {
		fn(0, 0, n)
		return
	}

	size := (n + chunks - 1) / chunks
	var g errgroup.Group
	for c := 0; c < chunks; c++ {
		lo := c * size
		hi := min(lo+size, n)
		if lo >= hi {
			continue
		}
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = errors.Newf("chunk %d [%d,%d): %v", c, lo, hi, r)
				}
			}()
			fn(c, lo, hi)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		panic(err)
	}
}

// numChunks is the number of partial slots callers of parallelFor need.
func numChunks(workers, n int) int {
	if n <= 0 {
		return 0
	}
	if workers < 1 {
		workers = 1
	}
	return min(workers, n)
}

// sumInOrder adds partials left to right.
func sumInOrder(partials []float64) float64 {
	total := 0.0
	for _, p := range partials {
		total += p
	}
	return total
}
