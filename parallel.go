package blockpool

import (
	"context"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/blockpool/internal/conv"
)

// ForEachParallel calls fn for every live object, spreading the pool's blocks
// over up to workers goroutines. workers <= 0 selects GOMAXPROCS.
//
// The first error cancels the context passed to the other calls and is
// returned. Objects dropped during the walk stay valid until it returns.
//
// On a LocalPool fn must not emplace or drop references.
func (p *pool[T, M, PM]) ForEachParallel(ctx context.Context, workers int, fn func(context.Context, *T) error) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// More ranges than workers evens out blocks with uneven occupancy.
	parts, err := conv.MulInt(workers, 4)
	if err != nil {
		parts = math.MaxInt
	}
	ranges := p.Split(parts)
	defer func() {
		for _, r := range ranges {
			r.Close()
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, r := range ranges {
		g.Go(func() error {
			for v := range r.All() {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := fn(gctx, v); err != nil {
					return err
				}
			}
			return nil
		})
	}

	return g.Wait()
}
