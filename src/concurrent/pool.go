package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultLimit bounds fan-out when callers pass a non-positive limit.
const DefaultLimit = 4

// OrderedMap calls fn for every item with at most limit calls in flight and
// returns the results in item order, whatever order the calls finish in.
// fn reports failures inside R; OrderedMap itself only fails when ctx is done
// before every item was dispatched.
func OrderedMap[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, idx int, item T) R) ([]R, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	results := make([]R, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, item := range items {
		if err := gctx.Err(); err != nil {
			_ = g.Wait()
			return results, err
		}
		g.Go(func() error {
			results[i] = fn(gctx, i, item)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}
