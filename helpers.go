package esync

import (
	"context"
)

// For runs fn(ctx, i) for every i in [0, n) on a new [Team] configured by
// opts. See [Team.For].
//
//	out, err := esync.For(ctx, len(cells), func(ctx context.Context, i int) error {
//	    return update(cells[i])
//	}, esync.WithThreads(8))
func For(ctx context.Context, n int, fn func(ctx context.Context, i int) error, opts ...Option) (Outcome, error) {
	return NewTeam(opts...).For(ctx, n, fn)
}

// For splits [0, n) into one contiguous chunk per member (static schedule)
// and runs fn on every index of the member's chunk in order. A member stops
// at its first failing index, and also stops quietly once the region's
// context is cancelled.
//
// Because lower chunks belong to lower-numbered members, the surviving error
// is the first failure of the lowest failing chunk. Panics if n < 0.
func (t *Team) For(ctx context.Context, n int, fn func(ctx context.Context, i int) error) (Outcome, error) {
	if n < 0 {
		panic("esync: For requires n >= 0")
	}

	return t.Run(ctx, func(ctx context.Context) error {
		m, _ := memberOf(ctx)
		lo, hi := chunk(n, m.id, m.num)
		for i := lo; i < hi; i++ {
			if ctx.Err() != nil {
				return nil
			}
			if err := fn(ctx, i); err != nil {
				return err
			}
		}
		return nil
	})
}

// chunk returns the half-open range of [0, n) owned by thread id of num.
// The first n%num threads get one extra index.
func chunk(n, id, num int) (lo, hi int) {
	base, rem := n/num, n%num
	lo = id*base + min(id, rem)
	hi = lo + base
	if id < rem {
		hi++
	}
	return lo, hi
}
