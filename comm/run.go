package comm

import (
	"context"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

// Run starts size ranks of an in-memory world and calls fn on each in its own
// goroutine. The first failing rank cancels the others.
func Run(ctx context.Context, size int, fn func(ctx context.Context, c Comm) error) error {
	comms := NewWorld(size)
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range comms {
		c := c
		g.Go(func() error {
			if err := fn(gctx, c); err != nil {
				return errors.Wrapf(err, "rank %d", c.Rank())
			}
			return nil
		})
	}
	return g.Wait()
}
