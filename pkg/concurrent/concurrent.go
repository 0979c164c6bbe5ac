// Package concurrent runs independent work items side by side.
package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Each runs action for every item with at most limit goroutines at a time.
// The first error cancels ctx for the remaining items and is returned.
// A limit below one means no limit.
func Each[T any](ctx context.Context, items []T, limit int, action func(context.Context, T) error) error {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, item := range items {
		g.Go(func() error {
			return action(ctx, item)
		})
	}
	return g.Wait()
}

// Map applies fn to every item with at most limit goroutines and keeps the
// input order. Every item is processed; fn reports its own failures in R.
func Map[T any, R any](ctx context.Context, items []T, limit int, fn func(context.Context, T) R) []R {
	out := make([]R, len(items))
	g := errgroup.Group{}
	if limit > 0 {
		g.SetLimit(limit)
	}
	for idx, item := range items {
		g.Go(func() error {
			out[idx] = fn(ctx, item)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
