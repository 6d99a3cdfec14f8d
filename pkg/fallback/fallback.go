// Package fallback runs alternative strategies in order until one succeeds.
package fallback

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Strategy produces a value or fails.
type Strategy[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// First runs strategies in order and returns the first success along with
// the name of the strategy that produced it. If every strategy fails, the
// combined error is returned. A cancelled context stops the chain.
func First[T any](ctx context.Context, strategies ...Strategy[T]) (T, string, error) {
	var zero T
	var errs error
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return zero, "", multierr.Append(errs, err)
		}
		v, err := s.Run(ctx)
		if err == nil {
			return v, s.Name, nil
		}
		errs = multierr.Append(errs, errors.Wrap(err, s.Name))
	}
	if errs == nil {
		errs = errors.New("no strategies")
	}
	return zero, "", errs
}
