// Package attempt runs an ordered list of candidates until one succeeds.
// Callers that must try several platform-specific incantations of the same
// operation get first-success-wins semantics with every failure preserved
// for diagnostics.
package attempt

import (
	"context"
	"errors"
	"fmt"
)

// Candidate is one named way of performing the operation.
type Candidate[T any] struct {
	Name  string
	Value T
}

// First runs fn for each candidate in order and returns the name of the
// first that succeeds. When all candidates fail, the joined failures come
// back as a single error.
func First[T any](ctx context.Context, candidates []Candidate[T], fn func(ctx context.Context, c Candidate[T]) error) (string, error) {
	if len(candidates) == 0 {
		return "", errors.New("no candidates provided")
	}

	var failures []error
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		err := fn(ctx, c)
		if err == nil {
			return c.Name, nil
		}
		failures = append(failures, fmt.Errorf("%s: %w", c.Name, err))
	}

	return "", errors.Join(failures...)
}
