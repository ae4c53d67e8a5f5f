package query

import (
	"context"

	"recruit-portal/internal/common/errors"
)

// Result is the outcome of a mutation.
type Result[T any] struct {
	Value T
	Err   error
}

func (r Result[T]) OK() bool {
	return r.Err == nil
}

func (r Result[T]) Unwrap() (T, error) {
	return r.Value, r.Err
}

// Message is the user-facing text of a failed result, empty on success.
func (r Result[T]) Message() string {
	if r.Err == nil {
		return ""
	}
	if se, ok := errors.AsStandard(r.Err); ok {
		return se.Message
	}
	return r.Err.Error()
}

// Mutate runs fn once, without retry or deduplication. On success every key
// under the given prefixes is invalidated; on failure the cache is untouched.
func Mutate[T any](ctx context.Context, c *Cache, fn func(context.Context) (T, error), invalidate ...string) Result[T] {
	v, err := fn(ctx)
	if err != nil {
		c.logger.Debug("Mutation failed", map[string]interface{}{
			"invalidates": invalidate,
			"error":       err.Error(),
		})
		return Result[T]{Err: err}
	}
	c.Invalidate(ctx, invalidate...)
	return Result[T]{Value: v}
}
