package shared

import "context"

// Transactor runs fn as one unit of work. Repository calls made with the
// context handed to fn commit together or roll back together.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// NoopTransactor runs fn directly with no transaction around it
type NoopTransactor struct{}

// WithinTransaction calls fn with ctx
func (NoopTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
