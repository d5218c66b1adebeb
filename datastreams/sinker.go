package datastreams

import "context"

// Sinker drains a DataStream into a destination such as a Publisher.
// Sink returns once the stream ends or ctx is done.
type Sinker[T any] interface {
	Sink(ctx context.Context, ds DataStream[T]) error
}
