package datastreams

import "context"

// Sourcer starts a DataStream fed from outside the pipeline, such as a Subject
// or a busy signal channel. Errors raised by the source go to errSender.
type Sourcer[T any] interface {
	Source(ctx context.Context, errSender chan<- error) DataStream[T]
}
