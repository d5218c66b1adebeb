package sinks

import (
	"context"

	"github.com/elastiflow/searchflow/datastreams"
)

// Publisher receives every value a publisherSinker consumes
type Publisher[T any] interface {
	Publish(msg T)
}

// PublisherFunc adapts an ordinary function to a Publisher
type PublisherFunc[T any] func(msg T)

// Publish calls f(msg)
func (f PublisherFunc[T]) Publish(msg T) {
	f(msg)
}

type publisherSinker[T any] struct {
	publisher Publisher[T]
}

// ToPublisher creates a Sinker that hands every value to publisher
func ToPublisher[T any](publisher Publisher[T]) datastreams.Sinker[T] {
	return &publisherSinker[T]{publisher: publisher}
}

// Sink reads the payload from the input datastreams.DataStream and hands every value to the Publisher
func (p *publisherSinker[T]) Sink(ctx context.Context, ds datastreams.DataStream[T]) error {
	outStream := ds.Out()
	for {
		select {
		case <-ctx.Done():
			return nil
		case v, ok := <-outStream:
			if !ok {
				return nil
			}
			p.publisher.Publish(v)
		}
	}
}
