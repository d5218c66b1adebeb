package sources

import (
	"context"

	"github.com/elastiflow/searchflow/datastreams"
)

// FromChannel adapts a receive-only channel, such as a gateway busy signal,
// into a Sourcer. The stream ends when the channel closes or ctx is done.
func FromChannel[T any](rec <-chan T, params ...Params) datastreams.Sourcer[T] {
	var p Params
	for _, param := range params {
		p = param
	}
	return channelSource[T]{rec: rec, bufferSize: p.BufferSize}
}

type channelSource[T any] struct {
	rec        <-chan T
	bufferSize int
}

func (c channelSource[T]) Source(ctx context.Context, errSender chan<- error) datastreams.DataStream[T] {
	out := make(chan T, c.bufferSize)
	go func() {
		defer close(out)
		for {
			var v T
			var ok bool
			select {
			case <-ctx.Done():
				return
			case v, ok = <-c.rec:
			}
			if !ok {
				return
			}
			select {
			case out <- v:
			case <-ctx.Done():
				return
			}
		}
	}()
	return datastreams.New[T](ctx, out, errSender)
}
