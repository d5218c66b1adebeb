package datastreams

import (
	"context"
	"sync"
)

// DataStream is one stage of a stream: the context bounding every goroutine
// of the stage, the shared error stream and the stage's output channels.
type DataStream[T any] struct {
	ctx       context.Context
	errStream chan<- error
	inStreams []<-chan T
}

// New wraps inStream in a DataStream. errStream may be nil, in which case
// stage errors are dropped.
func New[T any](
	ctx context.Context,
	inStream <-chan T,
	errStream chan<- error,
) DataStream[T] {
	return DataStream[T]{
		ctx:       ctx,
		errStream: errStream,
		inStreams: []<-chan T{inStream},
	}
}

// Out returns the single output channel of the stage, merging first if the
// stage has several.
func (p DataStream[T]) Out() <-chan T {
	if len(p.inStreams) == 1 {
		return p.inStreams[0]
	}
	return p.FanIn().inStreams[0]
}

// Context returns the context that bounds every stage of the DataStream
func (p DataStream[T]) Context() context.Context {
	return p.ctx
}

// Filter forwards the values filter accepts. A value the filter fails on is
// reported as a FILTER error and dropped.
func (p DataStream[T]) Filter(filter FilterFunc[T], params ...Params) DataStream[T] {
	param := applyParams(params...)
	nextPipe, outChannels := next[T](param, len(p.inStreams), p.ctx, p.errStream)
	for i, inStream := range p.inStreams {
		go func(inStream <-chan T, outStream chan<- T) {
			defer close(outStream)
			for val := range orDone(p.ctx, inStream) {
				pass, err := filter(val)
				if err != nil {
					p.sendError(newFilterError(param.SegmentName, err))
					continue
				}
				if !pass {
					continue
				}
				select {
				case outStream <- val:
				case <-p.ctx.Done():
					return
				}
			}
		}(inStream, outChannels[i])
	}
	return nextPipe
}

// FanIn merges every output channel of the stage into one. The merged channel
// closes once all of them have closed.
func (p DataStream[T]) FanIn(params ...Params) DataStream[T] {
	param := applyParams(params...)
	nextPipe, outChannels := next[T](param, 1, p.ctx, p.errStream)
	out := outChannels.Senders()[0]
	var wg sync.WaitGroup
	wg.Add(len(p.inStreams))
	for _, c := range p.inStreams {
		go func(c <-chan T) {
			defer wg.Done()
			for v := range orDone(p.ctx, c) {
				select {
				case out <- v:
				case <-p.ctx.Done():
					return
				}
			}
		}(c)
	}
	go func() {
		wg.Wait()
		outChannels.Close()
	}()
	return nextPipe
}

// next allocates the output channels of a new stage
func next[T any](
	params Params,
	chanCount int,
	ctx context.Context,
	errStream chan<- error,
) (DataStream[T], pipes[T]) {
	streams := make(pipes[T], chanCount)
	streams.Initialize(params.BufferSize)
	return DataStream[T]{
			ctx:       ctx,
			errStream: errStream,
			inStreams: streams.Receivers(),
		},
		streams
}

// sendError publishes err on the error stream unless the stream is unset or the context is done
func (p DataStream[T]) sendError(err error) {
	if p.errStream == nil {
		return
	}
	select {
	case p.errStream <- err:
	case <-p.ctx.Done():
	}
}

// orDone relays c until it closes or ctx is done
func orDone[T any](ctx context.Context, c <-chan T) <-chan T {
	relay := make(chan T)
	go func() {
		defer close(relay)
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-c:
				if !ok {
					return
				}
				select {
				case relay <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return relay
}

func applyParams(params ...Params) Params {
	var p Params
	for _, param := range params {
		p = param
	}
	return p
}
