package datastreams

import (
	"context"
)

type switchResult[U any] struct {
	gen uint64
	val U
	err error
}

// SwitchMap calls fn for every input value and emits its result, but only for the
// most recent input: a new value cancels the context of the call still in flight
// and its eventual result is discarded. An error from the current call is sent to
// the error stream and terminates the output unless Params.SkipError is set.
// The output closes once the input is closed and the last call has settled.
func SwitchMap[T any, U any](
	ds DataStream[T],
	fn SwitchFunc[T, U],
	params ...Params,
) DataStream[U] {
	param := applyParams(params...)
	inStream := ds.Out()
	nextPipe, outChannels := next[U](param, 1, ds.ctx, ds.errStream)
	go func(outStream chan<- U) {
		defer close(outStream)
		results := make(chan switchResult[U])
		var (
			gen      uint64
			inFlight bool
			cancel   context.CancelFunc = func() {}
		)
		defer func() { cancel() }()

		for inStream != nil || inFlight {
			select {
			case <-ds.ctx.Done():
				return
			case v, ok := <-inStream:
				if !ok {
					inStream = nil
					continue
				}
				if ds.ctx.Err() != nil {
					return
				}
				cancel()
				gen++
				callCtx, callCancel := context.WithCancel(ds.ctx)
				cancel = callCancel
				inFlight = true
				go func(ctx context.Context, g uint64, in T) {
					val, err := fn(ctx, in)
					select {
					case results <- switchResult[U]{gen: g, val: val, err: err}:
					case <-ctx.Done():
					}
				}(callCtx, gen, v)
			case r := <-results:
				if r.gen != gen {
					continue // superseded
				}
				inFlight = false
				if ds.ctx.Err() != nil {
					return
				}
				if r.err != nil {
					ds.sendError(newSwitchMapError(param.SegmentName, r.err))
					if param.SkipError {
						continue
					}
					return
				}
				select {
				case outStream <- r.val:
				case <-ds.ctx.Done():
					return
				}
			}
		}
	}(outChannels[0])
	return nextPipe
}
