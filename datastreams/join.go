package datastreams

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Join starts every fetcher concurrently and emits a single slice holding their
// results concatenated in argument order, then closes. The first failing fetcher
// cancels the others, a JOIN error is sent to errStream and no value is emitted;
// Join does not wait for the remaining fetchers before reporting. No fetcher runs
// when ctx is already done.
func Join[T any](
	ctx context.Context,
	errStream chan<- error,
	fetchers []Fetcher[T],
	params ...Params,
) DataStream[[]T] {
	param := applyParams(params...)
	nextPipe, outChannels := next[[]T](Params{BufferSize: 1}, 1, ctx, errStream)
	go func(outStream chan<- []T) {
		defer close(outStream)
		if ctx.Err() != nil {
			return
		}
		g, gctx := errgroup.WithContext(ctx)
		parts := make([][]T, len(fetchers))
		failed := make(chan error, len(fetchers))
		for i, fetch := range fetchers {
			g.Go(func() error {
				res, err := fetch(gctx)
				if err != nil {
					failed <- err
					return err
				}
				parts[i] = res
				return nil
			})
		}
		done := make(chan error, 1)
		go func() { done <- g.Wait() }()

		select {
		case <-ctx.Done():
			return
		case err := <-failed:
			if ctx.Err() != nil {
				return
			}
			nextPipe.sendError(newJoinError(param.SegmentName, err))
			return
		case err := <-done:
			if err != nil {
				// failed is buffered and written before the goroutine returns
				nextPipe.sendError(newJoinError(param.SegmentName, <-failed))
				return
			}
		}
		size := 0
		for _, part := range parts {
			size += len(part)
		}
		joined := make([]T, 0, size)
		for _, part := range parts {
			joined = append(joined, part...)
		}
		select {
		case outStream <- joined:
		case <-ctx.Done():
		}
	}(outChannels[0])
	return nextPipe
}
