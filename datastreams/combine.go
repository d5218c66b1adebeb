package datastreams

import (
	"context"
	"sync"
)

type indexed[T any] struct {
	idx int
	val T
}

// CombineLatest keeps the latest value of every input and, once each input has
// produced at least one value, emits combine(latest) on every update. The slice
// handed to combine is a copy and may be retained. The output closes when all
// inputs are closed or ctx is done.
func CombineLatest[T any, R any](
	ctx context.Context,
	errStream chan<- error,
	inputs []<-chan T,
	combine CombineFunc[T, R],
	params ...Params,
) DataStream[R] {
	param := applyParams(params...)
	nextPipe, outChannels := next[R](param, 1, ctx, errStream)

	merged := make(chan indexed[T])
	var wg sync.WaitGroup
	multiplex := func(idx int, c <-chan T) {
		defer wg.Done()
		for v := range orDone(ctx, c) {
			select {
			case merged <- indexed[T]{idx: idx, val: v}:
			case <-ctx.Done():
				return
			}
		}
	}
	wg.Add(len(inputs))
	for i, c := range inputs {
		go multiplex(i, c)
	}
	go func() {
		wg.Wait()
		close(merged)
	}()

	go func(outStream chan<- R) {
		defer close(outStream)
		latest := make([]T, len(inputs))
		seen := make([]bool, len(inputs))
		missing := len(inputs)
		for in := range merged {
			if !seen[in.idx] {
				seen[in.idx] = true
				missing--
			}
			latest[in.idx] = in.val
			if missing > 0 {
				continue
			}
			snapshot := make([]T, len(latest))
			copy(snapshot, latest)
			select {
			case outStream <- combine(snapshot):
			case <-ctx.Done():
				return
			}
		}
	}(outChannels[0])
	return nextPipe
}
