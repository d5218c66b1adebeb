package datastreams

import (
	"time"
)

// Debounce emits a value only after Params.Interval has passed without another
// value arriving. Each value re-arms the timer, so a burst collapses to its last
// value. A pending value is flushed when the input closes, unless the context
// is already done.
func (p DataStream[T]) Debounce(params ...Params) DataStream[T] {
	param := applyParams(params...)
	inStream := p.Out()
	nextPipe, outChannels := next[T](param, 1, p.ctx, p.errStream)
	go func(outStream chan<- T, interval time.Duration) {
		defer close(outStream)
		var (
			timer   *time.Timer
			fire    <-chan time.Time
			pending T
			armed   bool
		)
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		emit := func() bool {
			armed = false
			fire = nil
			select {
			case outStream <- pending:
				return true
			case <-p.ctx.Done():
				return false
			}
		}
		for {
			select {
			case <-p.ctx.Done():
				return
			case v, ok := <-inStream:
				if !ok {
					if armed && p.ctx.Err() == nil {
						emit()
					}
					return
				}
				pending, armed = v, true
				if timer == nil {
					timer = time.NewTimer(interval)
				} else {
					timer.Reset(interval)
				}
				fire = timer.C
			case <-fire:
				if !emit() {
					return
				}
			}
		}
	}(outChannels[0], param.Interval)
	return nextPipe
}

// Distinct drops every value equal to the previously emitted one.
func Distinct[T comparable](ds DataStream[T], params ...Params) DataStream[T] {
	param := applyParams(params...)
	inStream := ds.Out()
	nextPipe, outChannels := next[T](param, 1, ds.ctx, ds.errStream)
	go func(outStream chan<- T) {
		defer close(outStream)
		var (
			last    T
			emitted bool
		)
		for v := range orDone(ds.ctx, inStream) {
			if emitted && v == last {
				continue
			}
			last, emitted = v, true
			select {
			case outStream <- v:
			case <-ds.ctx.Done():
				return
			}
		}
	}(outChannels[0])
	return nextPipe
}
