package datastreams

import "context"

// FilterFunc decides whether a value passes a Filter stage
type FilterFunc[T any] func(T) (bool, error)

// SwitchFunc is a cancellable user defined function used by SwitchMap. The context
// passed in is cancelled as soon as a newer input supersedes the call.
type SwitchFunc[T any, U any] func(context.Context, T) (U, error)

// Fetcher is a cancellable producer of a slice of values used by Join.
type Fetcher[T any] func(context.Context) ([]T, error)

// CombineFunc derives one value from the latest value of every input of CombineLatest.
type CombineFunc[T any, R any] func([]T) R

type receivers[T any] []<-chan T
type senders[T any] []chan<- T
type pipes[T any] []chan T

func (c pipes[T]) Initialize(buffer int) {
	for i := range len(c) {
		if buffer > 0 {
			c[i] = make(chan T, buffer)
			continue
		}
		c[i] = make(chan T)
	}
}

func (c pipes[T]) Close() {
	for i := range len(c) {
		close(c[i])
	}
}

func (c pipes[T]) Senders() senders[T] {
	s := make(senders[T], len(c))
	for i := range c {
		s[i] = c[i]
	}
	return s
}

func (c pipes[T]) Receivers() receivers[T] {
	s := make(receivers[T], len(c))
	for i := range c {
		s[i] = c[i]
	}
	return s
}
