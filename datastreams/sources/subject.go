package sources

import (
	"context"
	"sync"

	"github.com/elastiflow/searchflow/datastreams"
)

const defaultSubjectBuffer = 16

// Subject is a multicast push source. Publish never blocks: every subscriber
// owns a buffer and, when it is full, the oldest buffered value is dropped in
// favour of the new one. Each call to Source is an independent subscription.
type Subject[T any] struct {
	mu      sync.Mutex
	subs    map[uint64]chan T
	nextID  uint64
	closed  bool
	done    chan struct{}
	params  Params
	last    T
	hasLast bool
}

// NewSubject creates a Subject
func NewSubject[T any](params ...Params) *Subject[T] {
	var p Params
	for _, param := range params {
		p = param
	}
	if p.BufferSize <= 0 {
		p.BufferSize = defaultSubjectBuffer
	}
	return &Subject[T]{
		subs:   make(map[uint64]chan T),
		done:   make(chan struct{}),
		params: p,
	}
}

// Publish hands v to every current subscriber. It is a no-op after Close.
func (s *Subject[T]) Publish(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.last, s.hasLast = v, true
	for _, ch := range s.subs {
		offer(ch, v)
	}
}

// Subscribe registers a new subscriber. The returned cancel func is idempotent.
func (s *Subject[T]) Subscribe() (<-chan T, func()) {
	ch := make(chan T, s.params.BufferSize)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.nextID++
	id := s.nextID
	s.subs[id] = ch
	if s.params.Replay && s.hasLast {
		offer(ch, s.last)
	}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() { s.unsubscribe(id) })
	}
}

// Source subscribes to the Subject for as long as ctx is alive
func (s *Subject[T]) Source(ctx context.Context, errSender chan<- error) datastreams.DataStream[T] {
	ch, cancel := s.Subscribe()
	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
		}
		cancel()
	}()
	return datastreams.New[T](ctx, ch, errSender)
}

// Len returns the number of live subscribers
func (s *Subject[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Close closes every subscriber channel. Calling Close more than once is safe.
func (s *Subject[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Subject[T]) unsubscribe(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.subs[id]
	if !ok {
		return
	}
	delete(s.subs, id)
	close(ch)
}

// offer sends v without blocking, evicting the oldest buffered value if needed.
// Callers hold the Subject lock, so no other sender competes for the slot.
func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
