// Package lifecycle tracks session-scoped subscriptions and releases them as a unit.
package lifecycle

import (
	"context"
	"sync"
)

// Subscription is a handle on a running background computation.
type Subscription interface {
	Unsubscribe()
}

// FuncSubscription wraps a cancel func so that it runs at most once.
type FuncSubscription struct {
	once   sync.Once
	cancel func()
}

// NewFuncSubscription creates a FuncSubscription around cancel
func NewFuncSubscription(cancel func()) *FuncSubscription {
	return &FuncSubscription{cancel: cancel}
}

// Unsubscribe runs the wrapped cancel func the first time it is called
func (s *FuncSubscription) Unsubscribe() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Group is an ordered registry of subscriptions. Close releases every registered
// subscription exactly once; subscriptions added after Close are released on the spot.
type Group struct {
	mu     sync.Mutex
	subs   []Subscription
	closed bool
}

// Add registers sub with the group
func (g *Group) Add(sub Subscription) {
	if sub == nil {
		return
	}
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	g.subs = append(g.subs, sub)
	g.mu.Unlock()
}

// AddFunc registers a cancel func with the group
func (g *Group) AddFunc(cancel func()) {
	g.Add(NewFuncSubscription(cancel))
}

// Go runs fn in a goroutine bound to a child of ctx and registers its cancellation.
// Closing the group cancels the context and waits for fn to return.
func (g *Group) Go(ctx context.Context, fn func(ctx context.Context)) {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn(runCtx)
	}()
	g.AddFunc(func() {
		cancel()
		<-done
	})
}

// Len returns the number of registered subscriptions
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.subs)
}

// Closed reports whether Close has been called
func (g *Group) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// Close releases every registered subscription in registration order and
// reports whether this call did so. Later calls are no-ops that return false.
func (g *Group) Close() bool {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return false
	}
	g.closed = true
	subs := g.subs
	g.subs = nil
	g.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	return true
}
