package busy

import (
	"sync"

	"github.com/elastiflow/searchflow/datastreams/sources"
)

// Tracker counts outstanding requests for one source and publishes the edges
// of that count as a busy signal. New subscribers receive the current value.
type Tracker struct {
	mu          sync.Mutex
	outstanding int
	signal      *sources.Subject[bool]
}

// NewTracker creates an idle Tracker
func NewTracker() *Tracker {
	t := &Tracker{
		signal: sources.NewSubject[bool](sources.Params{Replay: true}),
	}
	t.signal.Publish(false)
	return t
}

// Begin marks one request as outstanding. The returned func marks it done and
// may be called more than once.
func (t *Tracker) Begin() func() {
	t.mu.Lock()
	t.outstanding++
	if t.outstanding == 1 {
		t.signal.Publish(true)
	}
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(t.end)
	}
}

func (t *Tracker) end() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.outstanding--
	if t.outstanding == 0 {
		t.signal.Publish(false)
	}
}

// Outstanding returns the number of requests currently in flight
func (t *Tracker) Outstanding() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outstanding
}

// Signal subscribes to the busy edges of the source
func (t *Tracker) Signal() (<-chan bool, func()) {
	return t.signal.Subscribe()
}

// Close ends every subscription to the signal
func (t *Tracker) Close() {
	t.signal.Close()
}
