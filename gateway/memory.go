package gateway

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/elastiflow/searchflow/busy"
)

// MemoryOption configures a Memory source
type MemoryOption func(*Memory)

// WithLatency delays every fetch by d, or until the request is cancelled
func WithLatency(d time.Duration) MemoryOption {
	return func(m *Memory) {
		m.latency = d
	}
}

// WithFuzzyDistance also matches names within distance edits of the term
func WithFuzzyDistance(distance int) MemoryOption {
	return func(m *Memory) {
		m.fuzzyDistance = distance
	}
}

// WithFailure makes every fetch fail with err after the configured latency
func WithFailure(err error) MemoryOption {
	return func(m *Memory) {
		m.failure = err
	}
}

// Memory serves a fixed set of records of one kind from memory
type Memory struct {
	kind          Kind
	mu            sync.RWMutex
	records       []Record
	latency       time.Duration
	fuzzyDistance int
	failure       error
	tracker       *busy.Tracker
}

// NewMemory creates a Memory source of the given kind
func NewMemory(kind Kind, records []Record, opts ...MemoryOption) *Memory {
	m := &Memory{
		kind:    kind,
		tracker: busy.NewTracker(),
	}
	m.Replace(records)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Kind returns the kind of records served
func (m *Memory) Kind() Kind {
	return m.kind
}

// Replace swaps the served records. Records of another kind are ignored.
func (m *Memory) Replace(records []Record) {
	kept := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Kind == "" || r.Kind == m.kind {
			r.Kind = m.kind
			kept = append(kept, r)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Name < kept[j].Name })
	m.mu.Lock()
	m.records = kept
	m.mu.Unlock()
}

// Len returns the number of served records
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// FetchByTerm returns the records whose name contains term, ignoring case, or
// lies within the fuzzy distance of it
func (m *Memory) FetchByTerm(ctx context.Context, term string) ([]Record, error) {
	done := m.tracker.Begin()
	defer done()
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(term))
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, r := range m.records {
		if m.matches(needle, r.Name) {
			out = append(out, r)
		}
	}
	return out, nil
}

// FetchAll returns every record
func (m *Memory) FetchAll(ctx context.Context) ([]Record, error) {
	done := m.tracker.Begin()
	defer done()
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out, nil
}

// BusySignal subscribes to the busy edges of the source
func (m *Memory) BusySignal() (<-chan bool, func()) {
	return m.tracker.Signal()
}

// Tracker exposes the busy tracker of the source
func (m *Memory) Tracker() *busy.Tracker {
	return m.tracker
}

// Close ends every busy signal subscription
func (m *Memory) Close() {
	m.tracker.Close()
}

func (m *Memory) wait(ctx context.Context) error {
	if m.latency > 0 {
		timer := time.NewTimer(m.latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}
	if m.failure != nil {
		return fmt.Errorf("%s: %w", m.kind, m.failure)
	}
	return nil
}

func (m *Memory) matches(needle, name string) bool {
	lower := strings.ToLower(name)
	if strings.Contains(lower, needle) {
		return true
	}
	if m.fuzzyDistance <= 0 {
		return false
	}
	if levenshtein.ComputeDistance(needle, lower) <= m.fuzzyDistance {
		return true
	}
	for _, word := range strings.Fields(lower) {
		if levenshtein.ComputeDistance(needle, word) <= m.fuzzyDistance {
			return true
		}
	}
	return false
}
