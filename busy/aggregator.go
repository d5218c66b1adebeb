package busy

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/elastiflow/searchflow/datastreams"
	"github.com/elastiflow/searchflow/datastreams/sinks"
	"github.com/elastiflow/searchflow/datastreams/sources"
	"github.com/elastiflow/searchflow/lifecycle"
)

const (
	stateUnset int32 = iota
	stateIdle
	stateBusy
)

// Aggregator derives one busy flag from the latest value of every signal it
// is opened with. The flag stays unset until every signal has produced a value.
type Aggregator struct {
	rule       Rule
	logger     *slog.Logger
	state      atomic.Int32
	recomputes atomic.Uint64
	changes    *sources.Subject[bool]
}

// NewAggregator creates an Aggregator. A nil rule selects All and a nil logger
// selects slog.Default.
func NewAggregator(rule Rule, logger *slog.Logger) *Aggregator {
	if rule == nil {
		rule = All
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		rule:    rule,
		logger:  logger,
		changes: sources.NewSubject[bool](sources.Params{Replay: true}),
	}
}

// Open subscribes to every signal for the lifetime of group. Closing the group
// stops all recomputation before Close returns.
func (a *Aggregator) Open(
	ctx context.Context,
	group *lifecycle.Group,
	signals ...datastreams.Sourcer[bool],
) {
	group.Go(ctx, func(ctx context.Context) {
		inputs := make([]<-chan bool, len(signals))
		for i, signal := range signals {
			inputs[i] = signal.Source(ctx, nil).Out()
		}
		combined := datastreams.CombineLatest(ctx, nil, inputs, datastreams.CombineFunc[bool, bool](a.rule))
		_ = sinks.ToPublisher[bool](sinks.PublisherFunc[bool](a.set)).Sink(ctx, combined)
	})
	group.AddFunc(a.changes.Close)
}

// Value returns the combined flag and whether it is known yet
func (a *Aggregator) Value() (busy bool, known bool) {
	switch a.state.Load() {
	case stateBusy:
		return true, true
	case stateIdle:
		return false, true
	default:
		return false, false
	}
}

// Recomputes returns how many times the flag has been recomputed
func (a *Aggregator) Recomputes() uint64 {
	return a.recomputes.Load()
}

// Changes subscribes to changes of the flag. A subscriber first receives the
// current value if the flag is already known.
func (a *Aggregator) Changes() (<-chan bool, func()) {
	return a.changes.Subscribe()
}

func (a *Aggregator) set(busy bool) {
	a.recomputes.Add(1)
	next := stateIdle
	if busy {
		next = stateBusy
	}
	if prev := a.state.Swap(next); prev == next {
		return
	}
	a.logger.Debug("busy state changed", slog.Bool("busy", busy))
	a.changes.Publish(busy)
}
