package searchflow

import (
	"context"
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/elastiflow/searchflow/busy"
	"github.com/elastiflow/searchflow/datastreams"
	"github.com/elastiflow/searchflow/datastreams/sources"
	"github.com/elastiflow/searchflow/gateway"
	"github.com/elastiflow/searchflow/lifecycle"
)

// LoadResult is the single outcome of a combined load: either the characters
// followed by the planets, or the first error either fetch returned.
type LoadResult[T any] struct {
	Records []T
	Err     error
}

// Session coordinates the queries of one consumer against the characters and
// planets sources. Searches and combined loads are independent per call; the
// busy flag and the input stream live until Teardown.
type Session[T any] struct {
	id         string
	characters gateway.Source[T]
	planets    gateway.Source[T]
	params     Params
	logger     *slog.Logger
	input      *sources.Subject[string]
	busy       *busy.Aggregator
	group      lifecycle.Group
	openOnce   sync.Once
	ctx        context.Context
	stop       context.CancelFunc
}

// New constructs a Session by passing in its properties
func New[T any](props *Props[T]) *Session[T] {
	id := uuid.NewString()
	logger := props.params.Logger.With(slog.String("session_id", id))
	s := &Session[T]{
		id:         id,
		characters: props.characters,
		planets:    props.planets,
		params:     props.params,
		logger:     logger,
		input:      sources.NewSubject[string](),
		busy:       busy.NewAggregator(props.params.BusyRule, logger),
	}
	s.ctx, s.stop = context.WithCancel(context.Background())
	// pipelines must see cancellation before their input closes
	s.group.AddFunc(s.stop)
	s.group.AddFunc(s.input.Close)
	return s
}

// ID returns the session's unique identifier
func (s *Session[T]) ID() string {
	return s.id
}

// Open starts the session-scoped work: the busy aggregator subscribes to the
// busy signal of both sources. Calling Open more than once has no effect.
func (s *Session[T]) Open(ctx context.Context) *Session[T] {
	s.openOnce.Do(func() {
		signals := make([]datastreams.Sourcer[bool], 0, 2)
		cancels := make([]func(), 0, 2)
		for _, src := range []gateway.Source[T]{s.characters, s.planets} {
			ch, cancel := src.BusySignal()
			signals = append(signals, sources.FromChannel(ch))
			cancels = append(cancels, cancel)
		}
		s.busy.Open(ctx, &s.group, signals...)
		for _, cancel := range cancels {
			s.group.AddFunc(cancel)
		}
		s.logger.Debug("session opened")
	})
	return s
}

// OnInputChanged feeds one search term into every active search. It never blocks.
func (s *Session[T]) OnInputChanged(term string) {
	s.input.Publish(term)
}

// SearchResults starts a search pipeline over the terms passed to OnInputChanged
// and returns its results. Terms are debounced, repeated terms are dropped,
// terms shorter than the minimum length are ignored and a new qualifying term
// abandons the fetch still in flight. A failed fetch is sent to errs and closes
// the returned channel; errs should be buffered or read concurrently. The
// pipeline ends when ctx is done or the session is torn down; a term still
// waiting out the debounce window is then dropped.
func (s *Session[T]) SearchResults(ctx context.Context, errs chan<- error) <-chan []T {
	ctx, cancel := s.scope(ctx)
	terms := datastreams.Distinct(
		s.input.Source(ctx, errs).Debounce(datastreams.Params{Interval: s.params.Debounce}),
	).Filter(s.qualifies)
	results := datastreams.SwitchMap(terms, s.search, datastreams.Params{SegmentName: "search"})

	out := make(chan []T)
	go func() {
		defer close(out)
		defer cancel() // release the upstream stages once the results end
		for records := range results.Out() {
			if ctx.Err() != nil {
				return
			}
			select {
			case out <- records:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// TriggerCombinedLoad fetches all characters and all planets concurrently and
// delivers exactly one LoadResult before the channel closes.
func (s *Session[T]) TriggerCombinedLoad(ctx context.Context) <-chan LoadResult[T] {
	ctx, cancel := s.scope(ctx)
	out := make(chan LoadResult[T], 1)
	errs := make(chan error, 1)
	joined := datastreams.Join(ctx, errs, []datastreams.Fetcher[T]{
		s.characters.FetchAll,
		s.planets.FetchAll,
	}, datastreams.Params{SegmentName: "combined-load"})

	go func() {
		defer close(out)
		defer cancel()
		if records, ok := <-joined.Out(); ok {
			s.logger.Debug("combined load finished", slog.Int("records", len(records)))
			out <- LoadResult[T]{Records: records}
			return
		}
		select {
		case err := <-errs:
			s.logger.Error("combined load failed", slog.Any("error", err))
			out <- LoadResult[T]{Err: err}
		default:
			out <- LoadResult[T]{Err: ctx.Err()}
		}
	}()
	return out
}

// IsBusy returns the combined busy flag and whether every source has reported yet
func (s *Session[T]) IsBusy() (busy bool, known bool) {
	return s.busy.Value()
}

// BusyChanges subscribes to changes of the combined busy flag
func (s *Session[T]) BusyChanges() (<-chan bool, func()) {
	return s.busy.Changes()
}

// Track ties sub to the session so Teardown releases it
func (s *Session[T]) Track(sub lifecycle.Subscription) {
	s.group.Add(sub)
}

// Teardown releases every session-scoped subscription. It is safe to call more than once.
func (s *Session[T]) Teardown() {
	if s.group.Close() {
		s.logger.Debug("session torn down")
	}
}

// scope derives a context that ends with ctx or with the session, whichever
// comes first.
func (s *Session[T]) scope(ctx context.Context) (context.Context, context.CancelFunc) {
	scoped, cancel := context.WithCancel(s.ctx)
	stop := context.AfterFunc(ctx, cancel)
	return scoped, func() {
		stop()
		cancel()
	}
}

func (s *Session[T]) qualifies(term string) (bool, error) {
	return utf8.RuneCountInString(term) >= s.params.MinTermLength, nil
}

func (s *Session[T]) search(ctx context.Context, term string) ([]T, error) {
	s.logger.Debug("searching characters", slog.String("term", term))
	return s.characters.FetchByTerm(ctx, term)
}
