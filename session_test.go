package searchflow

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/elastiflow/searchflow/busy"
	"github.com/elastiflow/searchflow/datastreams"
	"github.com/elastiflow/searchflow/datastreams/sources"
	"github.com/elastiflow/searchflow/lifecycle"
)

const testDebounce = 40 * time.Millisecond

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type mockSource struct {
	mock.Mock
	busy *sources.Subject[bool]
}

func newMockSource() *mockSource {
	return &mockSource{busy: sources.NewSubject[bool]()}
}

func (m *mockSource) FetchByTerm(ctx context.Context, term string) ([]string, error) {
	args := m.Called(ctx, term)
	records, _ := args.Get(0).([]string)
	return records, args.Error(1)
}

func (m *mockSource) FetchAll(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]string)
	return records, args.Error(1)
}

func (m *mockSource) BusySignal() (<-chan bool, func()) {
	return m.busy.Subscribe()
}

func newTestSession(t *testing.T, params ...Params) (*Session[string], *mockSource, *mockSource) {
	t.Helper()
	characters, planets := newMockSource(), newMockSource()
	p := Params{Debounce: testDebounce}
	for _, param := range params {
		p = param
	}
	s := New(NewProps[string](characters, planets, p)).Open(context.Background())
	t.Cleanup(s.Teardown)
	return s, characters, planets
}

func typeTerms(s *Session[string], gap time.Duration, terms ...string) {
	for i, term := range terms {
		if i > 0 {
			time.Sleep(gap)
		}
		s.OnInputChanged(term)
	}
}

func nextResult(t *testing.T, results <-chan []string) []string {
	t.Helper()
	select {
	case r, ok := <-results:
		require.True(t, ok, "results closed")
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no search result")
	}
	return nil
}

func assertNoResult(t *testing.T, results <-chan []string, wait time.Duration) {
	t.Helper()
	select {
	case r, ok := <-results:
		if ok {
			t.Fatalf("unexpected result %v", r)
		}
	case <-time.After(wait):
	}
}

func TestSession_SearchFetchesOnlyLastTermOfBurst(t *testing.T) {
	s, characters, _ := newTestSession(t)
	characters.On("FetchByTerm", mock.Anything, "leia").Return([]string{"Leia Organa"}, nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	results := s.SearchResults(ctx, make(chan error, 1))
	typeTerms(s, 5*time.Millisecond, "l", "le", "lei", "leia")

	assert.Equal(t, []string{"Leia Organa"}, nextResult(t, results))
	assertNoResult(t, results, 3*testDebounce)
	characters.AssertNumberOfCalls(t, "FetchByTerm", 1)
}

func TestSession_SearchIgnoresShortTerms(t *testing.T) {
	s, characters, _ := newTestSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	results := s.SearchResults(ctx, make(chan error, 1))

	typeTerms(s, 3*testDebounce, "ab", "a", "", "")
	assertNoResult(t, results, 3*testDebounce)
	characters.AssertNotCalled(t, "FetchByTerm", mock.Anything, mock.Anything)
}

func TestSession_SearchHonoursMinTermLength(t *testing.T) {
	s, characters, _ := newTestSession(t, Params{Debounce: testDebounce, MinTermLength: 5})
	characters.On("FetchByTerm", mock.Anything, "vader").Return([]string{"Darth Vader"}, nil).Once()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	results := s.SearchResults(ctx, make(chan error, 1))

	typeTerms(s, 3*testDebounce, "vad", "vader")
	assert.Equal(t, []string{"Darth Vader"}, nextResult(t, results))
	characters.AssertNumberOfCalls(t, "FetchByTerm", 1)
}

func TestSession_SearchDropsRepeatedTerm(t *testing.T) {
	s, characters, _ := newTestSession(t)
	characters.On("FetchByTerm", mock.Anything, "han").Return([]string{"Han Solo"}, nil).Once()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	results := s.SearchResults(ctx, make(chan error, 1))

	typeTerms(s, 3*testDebounce, "han", "han")
	assert.Equal(t, []string{"Han Solo"}, nextResult(t, results))
	assertNoResult(t, results, 3*testDebounce)
	characters.AssertNumberOfCalls(t, "FetchByTerm", 1)
}

func TestSession_SearchDiscardsSupersededFetch(t *testing.T) {
	s, characters, _ := newTestSession(t)
	gate := make(chan struct{})
	started := make(chan context.Context, 1)
	characters.On("FetchByTerm", mock.Anything, "luke").Run(func(args mock.Arguments) {
		started <- args.Get(0).(context.Context)
		<-gate
	}).Return([]string{"Luke Skywalker"}, nil).Once()
	characters.On("FetchByTerm", mock.Anything, "leia").Return([]string{"Leia Organa"}, nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	results := s.SearchResults(ctx, make(chan error, 1))

	s.OnInputChanged("luke")
	var lukeCtx context.Context
	select {
	case lukeCtx = <-started:
	case <-time.After(time.Second):
		t.Fatal("fetch for luke never started")
	}
	s.OnInputChanged("leia")

	assert.Equal(t, []string{"Leia Organa"}, nextResult(t, results))
	assert.ErrorIs(t, lukeCtx.Err(), context.Canceled)
	close(gate)
	assertNoResult(t, results, 3*testDebounce)
}

func TestSession_SearchFailureTerminatesResults(t *testing.T) {
	s, characters, _ := newTestSession(t)
	cause := errors.New("characters unavailable")
	characters.On("FetchByTerm", mock.Anything, "yoda").Return(nil, cause).Once()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errs := make(chan error, 1)
	results := s.SearchResults(ctx, errs)
	s.OnInputChanged("yoda")

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, cause)
		assert.True(t, datastreams.IsSwitchMapError(err))
	case <-time.After(2 * time.Second):
		t.Fatal("no search failure")
	}
	select {
	case _, ok := <-results:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("results not closed after failure")
	}

	characters.On("FetchByTerm", mock.Anything, "yoda!").Return([]string{"Yoda"}, nil).Once()
	rearmed := s.SearchResults(ctx, errs)
	s.OnInputChanged("yoda!")
	assert.Equal(t, []string{"Yoda"}, nextResult(t, rearmed))
}

func TestSession_SearchesAreIndependent(t *testing.T) {
	s, characters, _ := newTestSession(t)
	characters.On("FetchByTerm", mock.Anything, "chewie").Return([]string{"Chewbacca"}, nil).Twice()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a := s.SearchResults(ctx, make(chan error, 1))
	b := s.SearchResults(ctx, make(chan error, 1))

	s.OnInputChanged("chewie")
	assert.Equal(t, []string{"Chewbacca"}, nextResult(t, a))
	assert.Equal(t, []string{"Chewbacca"}, nextResult(t, b))
}

func TestSession_SearchEndsOnTeardown(t *testing.T) {
	s, _, _ := newTestSession(t)
	results := s.SearchResults(context.Background(), make(chan error, 1))
	s.Teardown()
	select {
	case _, ok := <-results:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("results not closed after teardown")
	}
	s.OnInputChanged("ignored")
}

func TestSession_TeardownDropsPendingTerm(t *testing.T) {
	s, characters, _ := newTestSession(t)
	results := s.SearchResults(context.Background(), make(chan error, 1))

	s.OnInputChanged("vader")
	time.Sleep(testDebounce / 8)
	s.Teardown()

	var delivered [][]string
	for records := range results {
		delivered = append(delivered, records)
	}
	time.Sleep(3 * testDebounce)
	assert.Empty(t, delivered)
	characters.AssertNotCalled(t, "FetchByTerm", mock.Anything, mock.Anything)
}

func TestSession_TeardownDiscardsInFlightFetch(t *testing.T) {
	s, characters, _ := newTestSession(t)
	started := make(chan struct{})
	gate := make(chan struct{})
	characters.On("FetchByTerm", mock.Anything, "obi-wan").Run(func(mock.Arguments) {
		close(started)
		<-gate
	}).Return([]string{"Obi-Wan Kenobi"}, nil).Once()
	results := s.SearchResults(context.Background(), make(chan error, 1))

	s.OnInputChanged("obi-wan")
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("fetch never started")
	}
	s.Teardown()
	close(gate)

	var delivered [][]string
	for records := range results {
		delivered = append(delivered, records)
	}
	assert.Empty(t, delivered)
}

func TestSession_LoadAfterTeardown(t *testing.T) {
	s, _, _ := newTestSession(t)
	s.Teardown()

	r := <-s.TriggerCombinedLoad(context.Background())
	assert.ErrorIs(t, r.Err, context.Canceled)
	assert.Nil(t, r.Records)
}

func TestSession_TriggerCombinedLoad(t *testing.T) {
	errPlanets := errors.New("planets unavailable")
	tests := []struct {
		name    string
		setup   func(characters, planets *mockSource)
		want    []string
		wantErr error
	}{
		{
			name: "characters then planets",
			setup: func(characters, planets *mockSource) {
				characters.On("FetchAll", mock.Anything).Return([]string{"C1", "C2"}, nil).After(20 * time.Millisecond)
				planets.On("FetchAll", mock.Anything).Return([]string{"P1", "P2"}, nil)
			},
			want: []string{"C1", "C2", "P1", "P2"},
		},
		{
			name: "planet failure with successful characters",
			setup: func(characters, planets *mockSource) {
				characters.On("FetchAll", mock.Anything).Return([]string{"C1"}, nil)
				planets.On("FetchAll", mock.Anything).Return(nil, errPlanets).After(10 * time.Millisecond)
			},
			wantErr: errPlanets,
		},
		{
			name: "planet failure while characters never finish",
			setup: func(characters, planets *mockSource) {
				characters.On("FetchAll", mock.Anything).Run(func(args mock.Arguments) {
					<-args.Get(0).(context.Context).Done()
				}).Return(nil, context.Canceled)
				planets.On("FetchAll", mock.Anything).Return(nil, errPlanets)
			},
			wantErr: errPlanets,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, characters, planets := newTestSession(t)
			tt.setup(characters, planets)

			var got []LoadResult[string]
			for r := range s.TriggerCombinedLoad(context.Background()) {
				got = append(got, r)
			}
			require.Len(t, got, 1)
			if tt.wantErr != nil {
				assert.ErrorIs(t, got[0].Err, tt.wantErr)
				assert.True(t, datastreams.IsJoinError(got[0].Err))
				assert.Nil(t, got[0].Records)
				return
			}
			assert.NoError(t, got[0].Err)
			assert.Equal(t, tt.want, got[0].Records)
		})
	}
}

func TestSession_TriggerCombinedLoadCancelled(t *testing.T) {
	s, characters, planets := newTestSession(t)
	block := func(args mock.Arguments) { <-args.Get(0).(context.Context).Done() }
	characters.On("FetchAll", mock.Anything).Run(block).Return(nil, context.Canceled)
	planets.On("FetchAll", mock.Anything).Run(block).Return(nil, context.Canceled)

	ctx, cancel := context.WithCancel(context.Background())
	load := s.TriggerCombinedLoad(ctx)
	cancel()
	r := <-load
	assert.ErrorIs(t, r.Err, context.Canceled)
}

func waitBusy(t *testing.T, s *Session[string], want bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		got, known := s.IsBusy()
		return known && got == want
	}, time.Second, time.Millisecond)
}

func TestSession_IsBusy(t *testing.T) {
	s, characters, planets := newTestSession(t)
	require.Eventually(t, func() bool { return characters.busy.Len() == 1 && planets.busy.Len() == 1 }, time.Second, time.Millisecond)

	_, known := s.IsBusy()
	assert.False(t, known)

	characters.busy.Publish(true)
	planets.busy.Publish(true)
	waitBusy(t, s, true)

	planets.busy.Publish(false)
	waitBusy(t, s, false)
}

func TestSession_IsBusyAnyRule(t *testing.T) {
	s, characters, planets := newTestSession(t, Params{Debounce: testDebounce, BusyRule: busy.Any})
	require.Eventually(t, func() bool { return characters.busy.Len() == 1 && planets.busy.Len() == 1 }, time.Second, time.Millisecond)

	characters.busy.Publish(true)
	planets.busy.Publish(false)
	waitBusy(t, s, true)
}

func TestSession_Teardown(t *testing.T) {
	s, characters, planets := newTestSession(t)
	require.Eventually(t, func() bool { return characters.busy.Len() == 1 && planets.busy.Len() == 1 }, time.Second, time.Millisecond)
	characters.busy.Publish(true)
	planets.busy.Publish(true)
	waitBusy(t, s, true)

	s.Teardown()
	assert.NotPanics(t, s.Teardown)
	assert.Equal(t, 0, characters.busy.Len())
	assert.Equal(t, 0, planets.busy.Len())

	before := s.busy.Recomputes()
	characters.busy.Publish(false)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, before, s.busy.Recomputes())
	flag, known := s.IsBusy()
	assert.True(t, known)
	assert.True(t, flag)
}

func TestSession_ConcurrentTeardown(t *testing.T) {
	var logs safeBuffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, _, _ := newTestSession(t, Params{Debounce: testDebounce, Logger: logger})
	var released atomic.Int32
	s.Track(lifecycle.NewFuncSubscription(func() { released.Add(1) }))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Teardown()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), released.Load())
	assert.Equal(t, 1, strings.Count(logs.String(), "session torn down"))
}

func TestSession_TrackReleasedOnTeardown(t *testing.T) {
	s, _, _ := newTestSession(t)
	released := 0
	s.Track(lifecycle.NewFuncSubscription(func() { released++ }))
	s.Teardown()
	s.Teardown()
	assert.Equal(t, 1, released)

	s.Track(lifecycle.NewFuncSubscription(func() { released++ }))
	assert.Equal(t, 2, released, "tracking after teardown releases immediately")
}

func TestSession_OnInputChangedNeverBlocks(t *testing.T) {
	s, _, _ := newTestSession(t)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			s.OnInputChanged("term")
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("OnInputChanged blocked")
	}
	assert.NotEmpty(t, s.ID())
}
