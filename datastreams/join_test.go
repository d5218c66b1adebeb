package datastreams

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func delayed(values []string, d time.Duration, err error) Fetcher[string] {
	return func(ctx context.Context) ([]string, error) {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return values, err
	}
}

func TestJoin(t *testing.T) {
	errPlanets := errors.New("planets unavailable")
	tests := []struct {
		name     string
		fetchers []Fetcher[string]
		want     [][]string
		wantErr  error
	}{
		{
			name: "concatenates in argument order",
			fetchers: []Fetcher[string]{
				delayed([]string{"C1", "C2"}, 0, nil),
				delayed([]string{"P1", "P2"}, 0, nil),
			},
			want: [][]string{{"C1", "C2", "P1", "P2"}},
		},
		{
			name: "order holds when the second fetch resolves first",
			fetchers: []Fetcher[string]{
				delayed([]string{"C1", "C2"}, 40*time.Millisecond, nil),
				delayed([]string{"P1", "P2"}, 0, nil),
			},
			want: [][]string{{"C1", "C2", "P1", "P2"}},
		},
		{
			name: "empty results join to an empty slice",
			fetchers: []Fetcher[string]{
				delayed(nil, 0, nil),
				delayed(nil, 0, nil),
			},
			want: [][]string{{}},
		},
		{
			name: "failure of either fetch yields a single error",
			fetchers: []Fetcher[string]{
				delayed([]string{"C1"}, 0, nil),
				delayed(nil, 10*time.Millisecond, errPlanets),
			},
			wantErr: errPlanets,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			errs := make(chan error, 2)
			got := collect(t, Join(ctx, errs, tt.fetchers, Params{SegmentName: "load"}).Out())
			if tt.wantErr == nil {
				assert.Equal(t, tt.want, got)
				assert.Empty(t, errs)
				return
			}
			assert.Empty(t, got)
			require.Len(t, errs, 1)
			err := <-errs
			assert.True(t, IsJoinError(err))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestJoin_FailureDoesNotWaitForSibling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stuck := make(chan struct{})
	defer close(stuck)
	var siblingCtx context.Context
	started := make(chan struct{})
	fetchers := []Fetcher[string]{
		func(ctx context.Context) ([]string, error) {
			siblingCtx = ctx
			close(started)
			<-stuck
			return []string{"C1"}, nil
		},
		func(ctx context.Context) ([]string, error) {
			<-started
			return nil, errors.New("planets unavailable")
		},
	}
	errs := make(chan error, 1)
	out := Join(ctx, errs, fetchers).Out()

	select {
	case err := <-errs:
		assert.True(t, IsJoinError(err))
	case <-time.After(time.Second):
		t.Fatal("join waited for the stuck fetch")
	}
	assert.Empty(t, collect(t, out))
	assert.ErrorIs(t, siblingCtx.Err(), context.Canceled)
}

func TestJoin_DoneContextSkipsFetchers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	fetch := func(context.Context) ([]string, error) {
		called = true
		return []string{"C1"}, nil
	}
	errs := make(chan error, 1)
	out := Join(ctx, errs, []Fetcher[string]{fetch, fetch}).Out()

	assert.Empty(t, collect(t, out))
	assert.False(t, called)
	assert.Empty(t, errs)
}
