package searchflow

import (
	"log/slog"
	"time"

	"github.com/elastiflow/searchflow/busy"
	"github.com/elastiflow/searchflow/gateway"
)

const (
	// DefaultDebounce is the quiet window a search term must survive before it is fetched
	DefaultDebounce = 300 * time.Millisecond
	// DefaultMinTermLength is the shortest term that triggers a fetch
	DefaultMinTermLength = 3
)

// Params tune a Session. Zero values select the defaults.
type Params struct {
	Debounce      time.Duration
	MinTermLength int
	BusyRule      busy.Rule
	Logger        *slog.Logger
}

func (p Params) withDefaults() Params {
	if p.Debounce <= 0 {
		p.Debounce = DefaultDebounce
	}
	if p.MinTermLength <= 0 {
		p.MinTermLength = DefaultMinTermLength
	}
	if p.BusyRule == nil {
		p.BusyRule = busy.All
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	return p
}

// Props defines the properties of a new Session
type Props[T any] struct {
	characters gateway.Source[T]
	planets    gateway.Source[T]
	params     Params
}

// NewProps creates a new Props
func NewProps[T any](
	characters gateway.Source[T],
	planets gateway.Source[T],
	params ...Params,
) *Props[T] {
	var p Params
	for _, param := range params {
		p = param
	}
	return &Props[T]{
		characters: characters,
		planets:    planets,
		params:     p.withDefaults(),
	}
}
