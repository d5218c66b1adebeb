package gateway

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrUnavailable is returned by sources configured to fail
var ErrUnavailable = errors.New("source unavailable")

// Kind names the logical source a Record belongs to
type Kind string

const (
	Character Kind = "character"
	Planet    Kind = "planet"
)

// Record is a single named entry served by a Source
type Record struct {
	ID   string `yaml:"id,omitempty" json:"id"`
	Kind Kind   `yaml:"kind,omitempty" json:"kind"`
	Name string `yaml:"name" json:"name"`
}

// NewRecord builds a Record whose ID is derived from its kind and name, so the
// same record gets the same ID in every backend.
func NewRecord(kind Kind, name string) Record {
	return Record{
		ID:   RecordID(kind, name),
		Kind: kind,
		Name: name,
	}
}

// RecordID derives a stable ID for a record
func RecordID(kind Kind, name string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(string(kind)+":"+name)).String()
}

// Source is the contract the search session consumes. FetchByTerm and FetchAll
// may fail and must honour ctx cancellation. BusySignal subscribes to the
// source's busy edges; the returned func ends the subscription.
type Source[T any] interface {
	FetchByTerm(ctx context.Context, term string) ([]T, error)
	FetchAll(ctx context.Context) ([]T, error)
	BusySignal() (<-chan bool, func())
}
