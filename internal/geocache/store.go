// Package geocache persists resolved address coordinates. The cache is
// append-only: rows are never updated or deleted, and readers tolerate
// duplicates by letting the last row for a key win.
package geocache

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/storesync/internal/model"
	"github.com/sells-group/storesync/internal/normalize"
)

// DefaultTable is the cache table name.
const DefaultTable = "location_cache"

// ErrCacheUnavailable reports that the cache backend could not be read or
// written. Callers degrade instead of aborting.
var ErrCacheUnavailable = eris.New("geocache: cache unavailable")

// Entry is one cache row. Address is the full provider query text.
type Entry struct {
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Coordinates returns the entry's coordinates.
func (e Entry) Coordinates() model.Coordinates {
	return model.Coordinates{Latitude: e.Latitude, Longitude: e.Longitude}
}

// Store is the contract consumed by the resolver.
type Store interface {
	FetchAll(ctx context.Context) ([]Entry, error)
	Append(ctx context.Context, entries []Entry) error
}

// Admin is implemented by persistent drivers for CLI maintenance.
type Admin interface {
	Store
	Migrate(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
	Close() error
}

// Index maps normalized address keys to coordinates.
type Index map[normalize.AddressKey]model.Coordinates

// BuildIndex keys entries with n. Later rows overwrite earlier ones and
// sentinel rows are skipped.
func BuildIndex(entries []Entry, n normalize.Normalizer) Index {
	idx := make(Index, len(entries))
	for _, e := range entries {
		c := e.Coordinates()
		if c.IsSentinel() {
			continue
		}
		idx[n.KeyFromAddress(e.Address)] = c
	}
	return idx
}

// Load reads every row from s and indexes it.
func Load(ctx context.Context, s Store, n normalize.Normalizer) (Index, error) {
	entries, err := s.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	return BuildIndex(entries, n), nil
}

// UnavailableError wraps a backend failure. It matches ErrCacheUnavailable
// under errors.Is and unwraps to the driver error.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("geocache: %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrCacheUnavailable.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrCacheUnavailable
}

func unavailable(op string, err error) error {
	return &UnavailableError{Op: op, Err: err}
}
