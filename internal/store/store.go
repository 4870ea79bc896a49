// Package store defines the versioned record store the coordination core
// persists through, plus an in-memory and a Redis implementation. The SQL
// implementation lives in internal/database.
//
// Every record is addressed by (clinic, kind, id) and carries a version that
// increases by one on each successful write. Writers read a record, compute
// the new value and hand the version they read back to CompareAndSwap; a
// stale version yields domain.ErrConcurrentUpdateConflict and nothing is
// written. Version 0 means "create, the record must not exist yet".
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"frontdesk/internal/domain"
)

// Kind is the record family inside a clinic's keyspace.
type Kind string

const (
	KindToken      Kind = "token"
	KindVisit      Kind = "visit"
	KindAttendance Kind = "attendance"
)

// Key addresses one record.
type Key struct {
	ClinicID string
	Kind     Kind
	ID       string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.ClinicID, k.Kind, k.ID)
}

// Validate rejects keys with empty components.
func (k Key) Validate() error {
	if k.ClinicID == "" || k.Kind == "" || k.ID == "" {
		return fmt.Errorf("key %q: %w", k.String(), domain.ErrInvalidArgument)
	}
	return nil
}

// Record is a stored value with its version.
type Record struct {
	Key       Key
	Value     []byte
	Version   int64
	UpdatedAt time.Time
}

// Store is the persistence boundary of the core.
type Store interface {
	// Get returns domain.ErrNotFound when the record does not exist.
	Get(ctx context.Context, key Key) (Record, error)
	// CompareAndSwap writes value if the stored version equals expectedVersion
	// (0 for a record that must not exist) and returns the new record.
	CompareAndSwap(ctx context.Context, key Key, expectedVersion int64, value []byte) (Record, error)
	// List returns every record of kind for a clinic, ordered by id.
	List(ctx context.Context, clinicID string, kind Kind) ([]Record, error)
}

// Pinger is implemented by stores backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// GetJSON loads and decodes a record.
func GetJSON[T any](ctx context.Context, s Store, key Key) (T, Record, error) {
	var v T
	rec, err := s.Get(ctx, key)
	if err != nil {
		return v, Record{}, err
	}
	if err := json.Unmarshal(rec.Value, &v); err != nil {
		return v, Record{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, rec, nil
}

// ListJSON loads and decodes every record of kind for a clinic.
func ListJSON[T any](ctx context.Context, s Store, clinicID string, kind Kind) ([]T, error) {
	recs, err := s.List(ctx, clinicID, kind)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		var v T
		if err := json.Unmarshal(rec.Value, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", rec.Key, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func sortRecords(recs []Record) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].Key.ID < recs[j].Key.ID })
}

func unavailable(op string, err error) error {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
