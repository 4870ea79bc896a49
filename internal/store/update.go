package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"frontdesk/internal/domain"
	"frontdesk/internal/metrics"
)

// DefaultAttempts bounds the optimistic retry loop when callers pass zero.
const DefaultAttempts = 5

// MutateFunc computes the next value from the current one. found is false
// when the record does not exist yet. Returning an error aborts the update
// without writing.
type MutateFunc func(current []byte, found bool) ([]byte, error)

// Update runs one read-modify-write against s, retrying lost races up to
// attempts times. Each attempt re-reads the record, so mutate must be free of
// side effects.
func Update(ctx context.Context, s Store, key Key, attempts int, mutate MutateFunc) (Record, error) {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}

	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return Record{}, err
		}

		var (
			current []byte
			version int64
			found   = true
		)
		rec, err := s.Get(ctx, key)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			found = false
		case err != nil:
			return Record{}, err
		default:
			current, version = rec.Value, rec.Version
		}

		next, err := mutate(current, found)
		if err != nil {
			return Record{}, err
		}

		rec, err = s.CompareAndSwap(ctx, key, version, next)
		if err == nil {
			return rec, nil
		}
		if !domain.IsRetryable(err) {
			return Record{}, err
		}
		metrics.IncStoreConflict(string(key.Kind))
	}

	return Record{}, fmt.Errorf("%s after %d attempts: %w", key, attempts, domain.ErrConcurrentUpdateConflict)
}

// UpdateJSON is Update over a JSON-encoded T. mutate receives the decoded
// current value (the zero T when found is false) and edits it in place.
func UpdateJSON[T any](ctx context.Context, s Store, key Key, attempts int, mutate func(v *T, found bool) error) (T, error) {
	var out T
	_, err := Update(ctx, s, key, attempts, func(current []byte, found bool) ([]byte, error) {
		var v T
		if found {
			if err := json.Unmarshal(current, &v); err != nil {
				return nil, fmt.Errorf("decode %s: %w", key, err)
			}
		}
		if err := mutate(&v, found); err != nil {
			return nil, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		out = v
		return data, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
