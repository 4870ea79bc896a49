package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"frontdesk/internal/domain"
)

// Memory is a process-local Store. It is the default for development and
// the reference the other implementations are tested against.
type Memory struct {
	mu      sync.RWMutex
	records map[Key]Record
	now     func() time.Time
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{records: make(map[Key]Record), now: time.Now}
}

func (m *Memory) Get(ctx context.Context, key Key) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[key]
	if !ok {
		return Record{}, fmt.Errorf("%s: %w", key, domain.ErrNotFound)
	}
	return copyRecord(rec), nil
}

func (m *Memory) CompareAndSwap(ctx context.Context, key Key, expectedVersion int64, value []byte) (Record, error) {
	if err := key.Validate(); err != nil {
		return Record{}, err
	}
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.records[key]
	if (!ok && expectedVersion != 0) || (ok && cur.Version != expectedVersion) {
		return Record{}, fmt.Errorf("%s at version %d: %w", key, expectedVersion, domain.ErrConcurrentUpdateConflict)
	}

	rec := Record{
		Key:       key,
		Value:     append([]byte(nil), value...),
		Version:   expectedVersion + 1,
		UpdatedAt: m.now(),
	}
	m.records[key] = rec
	return copyRecord(rec), nil
}

func (m *Memory) List(ctx context.Context, clinicID string, kind Kind) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Record
	for k, rec := range m.records {
		if k.ClinicID == clinicID && k.Kind == kind {
			out = append(out, copyRecord(rec))
		}
	}
	sortRecords(out)
	return out, nil
}

func copyRecord(r Record) Record {
	r.Value = append([]byte(nil), r.Value...)
	return r
}
