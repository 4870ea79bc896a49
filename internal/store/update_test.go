package store

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"frontdesk/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, key Key) (Record, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(Record), args.Error(1)
}

func (m *MockStore) CompareAndSwap(ctx context.Context, key Key, version int64, value []byte) (Record, error) {
	args := m.Called(ctx, key, version, value)
	return args.Get(0).(Record), args.Error(1)
}

func (m *MockStore) List(ctx context.Context, clinicID string, kind Kind) ([]Record, error) {
	args := m.Called(ctx, clinicID, kind)
	return args.Get(0).([]Record), args.Error(1)
}

// racingStore lets another writer bump the record right before the first
// compare-and-swap, forcing one lost race.
type racingStore struct {
	*Memory
	once sync.Once
}

func (r *racingStore) CompareAndSwap(ctx context.Context, key Key, version int64, value []byte) (Record, error) {
	r.once.Do(func() {
		_, _ = r.Memory.CompareAndSwap(ctx, key, version, []byte("10"))
	})
	return r.Memory.CompareAndSwap(ctx, key, version, value)
}

func increment(current []byte, found bool) ([]byte, error) {
	n := 0
	if found {
		var err error
		if n, err = strconv.Atoi(string(current)); err != nil {
			return nil, err
		}
	}
	return []byte(strconv.Itoa(n + 1)), nil
}

func TestUpdate_CreatesAndIncrements(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	key := Key{ClinicID: "c1", Kind: KindToken, ID: "c1"}

	rec, err := Update(ctx, s, key, 3, increment)
	require.NoError(t, err)
	assert.Equal(t, "1", string(rec.Value))

	rec, err = Update(ctx, s, key, 3, increment)
	require.NoError(t, err)
	assert.Equal(t, "2", string(rec.Value))
	assert.Equal(t, int64(2), rec.Version)
}

func TestUpdate_RetriesLostRace(t *testing.T) {
	ctx := context.Background()
	s := &racingStore{Memory: NewMemory()}
	key := Key{ClinicID: "c1", Kind: KindToken, ID: "c1"}

	rec, err := Update(ctx, s, key, 3, increment)
	require.NoError(t, err)
	assert.Equal(t, "11", string(rec.Value), "second attempt must build on the concurrent write")
	assert.Equal(t, int64(2), rec.Version)
}

func TestUpdate_GivesUpAfterAttempts(t *testing.T) {
	ctx := context.Background()
	key := Key{ClinicID: "c1", Kind: KindToken, ID: "c1"}

	m := new(MockStore)
	m.On("Get", ctx, key).Return(Record{Key: key, Value: []byte("1"), Version: 1}, nil)
	m.On("CompareAndSwap", ctx, key, int64(1), []byte("2")).Return(Record{}, domain.ErrConcurrentUpdateConflict)

	_, err := Update(ctx, m, key, 2, increment)
	assert.ErrorIs(t, err, domain.ErrConcurrentUpdateConflict)
	m.AssertNumberOfCalls(t, "CompareAndSwap", 2)
}

func TestUpdate_StopsOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	key := Key{ClinicID: "c1", Kind: KindToken, ID: "c1"}

	m := new(MockStore)
	m.On("Get", ctx, key).Return(Record{}, domain.ErrStoreUnavailable)

	_, err := Update(ctx, m, key, 5, increment)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	m.AssertNotCalled(t, "CompareAndSwap", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdate_MutateErrorWritesNothing(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	key := Key{ClinicID: "c1", Kind: KindToken, ID: "c1"}
	boom := errors.New("boom")

	_, err := Update(ctx, s, key, 3, func([]byte, bool) ([]byte, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateJSON(t *testing.T) {
	type counter struct {
		N int `json:"n"`
	}
	ctx := context.Background()
	s := NewMemory()
	key := Key{ClinicID: "c1", Kind: KindToken, ID: "c1"}

	for i := 0; i < 3; i++ {
		_, err := UpdateJSON(ctx, s, key, 0, func(c *counter, found bool) error {
			assert.Equal(t, i > 0, found)
			c.N++
			return nil
		})
		require.NoError(t, err)
	}

	got, rec, err := GetJSON[counter](ctx, s, key)
	require.NoError(t, err)
	assert.Equal(t, 3, got.N)
	assert.Equal(t, int64(3), rec.Version)

	all, err := ListJSON[counter](ctx, s, "c1", KindToken)
	require.NoError(t, err)
	assert.Equal(t, []counter{{N: 3}}, all)
}

func TestUpdate_ConcurrentWritersAllLand(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	key := Key{ClinicID: "c1", Kind: KindToken, ID: "c1"}

	const writers = 20
	var wg sync.WaitGroup
	var lock KeyedMutex
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := lock.Lock(key.String())
			defer unlock()
			_, err := Update(ctx, s, key, 3, increment)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rec, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(writers), string(rec.Value))
	assert.Zero(t, lock.Len())
}
