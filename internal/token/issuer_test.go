package token

import (
	"context"
	"sort"
	"sync"
	"testing"

	"frontdesk/internal/clock"
	"frontdesk/internal/domain"
	"frontdesk/internal/models"
	"frontdesk/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, key store.Key) (store.Record, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(store.Record), args.Error(1)
}

func (m *MockStore) CompareAndSwap(ctx context.Context, key store.Key, version int64, value []byte) (store.Record, error) {
	args := m.Called(ctx, key, version, value)
	return args.Get(0).(store.Record), args.Error(1)
}

func (m *MockStore) List(ctx context.Context, clinicID string, kind store.Kind) ([]store.Record, error) {
	args := m.Called(ctx, clinicID, kind)
	return args.Get(0).([]store.Record), args.Error(1)
}

var day = clock.NewDate(2025, 1, 15)

func TestNext(t *testing.T) {
	tests := []struct {
		name      string
		cur       models.DailyToken
		found     bool
		wantValue int
		wantReset bool
	}{
		{"first ever", models.DailyToken{}, false, 1, false},
		{"same day", models.DailyToken{CurrentValue: 41, LastIssuedDate: day}, true, 42, false},
		{"new day", models.DailyToken{CurrentValue: 41, LastIssuedDate: day.AddDays(-1)}, true, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, reset := Next(tt.cur, tt.found, day)
			assert.Equal(t, tt.wantValue, next.CurrentValue)
			assert.Equal(t, day, next.LastIssuedDate)
			assert.Equal(t, tt.wantReset, reset)
		})
	}
}

func TestIssuer_SequenceAndReset(t *testing.T) {
	ctx := context.Background()
	iss := NewIssuer(store.NewMemory(), 3, zerolog.Nop())

	for want := 1; want <= 3; want++ {
		got, err := iss.Issue(ctx, "c1", day)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	got, err := iss.Issue(ctx, "c1", day.AddDays(1))
	require.NoError(t, err)
	assert.Equal(t, 1, got, "counter resets on the clinic's next calendar day")

	got, err = iss.Issue(ctx, "c2", day)
	require.NoError(t, err)
	assert.Equal(t, 1, got, "clinics have independent counters")

	tok, found, err := iss.Current(ctx, "c1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.DailyToken{ClinicID: "c1", CurrentValue: 1, LastIssuedDate: day.AddDays(1)}, tok)

	_, found, err = iss.Current(ctx, "c9")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIssuer_ConcurrentIssuesAreUnique(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	// Two issuers over one store stand in for two processes: the per-clinic
	// lock only covers one of them, the compare-and-swap covers both.
	issuers := []*Issuer{NewIssuer(s, 100, zerolog.Nop()), NewIssuer(s, 100, zerolog.Nop())}

	const n = 40
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		got []int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(iss *Issuer) {
			defer wg.Done()
			v, err := iss.Issue(ctx, "c1", day)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			got = append(got, v)
			mu.Unlock()
		}(issuers[i%2])
	}
	wg.Wait()

	sort.Ints(got)
	want := make([]int, n)
	for i := range want {
		want[i] = i + 1
	}
	assert.Equal(t, want, got)
}

func TestIssuer_StoreUnavailable(t *testing.T) {
	ctx := context.Background()
	m := new(MockStore)
	m.On("Get", mock.Anything, mock.Anything).Return(store.Record{}, domain.ErrStoreUnavailable)

	iss := NewIssuer(m, 3, zerolog.Nop())
	_, err := iss.Issue(ctx, "c1", day)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	m.AssertNotCalled(t, "CompareAndSwap", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestIssuer_InvalidArguments(t *testing.T) {
	iss := NewIssuer(store.NewMemory(), 3, zerolog.Nop())
	_, err := iss.Issue(context.Background(), "", day)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = iss.Issue(context.Background(), "c1", clock.Date{})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}
