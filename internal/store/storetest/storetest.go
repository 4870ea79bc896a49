// Package storetest holds the behaviour every store.Store implementation
// must share. Implementations call Run from their own tests with an empty
// store.
package storetest

import (
	"context"
	"testing"

	"frontdesk/internal/domain"
	"frontdesk/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises s. It creates records under clinics c1 and c2.
func Run(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()
	key := store.Key{ClinicID: "c1", Kind: store.KindVisit, ID: "v1"}

	t.Run("GetMissing", func(t *testing.T) {
		_, err := s.Get(ctx, key)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("CreateThenConflictOnRecreate", func(t *testing.T) {
		rec, err := s.CompareAndSwap(ctx, key, 0, []byte(`{"n":1}`))
		require.NoError(t, err)
		assert.Equal(t, int64(1), rec.Version)

		_, err = s.CompareAndSwap(ctx, key, 0, []byte(`{"n":2}`))
		assert.ErrorIs(t, err, domain.ErrConcurrentUpdateConflict)
	})

	t.Run("UpdateWithVersion", func(t *testing.T) {
		rec, err := s.CompareAndSwap(ctx, key, 1, []byte(`{"n":2}`))
		require.NoError(t, err)
		assert.Equal(t, int64(2), rec.Version)

		_, err = s.CompareAndSwap(ctx, key, 1, []byte(`{"n":3}`))
		assert.ErrorIs(t, err, domain.ErrConcurrentUpdateConflict)

		got, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, `{"n":2}`, string(got.Value))
		assert.Equal(t, int64(2), got.Version)
	})

	t.Run("UpdateMissingWithVersionConflicts", func(t *testing.T) {
		_, err := s.CompareAndSwap(ctx, store.Key{ClinicID: "c1", Kind: store.KindVisit, ID: "nope"}, 4, []byte(`{}`))
		assert.ErrorIs(t, err, domain.ErrConcurrentUpdateConflict)
	})

	t.Run("ListIsScopedAndOrdered", func(t *testing.T) {
		_, err := s.CompareAndSwap(ctx, store.Key{ClinicID: "c1", Kind: store.KindVisit, ID: "v0"}, 0, []byte(`{"n":0}`))
		require.NoError(t, err)
		_, err = s.CompareAndSwap(ctx, store.Key{ClinicID: "c2", Kind: store.KindVisit, ID: "v9"}, 0, []byte(`{}`))
		require.NoError(t, err)
		_, err = s.CompareAndSwap(ctx, store.Key{ClinicID: "c1", Kind: store.KindToken, ID: "c1"}, 0, []byte(`{}`))
		require.NoError(t, err)

		recs, err := s.List(ctx, "c1", store.KindVisit)
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, "v0", recs[0].Key.ID)
		assert.Equal(t, "v1", recs[1].Key.ID)
		assert.Equal(t, `{"n":2}`, string(recs[1].Value))

		recs, err = s.List(ctx, "c3", store.KindVisit)
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	t.Run("InvalidKey", func(t *testing.T) {
		_, err := s.CompareAndSwap(ctx, store.Key{ClinicID: "c1", Kind: store.KindVisit}, 0, []byte(`{}`))
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}
