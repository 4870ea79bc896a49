package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	key := Key{ClinicID: "c1", Kind: KindToken, ID: "c1"}

	value := []byte("abc")
	_, err := m.CompareAndSwap(ctx, key, 0, value)
	require.NoError(t, err)
	value[0] = 'x'

	rec, err := m.Get(ctx, key)
	require.NoError(t, err)
	rec.Value[1] = 'y'

	again, err := m.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again.Value))
}

func TestMemory_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemory().Get(ctx, Key{ClinicID: "c1", Kind: KindToken, ID: "c1"})
	assert.ErrorIs(t, err, context.Canceled)
}
