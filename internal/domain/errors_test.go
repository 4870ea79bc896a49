package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsInformational(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrAlreadyCheckedIn, true},
		{ErrAlreadyCheckedOut, true},
		{fmt.Errorf("visit v1: %w", ErrAlreadyExited), true},
		{ErrNotCheckedIn, false},
		{ErrIllegalTransition, false},
		{ErrStoreUnavailable, false},
		{nil, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsInformational(tt.err), "%v", tt.err)
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("token: %w", ErrConcurrentUpdateConflict)))
	assert.False(t, IsRetryable(ErrStoreUnavailable))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("c1/visit/v1: %w", ErrNotFound)))
	assert.False(t, IsNotFound(ErrStoreUnavailable))
}
