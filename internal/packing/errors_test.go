package packing

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLockConflictErrorUnwrap(t *testing.T) {
	expires := time.Now().Add(5 * time.Minute)
	err := &LockConflictError{Err: ErrLockHeld, Holder: "carlos", ExpiresAt: &expires}

	assert.True(t, errors.Is(err, ErrLockHeld))
	assert.False(t, errors.Is(err, ErrLockExpired))
	assert.Contains(t, err.Error(), "carlos")

	var conflict *LockConflictError
	assert.True(t, errors.As(err, &conflict))
	assert.Equal(t, "carlos", conflict.Holder)
}

func TestLockConflictErrorWithoutHolder(t *testing.T) {
	err := &LockConflictError{Err: ErrNotOwner}
	assert.Equal(t, ErrNotOwner.Error(), err.Error())
}

func TestCompletionErrorUnwrap(t *testing.T) {
	err := &CompletionError{TotalItems: 5, VerifiedItems: 3, PendingItems: 2, EvidenceCount: 0}

	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.Contains(t, err.Error(), "2 of 5 items pending")
}
