package packing

import (
	"errors"
	"fmt"
	"time"
)

// Business error taxonomy for the packing subsystem. Lock and ownership
// failures are expected, recoverable conditions and carry enough context
// for a retry UI.
var (
	ErrNotFound            = errors.New("record not found")
	ErrLockHeld            = errors.New("order is being packed by another operator")
	ErrLockExpired         = errors.New("packing lock has expired")
	ErrNotOwner            = errors.New("packing lock is not held by caller")
	ErrForbidden           = errors.New("operation not allowed")
	ErrBarcodeUnresolvable = errors.New("barcode does not match any product")
	ErrProductNotInOrder   = errors.New("product is not part of the order")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidState        = errors.New("order state does not allow this operation")
)

// LockConflictError wraps ErrLockHeld/ErrNotOwner/ErrLockExpired with the
// current holder so the caller can render "being packed by X, try later".
type LockConflictError struct {
	Err       error
	Holder    string
	ExpiresAt *time.Time
}

func (e *LockConflictError) Error() string {
	if e.Holder != "" {
		return fmt.Sprintf("%s (holder: %s)", e.Err.Error(), e.Holder)
	}
	return e.Err.Error()
}

func (e *LockConflictError) Unwrap() error { return e.Err }

// CompletionError wraps ErrInvalidState with the verification and
// evidence gaps that block completePackaging.
type CompletionError struct {
	TotalItems    int
	VerifiedItems int
	PendingItems  int
	EvidenceCount int
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("packing cannot be completed: %d of %d items pending, %d evidence records",
		e.PendingItems, e.TotalItems, e.EvidenceCount)
}

func (e *CompletionError) Unwrap() error { return ErrInvalidState }
