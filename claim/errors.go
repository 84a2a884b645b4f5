package claim

import (
	"errors"
	"fmt"
)

var (
	// ErrAdminOnly rejects a non-admin caller of an admin operation.
	ErrAdminOnly = errors.New("admin only")

	ErrInvalidSlot        = errors.New("invalid slot index")
	ErrSlotState          = errors.New("slot not in required state")
	ErrClaimWindowNotOpen = errors.New("claim window not yet open")
	ErrClaimWindowClosed  = errors.New("claim window closed")
	ErrNoClaimRecord      = errors.New("no claim record")
	ErrNotEligible        = errors.New("account has no points")
	ErrInvalidWindow      = errors.New("claim window start after end")
	ErrEmptyACL           = errors.New("admin set must not be empty")
	ErrRateLimited        = errors.New("ingestion rate limit exceeded")
	ErrInsufficientPool   = errors.New("insufficient pool balance")
)

// SlotError attributes a failure to one ladder slot.
type SlotError struct {
	Index uint8
	Err   error
}

func (e *SlotError) Error() string {
	return fmt.Sprintf("slot %d: %v", e.Index, e.Err)
}

func (e *SlotError) Unwrap() error { return e.Err }

// ExternalCallError reports a failed ledger or governance call. The slot the
// call was made for is left as it was before the call; retrying is safe.
type ExternalCallError struct {
	Op  string
	Err error
}

func (e *ExternalCallError) Error() string {
	return fmt.Sprintf("external call %s failed: %v", e.Op, e.Err)
}

func (e *ExternalCallError) Unwrap() error { return e.Err }

// InsufficientPoolError details a payout the pool could not cover. It
// matches ErrInsufficientPool with errors.Is.
type InsufficientPoolError struct {
	Requested string
	Available string
}

func (e *InsufficientPoolError) Error() string {
	return fmt.Sprintf("%v: requested %s, available %s", ErrInsufficientPool, e.Requested, e.Available)
}

func (e *InsufficientPoolError) Is(target error) bool { return target == ErrInsufficientPool }
