package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for every failure a ledger call can surface.
var (
	ErrUnauthorized       = errors.New("not authorized")
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrNotInitialized     = errors.New("not initialized")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrPolicyNotFound     = errors.New("policy not found")
	ErrInvalidState       = errors.New("invalid policy state")
	ErrNothingToClaim     = errors.New("nothing to claim")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrTransferFailed     = errors.New("transfer failed")
	ErrReentrancy         = errors.New("reentrancy detected")
)

// TransitionError is returned when a state transition is not allowed.
type TransitionError struct {
	Event   Event
	Current Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %q is not valid from state %q", e.Event, e.Current)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidState }

// ArgumentError reports a rejected call argument.
type ArgumentError struct {
	Argument string
	Reason   string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %s: %s", e.Argument, e.Reason)
}

func (e *ArgumentError) Unwrap() error { return ErrInvalidArgument }

// StateError is returned when a claim targets a policy whose status does not
// allow it.
type StateError struct {
	PolicyID uint64
	Status   Status
}

func (e *StateError) Error() string {
	if e.Status == StatusInactive {
		return fmt.Sprintf("policy %d is inactive", e.PolicyID)
	}
	return fmt.Sprintf("policy %d is %s, not delayed or delivered", e.PolicyID, e.Status)
}

func (e *StateError) Unwrap() error { return ErrInvalidState }

// TransferError is returned when the value transfer service errors or
// reports failure. Err is nil for a logical (false) result.
type TransferError struct {
	Op  string
	Err error
}

func (e *TransferError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s failed", e.Op)
}

func (e *TransferError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrTransferFailed, e.Err}
	}
	return []error{ErrTransferFailed}
}
