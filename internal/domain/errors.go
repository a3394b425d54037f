package domain

import (
	"errors"
	"fmt"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// One sentinel per error kind. Every error the resolver returns matches
// exactly one of these through errors.Is.

var (
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrNotFound             = errors.New("not found")
	ErrInsufficientResource = errors.New("insufficient energy")
	ErrActionUnavailable    = errors.New("action unavailable at location")
	ErrStorage              = errors.New("storage failure")

	// ErrConflict means the optimistic retry was exhausted.
	ErrConflict = errors.New("concurrent update conflict")

	// ErrVersionConflict is returned by stores when a compare-and-set misses.
	ErrVersionConflict = errors.New("actor version mismatch")
)

// ErrorKind is the machine-readable classification sent to clients.
type ErrorKind string

const (
	KindInvalidArgument      ErrorKind = "InvalidArgument"
	KindNotFound             ErrorKind = "NotFound"
	KindInsufficientResource ErrorKind = "InsufficientResource"
	KindActionUnavailable    ErrorKind = "ActionUnavailable"
	KindConflict             ErrorKind = "Conflict"
	KindStorage              ErrorKind = "StorageError"
)

// KindOf classifies err. Anything unrecognised is a storage failure.
func KindOf(err error) ErrorKind {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInsufficientResource):
		return KindInsufficientResource
	case errors.Is(err, ErrActionUnavailable):
		return KindActionUnavailable
	case errors.Is(err, ErrConflict), errors.Is(err, ErrVersionConflict):
		return KindConflict
	default:
		return KindStorage
	}
}

// InsufficientResourceError is a business-rule rejection, not a failure.
// It carries the numbers the client needs to explain the shortfall.
type InsufficientResourceError struct {
	Energy   int
	Cost     int
	Capacity int
}

func (e *InsufficientResourceError) Error() string {
	return fmt.Sprintf("energy %d is below action cost %d (capacity %d)", e.Energy, e.Cost, e.Capacity)
}

func (e *InsufficientResourceError) Unwrap() error { return ErrInsufficientResource }

// StorageError wraps a collaborator failure. Op names the failed operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes both the sentinel and the cause, so a wrapped
// ErrVersionConflict is still detectable.
func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }

// Storage wraps err as a StorageError unless it is nil or already classified.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorage) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrVersionConflict) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// ─── Action Errors ──────────────────────────────────────────────────────────

// ActionError is the classified form of any failure returned by an action.
// It matches the sentinel for its kind, and the cause when there is one.
type ActionError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// NewActionError builds an ActionError with no underlying cause.
func NewActionError(kind ErrorKind, format string, args ...interface{}) *ActionError {
	return &ActionError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *ActionError) Error() string { return e.Message }

func (e *ActionError) Unwrap() []error {
	if e.Err == nil {
		return []error{sentinelFor(e.Kind)}
	}
	return []error{sentinelFor(e.Kind), e.Err}
}

// AsActionError classifies err. An ActionError already in the chain keeps
// its kind; anything else is classified with KindOf. Returns nil for nil.
func AsActionError(err error) *ActionError {
	if err == nil {
		return nil
	}
	var ae *ActionError
	if errors.As(err, &ae) {
		if ae == err {
			return ae
		}
		return &ActionError{Kind: ae.Kind, Message: err.Error(), Err: err}
	}
	return &ActionError{Kind: KindOf(err), Message: err.Error(), Err: err}
}

func sentinelFor(k ErrorKind) error {
	switch k {
	case KindInvalidArgument:
		return ErrInvalidArgument
	case KindNotFound:
		return ErrNotFound
	case KindInsufficientResource:
		return ErrInsufficientResource
	case KindActionUnavailable:
		return ErrActionUnavailable
	case KindConflict:
		return ErrConflict
	default:
		return ErrStorage
	}
}
