package dblayer

import (
	"errors"
	"fmt"

	"golang.org/x/xerrors"
)

var (
	// ErrPersistenceFailure matches (via errors.Is) every failure of the
	// underlying store: reads, writes, decoding, and commits.
	ErrPersistenceFailure = errors.New("persistence failure")

	ErrMedicationNotFound  = errors.New("no medication with that ID")
	ErrMedicationNameEmpty = errors.New("medication name must not be empty")
	ErrMealTimeNotFound    = errors.New("no meal time with that key")
	ErrMealTimeKeyEmpty    = errors.New("meal time key must not be empty")
	ErrMealTimeKeyExists   = errors.New("meal time key already exists")
	ErrInvalidTimeOfDay    = errors.New("hour must be 0-23 and minute 0-59")
	ErrDoseNotFound        = errors.New("no dose with that ID")
	ErrDuplicateDose       = errors.New("medication already has a dose at that meal time on that day")
	ErrReadOnly            = errors.New("write in read-only transaction")
)

// Error is a failure of the underlying key-value store.
type Error struct {
	Op string

	inner error
	frame xerrors.Frame
}

func newError(op string, inner error) *Error {
	return &Error{
		Op:    op,
		inner: inner,
		frame: xerrors.Caller(1),
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s during %s: %v", ErrPersistenceFailure, e.Op, e.inner)
}

func (e *Error) Format(f fmt.State, c rune) { // implements fmt.Formatter
	xerrors.FormatError(e, f, c)
}

func (e *Error) FormatError(p xerrors.Printer) error { // implements xerrors.Formatter
	p.Printf("%s during %s", ErrPersistenceFailure, e.Op)
	if p.Detail() {
		e.frame.Format(p)
	}
	return e.inner
}

func (e *Error) Is(target error) bool {
	return target == ErrPersistenceFailure
}

func (e *Error) Unwrap() error {
	return e.inner
}
