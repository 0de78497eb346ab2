// Package rerror defines the error-kind discipline spec.md §7 and §9 call
// for in place of the original's pervasive -1 sentinels: a single wrapped
// error type carrying a Kind, checked with errors.Is/errors.As, grounded on
// the errNotEnoughData-style sentinel wrapping fbclock/daemon uses.
package rerror

import (
	"errors"
	"fmt"
)

// Kind enumerates the error categories spec.md §9 names.
type Kind int

// Error kinds.
const (
	KindInsaneStamp Kind = iota
	KindQualityFail
	KindSanityFail
	KindStarving
	KindCounterChanged
	KindIoError
	KindConfigError
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindInsaneStamp:
		return "insane_stamp"
	case KindQualityFail:
		return "quality_fail"
	case KindSanityFail:
		return "sanity_fail"
	case KindStarving:
		return "starving"
	case KindCounterChanged:
		return "counter_changed"
	case KindIoError:
		return "io_error"
	case KindConfigError:
		return "config_error"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with the Kind that classifies it for
// control-flow purposes (status bits, retry policy, shutdown decisions).
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap builds an *Error of the given kind wrapping err. Returns nil if err
// is nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Is reports whether err is an *Error of the given kind, unwrapping as
// needed via errors.As.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
