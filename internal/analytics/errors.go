package analytics

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation       Kind = "validation"
	KindInsufficientData Kind = "insufficient_data"
	KindOutOfRange       Kind = "out_of_range"
	KindUpstream         Kind = "upstream"
)

var (
	ErrValidation       = errors.New("invalid request")
	ErrInsufficientData = errors.New("insufficient data")
	ErrOutOfRange       = errors.New("date out of range")
	ErrUpstream         = errors.New("upstream fetch failed")
)

// Error is the failure type returned by every calculator. Msg is safe to
// show to end users.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match an *Error against the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrInsufficientData:
		return e.Kind == KindInsufficientData
	case ErrOutOfRange:
		return e.Kind == KindOutOfRange
	case ErrUpstream:
		return e.Kind == KindUpstream
	}
	return false
}

func validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func insufficientf(format string, args ...any) error {
	return &Error{Kind: KindInsufficientData, Msg: fmt.Sprintf(format, args...)}
}

func outOfRangef(format string, args ...any) error {
	return &Error{Kind: KindOutOfRange, Msg: fmt.Sprintf(format, args...)}
}

// Upstream wraps a data-source failure.
func Upstream(err error) error {
	return &Error{Kind: KindUpstream, Msg: "failed to fetch nav data", Err: err}
}

// InsufficientData wraps a data-sufficiency failure raised outside this
// package, e.g. by nav.Normalize.
func InsufficientData(msg string, err error) error {
	return &Error{Kind: KindInsufficientData, Msg: msg, Err: err}
}

// Validation builds a validation failure for request-parsing layers.
func Validation(msg string) error {
	return &Error{Kind: KindValidation, Msg: msg}
}

// KindOf extracts the kind from err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
