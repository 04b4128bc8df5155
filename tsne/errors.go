package tsne

import (
	"fmt"

	"github.com/teranos/rtsne/errors"
)

var (
	// ErrArgumentType marks a value that could not be converted to the native
	// parameter type. The routine is never invoked when this is returned.
	ErrArgumentType = errors.New("argument type error")

	// ErrNativeComputation marks any failure raised inside the routine.
	ErrNativeComputation = errors.New("native computation error")
)

// ArgumentTypeError describes which argument failed conversion and why.
type ArgumentTypeError struct {
	Arg    string
	Reason string
}

func (e *ArgumentTypeError) Error() string {
	return fmt.Sprintf("argument %s: %s", e.Arg, e.Reason)
}

// NativeComputationError carries a routine failure across the boundary.
// Error returns the routine's message verbatim.
type NativeComputationError struct {
	Err error
}

func (e *NativeComputationError) Error() string { return e.Err.Error() }

func (e *NativeComputationError) Unwrap() error { return e.Err }

// NewArgumentTypeError returns an ErrArgumentType error for arg. Input
// readers use it so malformed files fail like malformed call arguments.
func NewArgumentTypeError(arg, format string, args ...interface{}) error {
	return argumentError(arg, format, args...)
}

func argumentError(arg, format string, args ...interface{}) error {
	return errors.Mark(&ArgumentTypeError{Arg: arg, Reason: fmt.Sprintf(format, args...)}, ErrArgumentType)
}

func nativeError(err error) error {
	var existing *NativeComputationError
	if errors.As(err, &existing) {
		return errors.Mark(err, ErrNativeComputation)
	}
	return errors.Mark(&NativeComputationError{Err: err}, ErrNativeComputation)
}

// IsArgumentTypeError reports whether err is a conversion failure.
func IsArgumentTypeError(err error) bool {
	return err != nil && errors.Is(err, ErrArgumentType)
}

// IsNativeComputationError reports whether err came from the routine.
func IsNativeComputationError(err error) bool {
	return err != nil && errors.Is(err, ErrNativeComputation)
}
