package remote

import (
	"errors"
	"fmt"
)

// ErrQuery is the sentinel for the transient remote-failure class:
// network errors, quota rejections, timeouts, malformed responses.
// The executor recovers from this class with placeholder substitution;
// any other error from the compute path is treated as a programming
// error and fails the run.
var ErrQuery = errors.New("remote query failure")

// QueryError wraps a transient backend failure with the operation that
// produced it.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrQuery) match any QueryError regardless of
// the wrapped cause.
func (e *QueryError) Is(target error) bool { return target == ErrQuery }

func queryErrorf(op, format string, args ...any) error {
	return &QueryError{Op: op, Err: fmt.Errorf(format, args...)}
}
