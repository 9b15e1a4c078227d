package planner

import "fmt"

// ErrorKind classifies a failed planning cycle.
type ErrorKind int

const (
	// NotInitialized means Process was called before Init succeeded.
	NotInitialized ErrorKind = iota + 1
	// OptimizationFailed means the solver rejected the corridor or did not converge.
	OptimizationFailed
)

func (k ErrorKind) String() string {
	switch k {
	case NotInitialized:
		return "NotInitialized"
	case OptimizationFailed:
		return "OptimizationFailed"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is the cycle-level failure returned by Process.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

var (
	ErrNotInitialized     = &Error{Kind: NotInitialized, Message: "optimizer is not initialized"}
	ErrOptimizationFailed = &Error{Kind: OptimizationFailed, Message: "path optimization failed"}
)

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrOptimizationFailed)
// holds regardless of message or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}
