package esync

import (
	"fmt"

	"github.com/sourcegraph/conc/panics"
)

// PanicError wraps a value recovered from a panicking team member together
// with the goroutine stack trace captured at the point of the panic.
//
// When [WithPanicAsError] is set, a member panic becomes that member's
// candidate error. Otherwise the *PanicError of the lowest-numbered
// panicking member is re-raised by [Team.Run] after the region joins.
type PanicError struct {
	// Thread is the index of the member that panicked.
	Thread int

	// Value is the original value passed to panic().
	Value any

	// Stack is the goroutine stack trace at the point of panic.
	Stack string
}

// Error returns a human-readable representation of the panic,
// including the value and the full stack trace.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in thread %d: %v\n\n%s", e.Thread, e.Value, e.Stack)
}

// Unwrap returns the panic value if it is an error, nil otherwise.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func newPanicError(tid int, r *panics.Recovered) *PanicError {
	return &PanicError{
		Thread: tid,
		Value:  r.Value,
		Stack:  string(r.Stack),
	}
}
