package esync

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrDestroyed is returned by [ThreadError.Destroy] when the error has
// already been destroyed.
var ErrDestroyed = errors.New("esync: error already destroyed")

// Handle is an error object taking part in a reduction. Destroy consumes the
// handle and releases whatever it holds; a non-nil result reports that the
// release itself failed. A nil Handle means "no error".
type Handle interface {
	Destroy() error
}

// ThreadError wraps an error together with the index of the team member that
// raised it. [Team] wraps every member failure in a ThreadError so the
// surviving error can be attributed to a thread.
type ThreadError struct {
	Thread int
	Err    error

	release   func() error
	destroyed atomic.Bool
}

// NewThreadError returns a ThreadError for thread tid. release, if non-nil,
// runs once when the error is destroyed and its result is reported by
// [ThreadError.Destroy].
func NewThreadError(tid int, err error, release func() error) *ThreadError {
	return &ThreadError{
		Thread:  tid,
		Err:     err,
		release: release,
	}
}

func (e *ThreadError) Error() string {
	return fmt.Sprintf("thread %d failed: %v", e.Thread, e.Err)
}

func (e *ThreadError) Unwrap() error {
	return e.Err
}

// Destroy runs the release function at most once. Later calls return
// [ErrDestroyed].
func (e *ThreadError) Destroy() error {
	if !e.destroyed.CompareAndSwap(false, true) {
		return ErrDestroyed
	}
	if e.release == nil {
		return nil
	}
	return e.release()
}

// Destroyed reports whether Destroy has been called.
func (e *ThreadError) Destroyed() bool {
	return e.destroyed.Load()
}

// threadError finds the first [*ThreadError] in err's chain.
func threadError(err error) *ThreadError {
	var te *ThreadError
	if err != nil && errors.As(err, &te) {
		return te
	}
	return nil
}

// IsThreadError reports whether err's chain contains a [*ThreadError].
func IsThreadError(err error) bool {
	return threadError(err) != nil
}

// ThreadOf returns the thread that raised err, if err carries one.
func ThreadOf(err error) (tid int, ok bool) {
	if te := threadError(err); te != nil {
		return te.Thread, true
	}
	return 0, false
}

// CauseOf strips the thread attribution from err. Errors without a
// [*ThreadError] in their chain, and nil, are returned unchanged.
func CauseOf(err error) error {
	if te := threadError(err); te != nil {
		return te.Err
	}
	return err
}
