package esync

import (
	"context"
	"fmt"
)

// EventKind classifies a single reduction step.
type EventKind int

const (
	// EventWon means the caller became the new winner with no incumbent.
	EventWon EventKind = iota
	// EventDisplaced means the caller became the new winner and the
	// previous winning error was destroyed.
	EventDisplaced
	// EventSuperseded means a lower-numbered thread already holds the slot
	// and the caller's error was destroyed.
	EventSuperseded
)

func (k EventKind) String() string {
	switch k {
	case EventWon:
		return "won"
	case EventDisplaced:
		return "displaced"
	case EventSuperseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// ReduceEvent describes one call to [Reduction.Reduce] that carried an error.
type ReduceEvent struct {
	Kind EventKind
	// Thread is the caller's thread index.
	Thread int
	// Winner is the winning thread index after the step.
	Winner int
	// DestroyErr is the failure reported by the destroyed handle, if any.
	DestroyErr error
}

// Outcome is a snapshot of a [Reduction] taken by the master after the
// region has closed.
type Outcome struct {
	// Winner is the index of the thread whose error survived, or Sentinel
	// if no thread raised an error.
	Winner int
	// Sentinel is the "no winner" value: the maximum team size at Init.
	Sentinel int
	// Errors is the number of non-nil errors reduced.
	Errors int
	// Residual is the number of Destroy calls that reported a failure.
	Residual int
}

// HasWinner reports whether some thread raised an error.
func (o Outcome) HasWinner() bool {
	return o.Winner < o.Sentinel
}

// Reduction is the shared state of one parallel region's error reduction.
//
// The master calls [Reduction.Init] before the region opens. Every member
// that finished with an error calls [Reduction.Reduce]; the error raised by
// the lowest-numbered thread survives and every other one is destroyed
// exactly once, independent of the order in which members arrive. After the
// region closes the master reads the result with [Reduction.Outcome] and
// [Reduction.Take]. A Reduction may be re-initialized for the next region.
//
// A Reduction must not be copied after first use.
type Reduction struct {
	cs       Critical
	env      Env
	sentinel int

	residual int
	errors   int
	winner   int
	winning  Handle

	observe func(ReduceEvent)
}

// Init resets the reduction for a new region. The winner is set to the
// sentinel env.MaxThreads(), which is greater than every valid thread index.
// A nil env means [DefaultEnv].
//
// Init must not run concurrently with Reduce on the same Reduction. A winning
// handle that was never taken is dropped without being destroyed.
func (r *Reduction) Init(env Env) {
	if env == nil {
		env = DefaultEnv()
	}
	r.env = env
	r.residual = 0
	r.errors = 0
	r.sentinel = env.MaxThreads()
	r.winner = r.sentinel
	r.winning = nil
}

// Observe registers fn to receive a [ReduceEvent] for every reduced error.
// fn runs inside the critical region and must not call back into r.
// Observe must be called outside the region.
func (r *Reduction) Observe(fn func(ReduceEvent)) {
	r.observe = fn
}

// Reduce submits the calling member's error. A nil e is a no-op.
//
// Reduce takes ownership of e: it either keeps e as the winning error or
// destroys it, so the caller must not use e afterwards. The thread index is
// read from ctx through the Env given to Init. Reduce never fails; Destroy
// failures are counted in [Outcome.Residual].
//
// Panics if called before Init, or if the caller's thread index is not
// below the sentinel (the team is larger than the Init env allows).
func (r *Reduction) Reduce(ctx context.Context, e Handle) {
	if e == nil {
		return
	}
	if r.env == nil {
		panic("esync: Reduce called before Init")
	}
	tid := r.env.ThreadNum(ctx)
	if tid < 0 || tid >= r.sentinel {
		panic(fmt.Sprintf("esync: thread id %d outside team of %d", tid, r.sentinel))
	}

	r.cs.Do(func() {
		ev := ReduceEvent{Thread: tid}

		if tid < r.winner {
			ev.Kind = EventWon
			if r.winning != nil {
				ev.Kind = EventDisplaced
				ev.DestroyErr = r.destroy(r.winning)
			}
			r.winning = e
			r.winner = tid
		} else {
			// Equal ids land here too: a thread never displaces itself.
			ev.Kind = EventSuperseded
			ev.DestroyErr = r.destroy(e)
		}
		r.errors++

		if r.observe != nil {
			ev.Winner = r.winner
			r.observe(ev)
		}
	})
}

func (r *Reduction) destroy(h Handle) error {
	err := h.Destroy()
	if err != nil {
		r.residual++
	}
	return err
}

// Outcome returns the current counters.
func (r *Reduction) Outcome() Outcome {
	var o Outcome
	r.cs.Do(func() {
		o = Outcome{
			Winner:   r.winner,
			Sentinel: r.sentinel,
			Errors:   r.errors,
			Residual: r.residual,
		}
	})
	return o
}

// Winning returns the winning handle without taking ownership of it.
func (r *Reduction) Winning() Handle {
	var h Handle
	r.cs.Do(func() {
		h = r.winning
	})
	return h
}

// Take moves the winning handle out of the reduction and leaves the slot
// empty. The caller becomes responsible for destroying it. The counters
// and the winner index are left untouched.
func (r *Reduction) Take() Handle {
	var h Handle
	r.cs.Do(func() {
		h = r.winning
		r.winning = nil
	})
	return h
}
