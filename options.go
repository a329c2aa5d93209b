package esync

import (
	"log/slog"
	"time"
)

type config struct {
	threads       int
	env           Env
	panicAsErr    bool
	cancelOnError bool
	logger        *slog.Logger
	onReduce      func(ReduceEvent)
	onDone        func(thread int, err error, d time.Duration)
}

// Option configures a [Team].
type Option func(*config)

// WithThreads sets the team size. Without [WithEnv] the team runs in a
// parallel environment of exactly n threads; with it, n is capped at the
// environment's MaxThreads. Panics if n < 1.
func WithThreads(n int) Option {
	return func(c *config) {
		if n < 1 {
			panic("esync: WithThreads requires n >= 1")
		}
		c.threads = n
	}
}

// WithEnv sets the environment the team reports through. Use [Serial] to
// force single-threaded execution. Panics if env is nil.
func WithEnv(env Env) Option {
	return func(c *config) {
		if env == nil {
			panic("esync: WithEnv requires a non-nil Env")
		}
		c.env = env
	}
}

// WithPanicAsError turns member panics into [*PanicError] candidate errors
// instead of re-raising them after the region joins.
func WithPanicAsError() Option {
	return func(c *config) {
		c.panicAsErr = true
	}
}

// WithCancelOnError cancels the region's context as soon as the first error
// is reduced. Members still finish and reduce their own errors, so the
// surviving error is unaffected by the cancellation order.
func WithCancelOnError() Option {
	return func(c *config) {
		c.cancelOnError = true
	}
}

// WithLogger logs reduction steps at Debug level and destroy failures at
// Warn level.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithOnReduce registers a hook invoked for every reduced error.
// The hook runs inside the reduction's critical region and must not block.
func WithOnReduce(fn func(ReduceEvent)) Option {
	return func(c *config) {
		c.onReduce = fn
	}
}

// WithOnDone registers a hook invoked when each member finishes, with the
// member's error (nil on success) and wall-clock duration. The hook runs in
// the member's goroutine before its error is reduced.
func WithOnDone(fn func(thread int, err error, d time.Duration)) Option {
	return func(c *config) {
		c.onDone = fn
	}
}
