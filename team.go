package esync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// ErrCancelled is the cancellation cause of a region run with
// [WithCancelOnError] once some member's error has been reduced.
var ErrCancelled = errors.New("esync: region cancelled by member error")

// MemberFunc is the body of a parallel region. Every team member runs it
// with a context carrying its thread index (see [ThreadNum]).
type MemberFunc func(ctx context.Context) error

// Team runs parallel regions on a fixed number of goroutines and reduces the
// errors they raise to the one raised by the lowest-numbered member.
//
// A Team holds configuration only; each call to [Team.Run] allocates its own
// [Reduction], so a Team may run several regions, including concurrently.
type Team struct {
	cfg  config
	env  Env
	size int
}

// NewTeam creates a team. Without options the team size is
// [DefaultEnv]'s MaxThreads.
func NewTeam(opts ...Option) *Team {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	env := cfg.env
	if env == nil {
		env = DefaultEnv()
		if cfg.threads > 0 && env != Serial {
			env = NewParallelEnv(cfg.threads)
		}
	}

	size := env.MaxThreads()
	if cfg.threads > 0 && cfg.threads < size {
		size = cfg.threads
	}

	return &Team{
		cfg:  cfg,
		env:  env,
		size: size,
	}
}

// Size returns the number of members forked per region.
func (t *Team) Size() int {
	return t.size
}

// Env returns the environment members report through.
func (t *Team) Env() Env {
	return t.env
}

// Parallel runs fn on a new [Team] configured by opts.
func Parallel(ctx context.Context, fn MemberFunc, opts ...Option) (Outcome, error) {
	return NewTeam(opts...).Run(ctx, fn)
}

// Run forks the team, runs fn on every member and joins them.
//
// A member's non-nil error is reduced as is if it implements [Handle] and
// wrapped in a [*ThreadError] otherwise. Run returns the reduction counters
// and the surviving error; ownership of that error passes to the caller.
// Every other error has been destroyed.
//
// If no member failed but ctx was cancelled, Run returns ctx's error.
func (t *Team) Run(ctx context.Context, fn MemberFunc) (Outcome, error) {
	var r Reduction
	r.Init(t.env)

	rctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	r.Observe(func(ev ReduceEvent) {
		if t.cfg.logger != nil {
			t.cfg.logger.Debug("esync: reduced error",
				slog.String("kind", ev.Kind.String()),
				slog.Int("thread", ev.Thread),
				slog.Int("winner", ev.Winner),
				slog.Any("destroy_err", ev.DestroyErr),
			)
		}
		if t.cfg.onReduce != nil {
			t.cfg.onReduce(ev)
		}
		if t.cfg.cancelOnError {
			cancel(ErrCancelled)
		}
	})

	// Each member writes only its own slot.
	panicked := make([]*PanicError, t.size)

	wg := conc.NewWaitGroup()
	for id := range t.size {
		mctx := WithThread(rctx, id, t.size)
		wg.Go(func() {
			start := time.Now()
			err := t.exec(mctx, id, fn, panicked)
			if t.cfg.onDone != nil {
				t.cfg.onDone(id, err, time.Since(start))
			}
			r.Reduce(mctx, candidate(id, err))
		})
	}
	wg.Wait()

	out := r.Outcome()
	h := r.Take()

	if t.cfg.logger != nil && out.Residual > 0 {
		t.cfg.logger.Warn("esync: destroy failures during reduction",
			slog.Int("residual", out.Residual),
			slog.Int("errors", out.Errors),
		)
	}

	for _, pe := range panicked {
		if pe == nil {
			continue
		}
		if h != nil {
			_ = h.Destroy()
		}
		panic(pe)
	}

	if h == nil {
		return out, ctx.Err()
	}
	// Candidates are built from member errors, so the winner is one too.
	return out, h.(error)
}

// exec runs fn with panic recovery.
func (t *Team) exec(ctx context.Context, id int, fn MemberFunc, panicked []*PanicError) (err error) {
	var pc panics.Catcher
	pc.Try(func() {
		err = fn(ctx)
	})

	if rec := pc.Recovered(); rec != nil {
		pe := newPanicError(id, rec)
		if t.cfg.panicAsErr {
			return pe
		}
		panicked[id] = pe
		return nil
	}
	return err
}

// candidate turns a member result into a reduction candidate. A typed-nil
// *ThreadError counts as success.
func candidate(tid int, err error) Handle {
	if err == nil {
		return nil
	}
	if te, ok := err.(*ThreadError); ok && te == nil {
		return nil
	}
	if h, ok := err.(Handle); ok {
		return h
	}
	return NewThreadError(tid, err, nil)
}
