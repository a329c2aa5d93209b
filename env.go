package esync

import (
	"context"
	"fmt"
)

// Env reports the shape of the team executing the current parallel region.
//
// Implementations must be side-effect free. [Serial] reports a single thread
// regardless of ctx; the parallel environment returned by [NewParallelEnv]
// reads the membership recorded by [WithThread].
type Env interface {
	// MaxThreads is the largest team the environment could run.
	MaxThreads() int
	// NumThreads is the size of the team running the region ctx belongs to.
	NumThreads(ctx context.Context) int
	// ThreadNum is the zero-based index of the calling member.
	ThreadNum(ctx context.Context) int
}

// Serial is the environment used when parallel execution is unavailable.
// It reports a team of one whose only member is thread 0.
var Serial Env = serialEnv{}

type serialEnv struct{}

func (serialEnv) MaxThreads() int { return 1 }
func (serialEnv) NumThreads(context.Context) int { return 1 }
func (serialEnv) ThreadNum(context.Context) int { return 0 }

type parallelEnv struct {
	max int
}

// NewParallelEnv returns an environment that supports teams of up to max
// threads. Panics if max < 1.
func NewParallelEnv(max int) Env {
	if max < 1 {
		panic("esync: NewParallelEnv requires max >= 1")
	}
	return parallelEnv{max: max}
}

func (e parallelEnv) MaxThreads() int { return e.max }

func (e parallelEnv) NumThreads(ctx context.Context) int {
	if m, ok := memberOf(ctx); ok {
		return m.num
	}
	return 1
}

func (e parallelEnv) ThreadNum(ctx context.Context) int {
	if m, ok := memberOf(ctx); ok {
		return m.id
	}
	return 0
}

type memberKey struct{}

type member struct {
	id  int
	num int
}

// WithThread returns a copy of ctx marking the caller as thread id of a team
// of num threads. [Team] does this for every member it forks; custom
// fork-join code can use it to take part in a [Reduction].
//
// Panics if num < 1 or id is outside [0, num).
func WithThread(ctx context.Context, id, num int) context.Context {
	if num < 1 {
		panic("esync: team size must be >= 1")
	}
	if id < 0 || id >= num {
		panic(fmt.Sprintf("esync: thread id %d out of range [0, %d)", id, num))
	}
	return context.WithValue(ctx, memberKey{}, member{id: id, num: num})
}

func memberOf(ctx context.Context) (member, bool) {
	if ctx == nil {
		return member{}, false
	}
	m, ok := ctx.Value(memberKey{}).(member)
	return m, ok
}

// MaxThreads queries [DefaultEnv].
func MaxThreads() int { return DefaultEnv().MaxThreads() }

// NumThreads queries [DefaultEnv].
func NumThreads(ctx context.Context) int { return DefaultEnv().NumThreads(ctx) }

// ThreadNum queries [DefaultEnv].
func ThreadNum(ctx context.Context) int { return DefaultEnv().ThreadNum(ctx) }
