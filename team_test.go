//go:build !esync_serial

package esync_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baxromumarov/esync"
)

func capturePanic(fn func()) (v any) {
	defer func() {
		v = recover()
	}()
	fn()
	return nil
}

func TestParallelNoErrors(t *testing.T) {
	var ran atomic.Int32
	out, err := esync.Parallel(context.Background(), func(ctx context.Context) error {
		ran.Add(1)
		return nil
	}, esync.WithThreads(6))

	require.NoError(t, err)
	assert.EqualValues(t, 6, ran.Load())
	assert.False(t, out.HasWinner())
	assert.Equal(t, esync.Outcome{Winner: 6, Sentinel: 6}, out)
}

func TestParallelMembersSeeTheirIndex(t *testing.T) {
	var (
		mu   sync.Mutex
		seen = map[int]int{}
	)
	_, err := esync.Parallel(context.Background(), func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		seen[esync.ThreadNum(ctx)] = esync.NumThreads(ctx)
		return nil
	}, esync.WithThreads(5))

	require.NoError(t, err)
	assert.Equal(t, map[int]int{0: 5, 1: 5, 2: 5, 3: 5, 4: 5}, seen)
}

func TestParallelLowestThreadWins(t *testing.T) {
	// Threads 1 and 3 of 4 fail.
	var destroyed [4]atomic.Int32

	out, err := esync.Parallel(context.Background(), func(ctx context.Context) error {
		id := esync.ThreadNum(ctx)
		if id%2 == 0 {
			return nil
		}
		// Give thread 3 a head start so it usually reaches the reduction first.
		if id == 1 {
			time.Sleep(5 * time.Millisecond)
		}
		return esync.NewThreadError(id, fmt.Errorf("E%d", id), func() error {
			destroyed[id].Add(1)
			return nil
		})
	}, esync.WithThreads(4))

	require.Error(t, err)
	assert.Equal(t, 1, out.Winner)
	assert.Equal(t, 2, out.Errors)
	assert.Equal(t, 0, out.Residual)
	assert.EqualError(t, esync.CauseOf(err), "E1")

	tid, ok := esync.ThreadOf(err)
	require.True(t, ok)
	assert.Equal(t, 1, tid)

	assert.Zero(t, destroyed[1].Load())
	assert.EqualValues(t, 1, destroyed[3].Load())
}

func TestParallelWrapsPlainErrors(t *testing.T) {
	cause := errors.New("plain failure")
	out, err := esync.Parallel(context.Background(), func(ctx context.Context) error {
		if esync.ThreadNum(ctx) >= 2 {
			return cause
		}
		return nil
	}, esync.WithThreads(4))

	assert.Equal(t, 2, out.Winner)
	assert.Equal(t, 2, out.Errors)
	assert.ErrorIs(t, err, cause)

	var te *esync.ThreadError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 2, te.Thread)
}

func TestParallelTypedNilThreadErrorIsSuccess(t *testing.T) {
	out, err := esync.Parallel(context.Background(), func(ctx context.Context) error {
		var te *esync.ThreadError
		if esync.ThreadNum(ctx) == 2 {
			return errors.New("real failure")
		}
		return te
	}, esync.WithThreads(4))

	assert.Equal(t, 2, out.Winner)
	assert.Equal(t, 1, out.Errors)
	assert.EqualError(t, esync.CauseOf(err), "real failure")
}

func TestParallelResidual(t *testing.T) {
	releaseErr := errors.New("release failed")

	out, err := esync.Parallel(context.Background(), func(ctx context.Context) error {
		id := esync.ThreadNum(ctx)
		return esync.NewThreadError(id, errors.New("boom"), func() error {
			if id == 1 {
				return releaseErr
			}
			return nil
		})
	}, esync.WithThreads(2))

	require.Error(t, err)
	assert.Equal(t, 0, out.Winner)
	assert.Equal(t, 2, out.Errors)
	assert.Equal(t, 1, out.Residual)
}

func TestParallelDeterministic(t *testing.T) {
	failing := map[int]bool{2: true, 5: true, 7: true}

	for round := 0; round < 50; round++ {
		out, err := esync.Parallel(context.Background(), func(ctx context.Context) error {
			id := esync.ThreadNum(ctx)
			if failing[id] {
				return fmt.Errorf("failure %d", id)
			}
			return nil
		}, esync.WithThreads(8))

		require.Equal(t, 2, out.Winner)
		require.Equal(t, 3, out.Errors)
		require.EqualError(t, esync.CauseOf(err), "failure 2")
	}
}

func TestParallelSerialEnv(t *testing.T) {
	var ran atomic.Int32
	out, err := esync.Parallel(context.Background(), func(ctx context.Context) error {
		ran.Add(1)
		return errors.New("only failure")
	}, esync.WithEnv(esync.Serial), esync.WithThreads(8))

	assert.EqualValues(t, 1, ran.Load())
	assert.Equal(t, esync.Outcome{Winner: 0, Sentinel: 1, Errors: 1, Residual: 0}, out)
	assert.EqualError(t, esync.CauseOf(err), "only failure")
}

func TestNewTeamSize(t *testing.T) {
	tests := []struct {
		name string
		opts []esync.Option
		want int
	}{
		{name: "threads only", opts: []esync.Option{esync.WithThreads(3)}, want: 3},
		{name: "env only", opts: []esync.Option{esync.WithEnv(esync.NewParallelEnv(5))}, want: 5},
		{name: "capped by env", opts: []esync.Option{esync.WithEnv(esync.NewParallelEnv(2)), esync.WithThreads(9)}, want: 2},
		{name: "below env max", opts: []esync.Option{esync.WithEnv(esync.NewParallelEnv(9)), esync.WithThreads(4)}, want: 4},
		{name: "serial", opts: []esync.Option{esync.WithEnv(esync.Serial)}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, esync.NewTeam(tt.opts...).Size())
		})
	}
}

func TestTeamCappedSentinel(t *testing.T) {
	team := esync.NewTeam(esync.WithEnv(esync.NewParallelEnv(9)), esync.WithThreads(4))
	out, err := team.Run(context.Background(), func(ctx context.Context) error { return nil })

	require.NoError(t, err)
	assert.Equal(t, 9, out.Sentinel, "sentinel is the environment's max, not the team size")
	assert.Equal(t, 9, out.Winner)
}

func TestOptionPanics(t *testing.T) {
	require.PanicsWithValue(t, "esync: WithThreads requires n >= 1", func() {
		esync.NewTeam(esync.WithThreads(0))
	})
	require.PanicsWithValue(t, "esync: WithEnv requires a non-nil Env", func() {
		esync.NewTeam(esync.WithEnv(nil))
	})
}

func TestTeamReuse(t *testing.T) {
	team := esync.NewTeam(esync.WithThreads(3))

	for failing := 0; failing < 3; failing++ {
		out, err := team.Run(context.Background(), func(ctx context.Context) error {
			if esync.ThreadNum(ctx) == failing {
				return errors.New("boom")
			}
			return nil
		})
		require.Error(t, err)
		assert.Equal(t, failing, out.Winner)
		assert.Equal(t, 1, out.Errors)
	}
}

func TestParallelPanicReraised(t *testing.T) {
	var released atomic.Int32

	p := capturePanic(func() {
		_, _ = esync.Parallel(context.Background(), func(ctx context.Context) error {
			switch esync.ThreadNum(ctx) {
			case 0:
				return esync.NewThreadError(0, errors.New("plain"), func() error {
					released.Add(1)
					return nil
				})
			case 2:
				panic("second")
			case 3:
				panic("third")
			}
			return nil
		}, esync.WithThreads(4))
	})

	pe, ok := p.(*esync.PanicError)
	require.True(t, ok, "expected *PanicError, got %T", p)
	assert.Equal(t, 2, pe.Thread)
	assert.Equal(t, "second", pe.Value)
	assert.NotEmpty(t, pe.Stack)
	assert.EqualValues(t, 1, released.Load(), "winning error destroyed before re-panic")
}

func TestParallelPanicAsError(t *testing.T) {
	panicErr := errors.New("panic payload")

	out, err := esync.Parallel(context.Background(), func(ctx context.Context) error {
		if esync.ThreadNum(ctx) == 1 {
			panic(panicErr)
		}
		return nil
	}, esync.WithThreads(3), esync.WithPanicAsError())

	assert.Equal(t, 1, out.Winner)

	var pe *esync.PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Thread)
	assert.ErrorIs(t, err, panicErr)
	assert.Contains(t, pe.Error(), "panic in thread 1: panic payload")
}

func TestParallelCancelOnError(t *testing.T) {
	var causes sync.Map

	out, err := esync.Parallel(context.Background(), func(ctx context.Context) error {
		id := esync.ThreadNum(ctx)
		if id == 2 {
			return errors.New("first failure")
		}
		select {
		case <-ctx.Done():
			causes.Store(id, context.Cause(ctx))
			return nil
		case <-time.After(5 * time.Second):
			return errors.New("not cancelled")
		}
	}, esync.WithThreads(4), esync.WithCancelOnError())

	assert.Equal(t, 2, out.Winner)
	assert.Equal(t, 1, out.Errors)
	assert.EqualError(t, esync.CauseOf(err), "first failure")

	for _, id := range []int{0, 1, 3} {
		cause, ok := causes.Load(id)
		require.True(t, ok, "thread %d not cancelled", id)
		assert.ErrorIs(t, cause.(error), esync.ErrCancelled)
	}
}

func TestParallelParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := esync.Parallel(ctx, func(ctx context.Context) error {
		return nil
	}, esync.WithThreads(2))

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, out.HasWinner())
}

func TestParallelHooks(t *testing.T) {
	var (
		mu     sync.Mutex
		done   = map[int]error{}
		events []esync.ReduceEvent
	)

	out, err := esync.Parallel(context.Background(), func(ctx context.Context) error {
		if esync.ThreadNum(ctx) > 0 {
			return errors.New("boom")
		}
		return nil
	},
		esync.WithThreads(3),
		esync.WithOnDone(func(thread int, err error, d time.Duration) {
			mu.Lock()
			defer mu.Unlock()
			done[thread] = err
		}),
		esync.WithOnReduce(func(ev esync.ReduceEvent) {
			events = append(events, ev)
		}),
	)

	require.Error(t, err)
	assert.Equal(t, 1, out.Winner)
	require.Len(t, done, 3)
	assert.NoError(t, done[0])
	assert.Error(t, done[1])
	assert.Error(t, done[2])

	require.Len(t, events, 2)
	assert.Equal(t, 1, events[1].Winner)
}

func TestParallelLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := esync.Parallel(context.Background(), func(ctx context.Context) error {
		id := esync.ThreadNum(ctx)
		return esync.NewThreadError(id, errors.New("boom"), func() error {
			return errors.New("release failed")
		})
	}, esync.WithThreads(3), esync.WithLogger(logger))
	require.Error(t, err)

	logs := buf.String()
	assert.Contains(t, logs, "esync: reduced error")
	assert.Contains(t, logs, "level=WARN")
	assert.Contains(t, logs, "residual=2")
}
