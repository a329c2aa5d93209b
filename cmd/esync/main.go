// Command esync runs error-reduction scenarios described in YAML and prints
// which member's error survived each run.
//
//	esync -config scenario.yaml [-v]
//
// A scenario file looks like:
//
//	threads: 4
//	raise: [1, 3]
//	fail_destroy: [3]
//	repeat: 10
//
// The exit status is 1 if any run ended with a surviving error and 2 if the
// scenario could not be loaded.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/baxromumarov/esync"
)

var errDestroyRefused = errors.New("destroy refused")

func main() {
	var (
		configPath = flag.String("config", "", "path to the scenario YAML file")
		verbose    = flag.Bool("v", false, "log every reduction step")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *configPath == "" {
		logger.Error("missing -config")
		flag.Usage()
		os.Exit(2)
	}

	sc, err := LoadScenario(*configPath)
	if err != nil {
		logger.Error("load scenario", slog.String("path", *configPath), slog.Any("err", err))
		os.Exit(2)
	}

	failed := run(context.Background(), sc, logger, os.Stdout)
	if failed {
		os.Exit(1)
	}
}

// run executes the scenario sc.Repeat times and reports whether any run left
// a surviving error.
func run(ctx context.Context, sc *Scenario, logger *slog.Logger, w io.Writer) bool {
	team := esync.NewTeam(esync.WithThreads(sc.Threads), esync.WithLogger(logger))

	var failed bool
	for i := 1; i <= sc.Repeat; i++ {
		out, err := team.Run(ctx, func(ctx context.Context) error {
			return member(ctx, sc)
		})

		fmt.Fprintf(w, "run %d: winner=%s errors=%d residual=%d", i, winnerString(out), out.Errors, out.Residual)
		if err == nil {
			fmt.Fprintln(w)
			continue
		}
		failed = true
		fmt.Fprintf(w, " error=%q\n", err.Error())

		// The surviving error is ours to release.
		var te *esync.ThreadError
		if errors.As(err, &te) {
			if derr := te.Destroy(); derr != nil {
				logger.Warn("destroy surviving error", slog.Int("thread", te.Thread), slog.Any("err", derr))
			}
		}
	}
	return failed
}

func member(ctx context.Context, sc *Scenario) error {
	id := esync.ThreadNum(ctx)
	if !sc.raises(id) {
		return nil
	}

	var release func() error
	if sc.failsDestroy(id) {
		release = func() error { return errDestroyRefused }
	}
	return esync.NewThreadError(id, errors.New("raised by scenario"), release)
}

func winnerString(out esync.Outcome) string {
	if !out.HasWinner() {
		return "none"
	}
	return fmt.Sprint(out.Winner)
}
