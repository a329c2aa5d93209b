// Package esync reduces the errors raised by a team of goroutines running
// the same parallel region to exactly one surviving error.
//
// Every member of the team may finish its share of the work with an error.
// The error raised by the lowest-numbered member wins; every other error is
// destroyed exactly once. The outcome depends only on which members failed,
// never on the order in which they reached the reduction, so reruns report
// the same error.
//
// # Running Regions
//
// The primary entry point is [Parallel], which forks a [Team], runs a
// function on every member and joins them:
//
//	out, err := esync.Parallel(ctx, func(ctx context.Context) error {
//	    id := esync.ThreadNum(ctx)
//	    return solve(ctx, partition[id])
//	}, esync.WithThreads(4))
//
// err is the surviving error, wrapped in a [*ThreadError] naming its thread;
// [Outcome] reports how many errors were raised and how many Destroy calls
// failed. [For] distributes a loop over the team with a static schedule.
//
// # Reductions
//
// [Reduction] is the underlying protocol for callers that fork their own
// goroutines. The master calls [Reduction.Init] before the region opens;
// each member passes its error to [Reduction.Reduce], which runs inside the
// reduction's [Critical] region; the master reads [Reduction.Outcome] and
// moves the surviving error out with [Reduction.Take] after the join.
// Members identify themselves through a context built by [WithThread].
//
// # Error Objects
//
// Errors taking part in a reduction implement [Handle]. Destroy releases the
// resources the error holds and may itself fail; such failures are counted
// in [Outcome.Residual] and never escalated. [NewThreadError] attaches a
// release function to an ordinary error. Use [IsThreadError], [ThreadOf]
// and [CauseOf] to inspect the surviving error.
//
// # Environments
//
// [Env] reports the team shape: maximum size, current size and the calling
// member's index. The default environment is parallel and sized by
// ESYNC_NUM_THREADS or GOMAXPROCS. Building with -tags esync_serial
// compiles parallel support out: [DefaultEnv] then returns [Serial], a team
// of one whose member is thread 0, and every reduction degrades to a
// single-threaded one.
//
// # Panic Recovery
//
// By default a panic in a member is captured with its stack trace and the
// lowest-numbered one is re-raised by [Team.Run] after the join. Use
// [WithPanicAsError] to reduce panics as [*PanicError] candidates instead.
//
// # Observability
//
//   - [WithLogger]: slog output for reduction steps and destroy failures.
//   - [WithOnReduce]: a [ReduceEvent] for every reduced error.
//   - [WithOnDone]: called when each member finishes, with error and duration.
package esync
