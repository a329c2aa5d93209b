//go:build !esync_serial

package esync

import (
	"os"
	"runtime"
	"strconv"
	"strings"
)

// NumThreadsEnvVar overrides the default team size, like OMP_NUM_THREADS.
const NumThreadsEnvVar = "ESYNC_NUM_THREADS"

// DefaultEnv returns the parallel environment sized by ESYNC_NUM_THREADS,
// falling back to GOMAXPROCS when the variable is unset or invalid.
//
// Build with -tags esync_serial to compile parallel support out.
func DefaultEnv() Env {
	return NewParallelEnv(defaultMaxThreads())
}

func defaultMaxThreads() int {
	if v, ok := os.LookupEnv(NumThreadsEnvVar); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
	}
	return runtime.GOMAXPROCS(0)
}
