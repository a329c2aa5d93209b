//go:build esync_serial

package esync

// NumThreadsEnvVar is ignored in serial builds.
const NumThreadsEnvVar = "ESYNC_NUM_THREADS"

// DefaultEnv returns [Serial]: this binary was built with parallel support
// compiled out.
func DefaultEnv() Env {
	return Serial
}
