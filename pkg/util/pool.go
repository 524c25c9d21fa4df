package util

import "runtime"

// OptimalPoolSize returns the worker count for parallel file processing.
//
// Formula: min(max(runtime.NumCPU() * 2, 4), 32)
//
// Reconcile workers spend most of their time in small file reads, so 2x
// the core count keeps the CPUs busy while reads block. The floor keeps
// some parallelism on small machines; the cap keeps goroutine and channel
// buffer overhead bounded on large ones.
func OptimalPoolSize() int {
	size := runtime.NumCPU() * 2

	if size < 4 {
		size = 4
	}
	if size > 32 {
		size = 32
	}

	return size
}

// PoolSizeOr returns override when it is positive, otherwise
// OptimalPoolSize(). Used by configs where 0 means auto-detect.
func PoolSizeOr(override int) int {
	if override > 0 {
		return override
	}
	return OptimalPoolSize()
}
