// Package worker runs slow-path tasks (AI completions, persistence) on a
// bounded number of concurrent slots with a hard per-task timeout. A task
// that overruns is cancelled via its context and reported as a timeout-tagged
// result instead of blocking the caller indefinitely; other tasks are
// unaffected.
package worker
