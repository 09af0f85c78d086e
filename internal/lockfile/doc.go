// Package lockfile implements an exclusive advisory file lock held around the
// bootstrap-through-tag-write sequence, so parallel build-system jobs cannot
// race on clean/copy operations against the same installation root.
//
// The holder records its PID in the lock file; a contending invocation
// reports whether the holder is still alive before waiting.
package lockfile
