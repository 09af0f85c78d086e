package lockfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/vcpkg-tools/vcpkgman/internal/logger"
)

// pollInterval is how often a blocked Acquire retries the lock.
const pollInterval = 500 * time.Millisecond

// errWouldBlock is returned by the platform tryLock when another process
// holds the lock.
var errWouldBlock = errors.New("lock is held")

// Lock represents a held exclusive advisory lock.
type Lock struct {
	// path is the lock file location on disk.
	path string
	// file is the open handle carrying the OS-level lock.
	file *os.File
}

// Acquire takes an exclusive advisory lock on path, creating the file when
// needed and recording the holder PID inside it. When the lock is contended
// it reports the current holder (and whether that process is still alive)
// and keeps retrying until the context is cancelled.
func Acquire(ctx context.Context, path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	reported := false

	for {
		err = tryLock(f)
		if err == nil {
			break
		}

		if !errors.Is(err, errWouldBlock) {
			_ = f.Close()

			return nil, fmt.Errorf("lock %s: %w", path, err)
		}

		if !reported {
			reportHolder(ctx, path)

			reported = true
		}

		select {
		case <-ctx.Done():
			_ = f.Close()

			return nil, fmt.Errorf("waiting for lock %s: %w", path, ctx.Err())
		case <-time.After(pollInterval):
		}
	}

	if err = recordHolder(f); err != nil {
		_ = unlock(f)
		_ = f.Close()

		return nil, err
	}

	return &Lock{path: path, file: f}, nil
}

// Release drops the lock. The file itself stays behind as the advisory
// marker location for the next invocation.
func (l *Lock) Release() error {
	if err := unlock(l.file); err != nil {
		_ = l.file.Close()

		return fmt.Errorf("unlock %s: %w", l.path, err)
	}

	return l.file.Close()
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// HolderPID reads the PID recorded in the lock file.
func HolderPID(path string) (int, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil {
		return 0, fmt.Errorf("parse holder pid: %w", err)
	}

	return pid, nil
}

// recordHolder overwrites the lock file with our PID.
func recordHolder(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("truncate lock file: %w", err)
	}

	if _, err := f.Seek(0, 0); err != nil {
		return fmt.Errorf("rewind lock file: %w", err)
	}

	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		return fmt.Errorf("record holder pid: %w", err)
	}

	return f.Sync()
}

// reportHolder logs who holds the lock and whether that process still exists,
// so a user can tell a parallel build from a leftover lock on a dead PID.
func reportHolder(ctx context.Context, path string) {
	pid, err := HolderPID(path)
	if err != nil {
		logger.InfoKV(ctx, "Waiting for installation lock", "lock", path)
		return
	}

	logger.InfoKV(ctx, "Waiting for installation lock",
		"lock", path, "holder_pid", pid, "holder_alive", processAlive(pid))
}

// processAlive reports whether a process with the given PID exists.
func processAlive(pid int) bool {
	process, err := ps.FindProcess(pid)

	return err == nil && process != nil
}
