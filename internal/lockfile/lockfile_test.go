package lockfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestAcquireRelease takes and drops the lock, checking the recorded PID.
func TestAcquireRelease(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "abc123de.lock")

	lock, err := Acquire(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, path, lock.Path())

	pid, err := HolderPID(path)
	require.NoError(t, err)
	require.Equal(t, os.Getpid(), pid)

	require.NoError(t, lock.Release())

	// The marker file stays behind after release.
	_, err = os.Stat(path)
	require.NoError(t, err)
}

// TestAcquire_Contended ensures a second Acquire blocks until the context
// expires while the lock is held, and succeeds once it is released.
func TestAcquire_Contended(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "abc123de.lock")

	held, err := Acquire(context.Background(), path)
	require.NoError(t, err)

	// Locks are per open file description, so a second open handle in the
	// same process is enough to exercise contention.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = Acquire(ctx, path)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, held.Release())

	reacquired, err := Acquire(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, reacquired.Release())
}

// TestAcquire_CreatesParentDir makes the lock directory when missing.
func TestAcquire_CreatesParentDir(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "vcpkg", "abc123de.lock")

	lock, err := Acquire(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}

// TestHolderPID_Missing surfaces the read error for an absent lock file.
func TestHolderPID_Missing(t *testing.T) {
	t.Parallel()

	_, err := HolderPID(filepath.Join(t.TempDir(), "missing.lock"))
	require.Error(t, err)
}
