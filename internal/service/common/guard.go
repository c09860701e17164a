//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/runtime-bundler/internal/failure"
	"github.com/oshokin/runtime-bundler/internal/logger"
)

const lockPermissions = 0o600

// errAlreadyRunning is returned when another live process holds the bundle directory.
var errAlreadyRunning = errors.New("bundle directory is locked by another build")

// processFinder is swapped in tests.
type processFinder func(pid int) (ps.Process, error)

// LockPath returns the lock file guarding bundleDir. It lives next to the
// directory because the directory itself is removed and recreated by every build.
func LockPath(bundleDir string) string {
	abs, err := filepath.Abs(bundleDir)
	if err != nil {
		abs = filepath.Clean(bundleDir)
	}

	return filepath.Join(filepath.Dir(abs), "."+filepath.Base(abs)+".lock")
}

// LockBundleDir claims bundleDir for the current process and returns the
// function releasing it. Builds of other directories are not affected. A lock
// left by a process that no longer exists is taken over.
func LockBundleDir(ctx context.Context, bundleDir string) (func(), error) {
	return lockBundleDir(ctx, bundleDir, os.Getpid(), ps.FindProcess)
}

func lockBundleDir(ctx context.Context, bundleDir string, selfPID int, find processFinder) (func(), error) {
	path := LockPath(bundleDir)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, failure.Filesystem("create lock directory", filepath.Dir(path), err)
	}

	// Two attempts: the second one follows the removal of a stale lock.
	for range 2 {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, lockPermissions)
		if err == nil {
			_, writeErr := file.WriteString(strconv.Itoa(selfPID))
			closeErr := file.Close()

			if err = errors.Join(writeErr, closeErr); err != nil {
				_ = os.Remove(path)

				return nil, failure.Filesystem("write lock file", path, err)
			}

			logger.DebugKV(ctx, "Bundle directory locked", "lock", path, "pid", selfPID)

			return func() { releaseLock(ctx, path) }, nil
		}

		if !errors.Is(err, fs.ErrExist) {
			return nil, failure.Filesystem("create lock file", path, err)
		}

		owner, alive, ownerErr := lockOwner(path, selfPID, find)
		if ownerErr != nil {
			return nil, ownerErr
		}

		if alive {
			return nil, failure.Filesystem("lock bundle directory", bundleDir,
				fmt.Errorf("pid %d: %w", owner, errAlreadyRunning))
		}

		logger.WarnKV(ctx, "Removing stale bundle lock", "lock", path, "pid", owner)

		if err = os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, failure.Filesystem("remove stale lock file", path, err)
		}
	}

	return nil, failure.Filesystem("lock bundle directory", bundleDir, errAlreadyRunning)
}

// lockOwner reports the pid recorded in the lock file and whether it is still running.
// Unreadable content counts as a dead owner.
func lockOwner(path string, selfPID int, find processFinder) (int, bool, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}

	if err != nil {
		return 0, false, failure.Filesystem("read lock file", path, err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false, nil
	}

	if pid == selfPID {
		return pid, true, nil
	}

	process, err := find(pid)
	if err != nil {
		return pid, false, failure.Filesystem("find lock owner", strconv.Itoa(pid), err)
	}

	return pid, process != nil, nil
}

func releaseLock(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.WarnKV(ctx, "Failed to release bundle lock", "lock", path, "error", err)
	}
}
