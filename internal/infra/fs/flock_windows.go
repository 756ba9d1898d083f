//go:build windows
// +build windows

package fs

import (
	"errors"
	"os"

	"golang.org/x/sys/windows"
)

// flockTry attempts an exclusive lock on the first byte of the file without
// blocking, via LockFileEx. Returns errLockHeld when another process already
// holds the lock.
func flockTry(f *os.File) error {
	ol := new(windows.Overlapped)
	err := windows.LockFileEx(windows.Handle(f.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0, 1, 0, ol)
	if err == nil {
		return nil
	}
	if errors.Is(err, windows.ERROR_LOCK_VIOLATION) {
		return errLockHeld
	}
	return err
}

// flockUnlock releases the lock on the file
func flockUnlock(f *os.File) error {
	ol := new(windows.Overlapped)
	return windows.UnlockFileEx(windows.Handle(f.Fd()), 0, 1, 0, ol)
}
