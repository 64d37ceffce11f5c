// Package lockfile provides the cross-process mutual exclusion that keeps at
// most one attack run active per machine. The lock is an OS advisory flock on
// a fixed file, so it holds across independently launched processes and the
// kernel releases it automatically when the holder exits, cleanly or not.
// Stale-lock detection is exactly that implicit release: a new Acquire from
// another process succeeds as soon as the previous holder is gone, whether or
// not it wrote a release marker.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// Lock is a non-blocking exclusive lock on a single file. The holder's PID is
// written into the file as a diagnostic payload; the payload is informational
// only and does not decide whether the lock is held.
type Lock struct {
	path string
	f    *os.File
}

// New creates a lock bound to path. No file is touched until Acquire.
func New(path string) *Lock {
	return &Lock{path: path}
}

// Acquire attempts to take the lock without blocking. Returns (true, nil) on
// success, (false, nil) when another live process holds it, and an error only
// for unexpected I/O failures.
func (l *Lock) Acquire() (bool, error) {
	if l.f != nil {
		return true, nil
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return false, fmt.Errorf("opening lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EAGAIN) {
			return false, nil
		}
		return false, fmt.Errorf("locking %s: %w", l.path, err)
	}
	if err := f.Truncate(0); err != nil {
		l.drop(f)
		return false, fmt.Errorf("truncating lock file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		l.drop(f)
		return false, fmt.Errorf("recording holder pid: %w", err)
	}
	l.f = f
	return true, nil
}

// Release relinquishes the lock if this instance holds it. Idempotent and
// safe to call when not held.
func (l *Lock) Release() {
	if l.f == nil {
		return
	}
	l.drop(l.f)
	l.f = nil
}

func (l *Lock) drop(f *os.File) {
	_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	_ = f.Close()
}

// HolderPID reads the PID recorded by the current holder. Best-effort: the
// holder may have exited since writing it.
func (l *Lock) HolderPID() (int, bool) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}
