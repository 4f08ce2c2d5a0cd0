package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// DirLock guards the state directory so two bot instances never share the
// same database and lock files
type DirLock struct {
	lockFile *flock.Flock
	lockPath string
}

func NewDirLock(stateDir string) (*DirLock, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	lockPath := filepath.Join(stateDir, "relaybot.lock")
	return &DirLock{
		lockFile: flock.New(lockPath),
		lockPath: lockPath,
	}, nil
}

// TryLock acquires the lock without blocking. It fails when another instance
// already holds it.
func (l *DirLock) TryLock() error {
	locked, err := l.lockFile.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire state directory lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another instance is already running (lock held at %s)", l.lockPath)
	}
	return nil
}

func (l *DirLock) Unlock() error {
	if err := l.lockFile.Unlock(); err != nil {
		return fmt.Errorf("failed to release state directory lock: %w", err)
	}
	return nil
}
