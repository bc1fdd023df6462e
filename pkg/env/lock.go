package env

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"bedrock/internal/base"
)

// FileLock is a held lock returned by LockFile.
type FileLock struct {
	name string
	file *os.File
}

func (l *FileLock) Name() string {
	return l.name
}

func (e *PosixEnv) LockFile(name string) (*FileLock, error) {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()

	if _, held := e.locks[name]; held {
		return nil, base.NewIOError("lock", name, fmt.Errorf("%w: held by this process", ErrLocked))
	}

	f, err := os.OpenFile(name, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, base.NewIOError("open", name, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			err = fmt.Errorf("%w: %w", ErrLocked, err)
		}
		return nil, base.NewIOError("lock", name, err)
	}

	e.locks[name] = struct{}{}
	e.log.Debug("file locked", zap.String("file", name))
	return &FileLock{name: name, file: f}, nil
}

// UnlockFile releases lock. The lock file itself is left in place.
func (e *PosixEnv) UnlockFile(lock *FileLock) error {
	if lock == nil || lock.file == nil {
		return fmt.Errorf("%w: file lock already released", ErrInvalidState)
	}

	e.locksMu.Lock()
	defer e.locksMu.Unlock()

	f := lock.file
	lock.file = nil
	delete(e.locks, lock.name)

	err := base.NewIOError("unlock", lock.name, unix.Flock(int(f.Fd()), unix.LOCK_UN))
	return errors.Join(err, base.NewIOError("close", lock.name, f.Close()))
}
