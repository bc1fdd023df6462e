// Package env is the operating system boundary used by the rest of bedrock:
// file handles, directories, file locks, background work, time and the info
// log all go through an Env.
package env

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"bedrock/internal/base"
	"bedrock/internal/pool"
	"bedrock/internal/port"
	"bedrock/internal/storage"
)

// Env is implemented by PosixEnv. Every method is safe for concurrent use.
type Env interface {
	NewSequentialFile(name string) (SequentialFile, error)
	NewRandomAccessFile(name string) (RandomAccessFile, error)
	NewWritableFile(name string) (WritableFile, error)

	FileExists(name string) bool
	// GetChildren returns the names in dir, without "." and "..".
	GetChildren(dir string) ([]string, error)
	DeleteFile(name string) error
	// CreateDir creates name and any missing parents.
	CreateDir(name string) error
	DeleteDir(name string) error
	GetFileSize(name string) (uint64, error)
	// RenameFile replaces target if it exists.
	RenameFile(src, target string) error

	// LockFile takes an exclusive lock on name, creating it if needed. It
	// does not wait: a lock held elsewhere is an error matching ErrLocked.
	LockFile(name string) (*FileLock, error)
	UnlockFile(lock *FileLock) error

	// Schedule runs task on the background pool. It reports false once the
	// env is closed.
	Schedule(task func()) bool
	// StartThread runs task on a goroutine of its own.
	StartThread(task func())

	GetTestDirectory() (string, error)
	NewLogger(name string) (*Logger, error)

	NowMicros() uint64
	SleepForMicroseconds(micros int)

	Close() error
}

// PosixEnv implements Env on a POSIX host.
type PosixEnv struct {
	log *zap.Logger

	threads         int
	idleWait        time.Duration
	shutdownTimeout time.Duration
	directIO        bool
	mapInitial      int
	mapMax          int

	pool *pool.Pool

	// locks holds the names locked through this env. flock is per open
	// file description, so it would also refuse a second lock from this
	// process, but the table answers without touching the file system.
	locksMu *port.Lock
	locks   map[string]struct{}

	closed atomic.Bool
}

var _ Env = (*PosixEnv)(nil)

// New returns an env whose background pool is already running.
func New(opts ...Option) (*PosixEnv, error) {
	e := &PosixEnv{
		log:        zap.NewNop(),
		threads:    pool.DefaultWorkers,
		idleWait:   pool.DefaultIdleWait,
		mapInitial: storage.DefaultInitialMapSize,
		mapMax:     storage.DefaultMaxMapSize,
		locksMu:    port.NewLock(),
		locks:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.threads < 0 {
		return nil, fmt.Errorf("%w: negative background thread count %d", ErrInvalidConfig, e.threads)
	}
	if e.mapInitial < 0 || e.mapMax < 0 {
		return nil, fmt.Errorf("%w: negative map size", ErrInvalidConfig)
	}

	e.pool = pool.New(e.threads,
		pool.WithLogger(e.log.Named("pool")),
		pool.WithIdleWait(e.idleWait),
	)
	e.log.Debug("env started",
		zap.Int("background_threads", e.threads),
		zap.Bool("direct_io", e.directIO),
	)
	return e, nil
}

func (e *PosixEnv) NewSequentialFile(name string) (SequentialFile, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, base.NewIOError("open", name, err)
	}
	return &sequentialFile{name: name, file: f}, nil
}

func (e *PosixEnv) NewRandomAccessFile(name string) (RandomAccessFile, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, base.NewIOError("open", name, err)
	}
	return &randomAccessFile{name: name, file: f}, nil
}

// NewWritableFile creates or truncates name. The file is written through a
// growing memory mapping, or with direct I/O when the env was built
// WithDirectIO.
func (e *PosixEnv) NewWritableFile(name string) (WritableFile, error) {
	if e.directIO {
		w, err := storage.OpenDirectWriter(name)
		if err != nil {
			return nil, err
		}
		return w, nil
	}

	m, err := storage.OpenMapFile(name, storage.WithMapSize(e.mapInitial, e.mapMax))
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (e *PosixEnv) FileExists(name string) bool {
	return unix.Access(name, unix.F_OK) == nil
}

func (e *PosixEnv) GetChildren(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, base.NewIOError("readdir", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names, nil
}

func (e *PosixEnv) DeleteFile(name string) error {
	return base.NewIOError("unlink", name, unix.Unlink(name))
}

func (e *PosixEnv) CreateDir(name string) error {
	return base.NewIOError("mkdir", name, os.MkdirAll(name, 0755))
}

// DeleteDir removes name, which must be empty.
func (e *PosixEnv) DeleteDir(name string) error {
	return base.NewIOError("rmdir", name, unix.Rmdir(name))
}

func (e *PosixEnv) GetFileSize(name string) (uint64, error) {
	info, err := os.Stat(name)
	if err != nil {
		return 0, base.NewIOError("stat", name, err)
	}
	return uint64(info.Size()), nil
}

func (e *PosixEnv) RenameFile(src, target string) error {
	return base.NewIOError("rename", src, os.Rename(src, target))
}

func (e *PosixEnv) Schedule(task func()) bool {
	return e.pool.Submit(task)
}

func (e *PosixEnv) StartThread(task func()) {
	go task()
}

// GetTestDirectory returns $TEST_TMPDIR, or a per-user directory under the
// system temp dir, creating it if needed.
func (e *PosixEnv) GetTestDirectory() (string, error) {
	dir := os.Getenv("TEST_TMPDIR")
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "bedrocktest-"+strconv.Itoa(os.Geteuid()))
	}
	if err := e.CreateDir(dir); err != nil {
		return "", err
	}
	return dir, nil
}

func (e *PosixEnv) NewLogger(name string) (*Logger, error) {
	w, err := e.NewWritableFile(name)
	if err != nil {
		return nil, err
	}
	return NewInfoLogger(w), nil
}

func (e *PosixEnv) NowMicros() uint64 {
	return uint64(time.Now().UnixMicro())
}

func (e *PosixEnv) SleepForMicroseconds(micros int) {
	time.Sleep(time.Duration(micros) * time.Microsecond)
}

// Pool exposes the background pool, mainly so it can be resized.
func (e *PosixEnv) Pool() *pool.Pool {
	return e.pool
}

// Close stops the background pool after the queued tasks have run. With a
// shutdown timeout configured it gives up waiting after that long and
// returns an error matching ErrTimeout. Closing again waits for the same
// drain.
func (e *PosixEnv) Close() error {
	if e.closed.CompareAndSwap(false, true) {
		e.log.Debug("env closing", zap.Int("pending", e.pool.Pending()))
	}

	ctx := context.Background()
	if e.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.shutdownTimeout)
		defer cancel()
	}
	return e.pool.Shutdown(ctx)
}
