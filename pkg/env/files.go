package env

import (
	"errors"
	"io"
	"os"

	"bedrock/internal/base"
	"bedrock/internal/storage"
)

// SequentialFile reads a file front to back. It is not safe for concurrent
// use.
type SequentialFile interface {
	// Read reads up to n bytes into scratch, growing it if it is too small,
	// and returns the bytes read. Fewer than n bytes means the end of the
	// file was reached; at the end itself Read returns io.EOF.
	Read(n int, scratch []byte) ([]byte, error)

	// Skip moves forward n bytes. Skipping past the end is not an error;
	// the next Read returns io.EOF.
	Skip(n int64) error

	Close() error
}

// RandomAccessFile reads at arbitrary offsets and is safe for concurrent use.
type RandomAccessFile interface {
	// ReadAt reads up to n bytes at off, with the same short read and
	// io.EOF conventions as SequentialFile.Read.
	ReadAt(off int64, n int, scratch []byte) ([]byte, error)

	Close() error
}

// WritableFile is an append-only file. Writers do not lock internally.
type WritableFile = storage.Writer

type sequentialFile struct {
	name string
	file *os.File
}

func (f *sequentialFile) Read(n int, scratch []byte) ([]byte, error) {
	buf := grow(scratch, n)
	m, err := io.ReadFull(f.file, buf)
	return readResult(buf[:m], f.name, err)
}

func (f *sequentialFile) Skip(n int64) error {
	_, err := f.file.Seek(n, io.SeekCurrent)
	return base.NewIOError("seek", f.name, err)
}

func (f *sequentialFile) Close() error {
	return base.NewIOError("close", f.name, f.file.Close())
}

type randomAccessFile struct {
	name string
	file *os.File
}

func (f *randomAccessFile) ReadAt(off int64, n int, scratch []byte) ([]byte, error) {
	buf := grow(scratch, n)
	m, err := f.file.ReadAt(buf, off)
	return readResult(buf[:m], f.name, err)
}

func (f *randomAccessFile) Close() error {
	return base.NewIOError("close", f.name, f.file.Close())
}

func grow(scratch []byte, n int) []byte {
	if n < 0 {
		n = 0
	}
	if cap(scratch) < n {
		return make([]byte, n)
	}
	return scratch[:n]
}

// readResult folds the end-of-file cases: a short read is a success, an
// empty read at the end is io.EOF.
func readResult(p []byte, name string, err error) ([]byte, error) {
	switch {
	case err == nil:
		return p, nil
	case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF):
		if len(p) > 0 {
			return p, nil
		}
		return p, io.EOF
	default:
		return p, base.NewIOError("read", name, err)
	}
}
