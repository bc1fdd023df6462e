package storage

import (
	"errors"
	"fmt"
	"os"

	"github.com/ncw/directio"

	"bedrock/internal/base"
	"bedrock/internal/mmap"
)

const DefaultBufferBlocks = 16

type DirectOption func(*DirectWriter)

// WithBufferBlocks sets how many direct I/O blocks are buffered before a
// write is issued.
func WithBufferBlocks(n int) DirectOption {
	return func(w *DirectWriter) {
		if n > 0 {
			w.blocks = n
		}
	}
}

// DirectWriter is a wrapper around a directio file. Appends collect in a
// block aligned buffer that is written out whenever it fills. Any data that
// is not a multiple of the block size is written with zero padding by Flush,
// and rewritten in place once more data arrives, so the file offset of the
// buffer always stays block aligned. Close trims the padding.
type DirectWriter struct {
	name   string
	file   *os.File
	block  int
	blocks int
	buf    []byte
	n      int

	// offset is the file offset of buf[0].
	offset int64
	size   int64
	closed bool
}

var _ Writer = (*DirectWriter)(nil)

// OpenDirectWriter creates or truncates name with O_DIRECT (F_NOCACHE on
// darwin). Filesystems without direct I/O support fail here.
func OpenDirectWriter(name string, opts ...DirectOption) (*DirectWriter, error) {
	w := &DirectWriter{
		name:   name,
		block:  directio.BlockSize,
		blocks: DefaultBufferBlocks,
	}
	for _, opt := range opts {
		opt(w)
	}

	file, err := directio.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, base.NewIOError("open", name, err)
	}
	w.file = file
	w.buf = directio.AlignedBlock(w.block * w.blocks)
	return w, nil
}

func (w *DirectWriter) Name() string {
	return w.name
}

func (w *DirectWriter) Size() int64 {
	return w.size
}

func (w *DirectWriter) Append(p []byte) error {
	if w.closed {
		return fmt.Errorf("%w: append to closed file %s", base.ErrInvalidState, w.name)
	}

	for len(p) > 0 {
		c := copy(w.buf[w.n:], p)
		w.n += c
		w.size += int64(c)
		p = p[c:]

		if w.n == len(w.buf) {
			if _, err := w.file.WriteAt(w.buf, w.offset); err != nil {
				return base.NewIOError("write", w.name, err)
			}
			w.offset += int64(len(w.buf))
			w.n = 0
		}
	}
	return nil
}

// Flush writes the buffered partial blocks, padded with zeros to the block
// size. The padding is overwritten by later appends.
func (w *DirectWriter) Flush() error {
	if w.closed {
		return fmt.Errorf("%w: flush of closed file %s", base.ErrInvalidState, w.name)
	}
	if w.n == 0 {
		return nil
	}

	tail := mmap.Roundup(w.n, w.block)
	clear(w.buf[w.n:tail])
	if _, err := w.file.WriteAt(w.buf[:tail], w.offset); err != nil {
		return base.NewIOError("write", w.name, err)
	}
	return nil
}

func (w *DirectWriter) Sync() error {
	if err := w.Flush(); err != nil {
		return err
	}
	return base.NewIOError("fsync", w.name, w.file.Sync())
}

func (w *DirectWriter) Close() error {
	if w.closed {
		return fmt.Errorf("%w: %s already closed", base.ErrInvalidState, w.name)
	}

	var errs []error
	if err := w.Flush(); err != nil {
		errs = append(errs, err)
	}
	w.closed = true
	if err := w.file.Truncate(w.size); err != nil {
		errs = append(errs, base.NewIOError("truncate", w.name, err))
	}
	if err := w.file.Close(); err != nil {
		errs = append(errs, base.NewIOError("close", w.name, err))
	}
	return errors.Join(errs...)
}
