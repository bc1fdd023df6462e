package storage

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"bedrock/internal/base"
	"bedrock/internal/mmap"
)

const (
	DefaultInitialMapSize = 64 << 10
	DefaultMaxMapSize     = 1 << 20
)

type MapOption func(*MapFile)

// WithMapSize sets the size of the first mapped region and the cap it
// doubles up to. Both are rounded up to the page size.
func WithMapSize(initial, max int) MapOption {
	return func(m *MapFile) {
		if initial > 0 {
			m.mapSize = initial
		}
		if max > 0 {
			m.maxMapSize = max
		}
	}
}

// MapFile appends by copying into a memory-mapped window over the end of the
// file. When the window fills up it is unmapped and the next one is mapped
// directly after it, each window twice the size of the last until the cap.
//
// The file is grown with ftruncate ahead of every mapping, so until Close
// trims it back the file is longer than the bytes appended.
type MapFile struct {
	name string
	file *os.File
	page int

	// mapSize is the length of the next region to map.
	mapSize    int
	maxMapSize int

	// region is the current window; cursor and lastSync index into it.
	// 0 <= lastSync, cursor <= len(region) at all times.
	region   []byte
	cursor   int
	lastSync int

	// offset is the file offset of region[0].
	offset int64
	size   int64

	// pendingSync is set when a region holding unsynced bytes was unmapped;
	// msync can no longer reach them, so the next Sync falls back to fsync.
	pendingSync bool
	closed      bool
}

var _ Writer = (*MapFile)(nil)

// OpenMapFile creates or truncates name and returns a MapFile over it.
func OpenMapFile(name string, opts ...MapOption) (*MapFile, error) {
	f, err := os.OpenFile(name, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
	if err != nil {
		return nil, base.NewIOError("open", name, err)
	}
	return NewMapFile(name, f, opts...), nil
}

// NewMapFile takes ownership of f, which must be opened read-write and be
// empty. Nothing is mapped until the first Append.
func NewMapFile(name string, f *os.File, opts ...MapOption) *MapFile {
	m := &MapFile{
		name:       name,
		file:       f,
		page:       mmap.PageSize(),
		mapSize:    DefaultInitialMapSize,
		maxMapSize: DefaultMaxMapSize,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.mapSize = mmap.Roundup(m.mapSize, m.page)
	m.maxMapSize = mmap.Roundup(m.maxMapSize, m.page)
	if m.maxMapSize < m.mapSize {
		m.maxMapSize = m.mapSize
	}
	return m
}

func (m *MapFile) Name() string {
	return m.name
}

func (m *MapFile) Size() int64 {
	return m.size
}

func (m *MapFile) Append(p []byte) error {
	if m.closed {
		return fmt.Errorf("%w: append to closed file %s", base.ErrInvalidState, m.name)
	}

	for len(p) > 0 {
		if m.cursor == len(m.region) {
			if err := m.unmapRegion(); err != nil {
				return err
			}
			if err := m.mapRegion(); err != nil {
				return err
			}
		}

		n := copy(m.region[m.cursor:], p)
		m.cursor += n
		m.size += int64(n)
		p = p[n:]
	}
	return nil
}

// Flush does nothing: stores into the mapping are visible to readers of the
// file as soon as they happen. Durability requires Sync.
func (m *MapFile) Flush() error {
	return nil
}

// Sync writes back every appended byte. Bytes in already unmapped regions
// are covered by an fsync; the current region is covered by an msync of the
// pages between the last sync point and the cursor.
func (m *MapFile) Sync() error {
	if m.closed {
		return fmt.Errorf("%w: sync of closed file %s", base.ErrInvalidState, m.name)
	}

	var errs []error
	if m.pendingSync {
		m.pendingSync = false
		if err := m.file.Sync(); err != nil {
			errs = append(errs, base.NewIOError("fsync", m.name, err))
		}
	}

	if m.cursor > m.lastSync {
		start := mmap.TruncateToPage(m.lastSync)
		end := mmap.TruncateToPage(m.cursor-1) + m.page
		m.lastSync = m.cursor
		if err := mmap.Sync(m.region[start:end]); err != nil {
			errs = append(errs, base.NewIOError("msync", m.name, err))
		}
	}
	return errors.Join(errs...)
}

// Close unmaps the current region, cuts the file back to the appended length
// and closes it. Closing twice returns ErrInvalidState and does nothing.
func (m *MapFile) Close() error {
	if m.closed {
		return fmt.Errorf("%w: %s already closed", base.ErrInvalidState, m.name)
	}
	m.closed = true

	var errs []error
	if err := m.unmapRegion(); err != nil {
		errs = append(errs, err)
	}
	if err := m.file.Truncate(m.size); err != nil {
		errs = append(errs, base.NewIOError("truncate", m.name, err))
	}
	if err := m.file.Close(); err != nil {
		errs = append(errs, base.NewIOError("close", m.name, err))
	}
	return errors.Join(errs...)
}

func (m *MapFile) unmapRegion() error {
	if m.region == nil {
		return nil
	}
	if m.lastSync < m.cursor {
		m.pendingSync = true
	}

	err := mmap.Unmap(m.region)
	m.offset += int64(len(m.region))
	m.region = nil
	m.cursor = 0
	m.lastSync = 0

	if m.mapSize < m.maxMapSize {
		m.mapSize = min(m.mapSize*2, m.maxMapSize)
	}
	return base.NewIOError("munmap", m.name, err)
}

func (m *MapFile) mapRegion() error {
	if err := m.file.Truncate(m.offset + int64(m.mapSize)); err != nil {
		return base.NewIOError("truncate", m.name, err)
	}

	region, err := mmap.Map(m.file, m.offset, m.mapSize)
	if err != nil {
		if errors.Is(err, unix.ENOMEM) {
			err = fmt.Errorf("%w: %w", base.ErrResourceExhausted, err)
		}
		return base.NewIOError("mmap", m.name, err)
	}

	m.region = region
	m.cursor = 0
	m.lastSync = 0
	return nil
}
