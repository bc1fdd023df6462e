package mmap

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

var pageSize = unix.Getpagesize()

// PageSize returns the OS page size. Mapping offsets and lengths handed to
// Map must be multiples of it.
func PageSize() int {
	return pageSize
}

// Roundup rounds x up to a multiple of y.
func Roundup(x, y int) int {
	return ((x + y - 1) / y) * y
}

// TruncateToPage rounds s down to a page boundary.
func TruncateToPage(s int) int {
	return s - s%pageSize
}

// Map maps length bytes of f starting at offset as a shared, writable region.
// Stores into the returned slice land in the file's page cache; the slice
// must be released with Unmap and must not be used afterwards. The file must
// already extend past offset+length, or touching the tail of the region
// raises SIGBUS.
func Map(f *os.File, offset int64, length int) ([]byte, error) {
	if length < 1 {
		return nil, fmt.Errorf("mmap: invalid length; length must be greater than 0: %d", length)
	}
	if offset%int64(pageSize) != 0 {
		return nil, fmt.Errorf("mmap: offset %d is not page aligned", offset)
	}

	return unix.Mmap(int(f.Fd()), offset, length,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED,
	)
}

func Unmap(region []byte) error {
	return unix.Munmap(region)
}

// Sync synchronously writes back the pages covering region. The slice must
// start on a page boundary of a mapping returned by Map.
func Sync(region []byte) error {
	if len(region) == 0 {
		return nil
	}
	return unix.Msync(region, unix.MS_SYNC)
}
