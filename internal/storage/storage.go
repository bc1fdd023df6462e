// Package storage holds the append-only writers handed out by the
// environment. Each writer owns exactly one file and is used by a single
// goroutine at a time; none of them lock internally, so concurrent Appends
// must be serialized by the caller.
//
// Two strategies exist. MapFile copies appends straight into a shared memory
// mapping of the file and remaps as it grows, so Append never issues a write
// syscall. DirectWriter goes around the page cache with direct I/O and pays
// a write per full buffer instead. Both leave the file exactly as long as the
// bytes appended once closed.
package storage

// Writer is an append-only file.
type Writer interface {
	// Append adds p to the end of the file.
	Append(p []byte) error

	// Flush hands buffered bytes to the OS. It does not make them durable.
	Flush() error

	// Sync makes every appended byte durable.
	Sync() error

	// Close releases the file, trimming any padding past the appended bytes.
	Close() error

	Name() string

	// Size is the number of bytes appended so far.
	Size() int64
}
