package port

import "runtime"

// goid returns the current goroutine id, parsed from the header line of
// runtime.Stack ("goroutine 123 [running]:"). It costs a stack capture per
// call, so only checked locks and the info log use it.
func goid() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parseGoid(buf[:n])
}

// GoroutineID exposes goid for diagnostics outside the package.
func GoroutineID() int64 {
	return goid()
}

func parseGoid(buf []byte) int64 {
	const prefix = "goroutine "
	if len(buf) < len(prefix) || string(buf[:len(prefix)]) != prefix {
		return 0
	}

	var id int64
	for _, c := range buf[len(prefix):] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + int64(c-'0')
	}
	return id
}
