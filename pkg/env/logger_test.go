package env

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bedrock/internal/port"
)

var logLine = regexp.MustCompile(`^\d{4}/\d{2}/\d{2}-\d{2}:\d{2}:\d{2}\.\d{6} ([0-9a-f]+) (.*)$`)

func readLines(t *testing.T, name string) []string {
	t.Helper()
	data, err := os.ReadFile(name)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(string(data), "\n"))
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestLoggerFormat(t *testing.T) {
	e := newTestEnv(t)
	name := filepath.Join(t.TempDir(), "LOG")

	l, err := e.NewLogger(name)
	require.NoError(t, err)
	l.Logv("opened %d files", 3)
	l.Logv("trailing newline\n")
	require.NoError(t, l.Close())

	lines := readLines(t, name)
	require.Len(t, lines, 2)

	m := logLine.FindStringSubmatch(lines[0])
	require.NotNil(t, m, lines[0])
	assert.Equal(t, strconv.FormatInt(port.GoroutineID(), 16), m[1])
	assert.Equal(t, "opened 3 files", m[2])

	m = logLine.FindStringSubmatch(lines[1])
	require.NotNil(t, m, lines[1])
	assert.Equal(t, "trailing newline", m[2])
}

func TestLoggerConcurrent(t *testing.T) {
	e := newTestEnv(t)
	name := filepath.Join(t.TempDir(), "LOG")

	l, err := e.NewLogger(name)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				l.Logv("line %d", j)
			}
		}()
	}
	wg.Wait()
	require.NoError(t, l.Close())

	lines := readLines(t, name)
	require.Len(t, lines, 200)
	for _, line := range lines {
		assert.Regexp(t, logLine, line)
	}
}

func TestLogvOnWritableFile(t *testing.T) {
	e := newTestEnv(t)
	name := filepath.Join(t.TempDir(), "LOG")

	w, err := e.NewWritableFile(name)
	require.NoError(t, err)
	Logv(w, "a=%s", "1")
	Logv(w, "b=%s", "2")
	require.NoError(t, w.Close())

	lines := readLines(t, name)
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], " a=1"))
	assert.True(t, strings.HasSuffix(lines[1], " b=2"))
}

func TestNilLogger(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() { l.Logv("dropped") })
}
