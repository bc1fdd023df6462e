package env

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseOptions(t *testing.T) {
	o, err := ParseOptions([]byte(`
background_threads: 3
direct_io: true
idle_wait: 5ms
shutdown_timeout: 2s
log_level: debug
`))
	require.NoError(t, err)

	want := Defaults()
	want.BackgroundThreads = 3
	want.DirectIO = true
	want.IdleWait = 5 * time.Millisecond
	want.ShutdownTimeout = 2 * time.Second
	want.LogLevel = "debug"
	assert.Equal(t, want, o)

	level, err := o.Level()
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, level)
}

func TestParseOptionsInvalid(t *testing.T) {
	for name, doc := range map[string]string{
		"syntax":    "background_threads: [",
		"threads":   "background_threads: -1",
		"map sizes": "map_initial_size: 4096\nmap_max_size: 1024",
		"level":     "log_level: loud",
		"duration":  "idle_wait: -1s",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseOptions([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.yaml")
	require.NoError(t, os.WriteFile(path, []byte("map_initial_size: 8192\n"), 0644))

	o, err := LoadOptions(path)
	require.NoError(t, err)
	assert.Equal(t, 8192, o.MapInitialSize)
	assert.Equal(t, Defaults().MapMaxSize, o.MapMaxSize)

	_, err = LoadOptions(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrIO)
}

func TestEnvOptions(t *testing.T) {
	o := Defaults()
	o.BackgroundThreads = 2
	o.ShutdownTimeout = time.Second

	e := newTestEnv(t, o.EnvOptions()...)
	assert.Equal(t, 2, e.Pool().Count())
	assert.Equal(t, time.Second, e.shutdownTimeout)
	assert.False(t, e.directIO)
}
