package env

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"bedrock/internal/base"
	"bedrock/internal/pool"
	"bedrock/internal/storage"
)

// Options is the file form of the env configuration:
//
//	background_threads: 5
//	direct_io: false
//	map_initial_size: 65536
//	map_max_size: 1048576
//	idle_wait: 20ms
//	shutdown_timeout: 10s
//	log_level: info
type Options struct {
	BackgroundThreads int           `yaml:"background_threads"`
	DirectIO          bool          `yaml:"direct_io"`
	MapInitialSize    int           `yaml:"map_initial_size"`
	MapMaxSize        int           `yaml:"map_max_size"`
	IdleWait          time.Duration `yaml:"idle_wait"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	LogLevel          string        `yaml:"log_level"`
}

func Defaults() Options {
	return Options{
		BackgroundThreads: pool.DefaultWorkers,
		MapInitialSize:    storage.DefaultInitialMapSize,
		MapMaxSize:        storage.DefaultMaxMapSize,
		IdleWait:          pool.DefaultIdleWait,
		LogLevel:          "info",
	}
}

// LoadOptions reads a YAML file. Keys missing from the file keep their
// Defaults.
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, base.NewIOError("read", path, err)
	}
	return ParseOptions(data)
}

func ParseOptions(data []byte) (Options, error) {
	o := Defaults()
	if err := yaml.Unmarshal(data, &o); err != nil {
		return Options{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := o.Validate(); err != nil {
		return Options{}, err
	}
	return o, nil
}

func (o Options) Validate() error {
	switch {
	case o.BackgroundThreads < 0:
		return fmt.Errorf("%w: background_threads is negative", ErrInvalidConfig)
	case o.MapInitialSize < 0 || o.MapMaxSize < 0:
		return fmt.Errorf("%w: map sizes must not be negative", ErrInvalidConfig)
	case o.MapMaxSize > 0 && o.MapInitialSize > o.MapMaxSize:
		return fmt.Errorf("%w: map_initial_size exceeds map_max_size", ErrInvalidConfig)
	case o.IdleWait < 0 || o.ShutdownTimeout < 0:
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	}
	if _, err := o.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel. An empty level is info.
func (o Options) Level() (zapcore.Level, error) {
	if o.LogLevel == "" {
		return zapcore.InfoLevel, nil
	}
	level, err := zapcore.ParseLevel(o.LogLevel)
	if err != nil {
		return level, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return level, nil
}

// EnvOptions converts o for New. The logger is not part of the file form
// and is passed separately.
func (o Options) EnvOptions() []Option {
	return []Option{
		WithBackgroundThreads(o.BackgroundThreads),
		WithDirectIO(o.DirectIO),
		WithMapSize(o.MapInitialSize, o.MapMaxSize),
		WithIdleWait(o.IdleWait),
		WithShutdownTimeout(o.ShutdownTimeout),
	}
}
