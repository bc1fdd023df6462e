// Command envbench drives the env end to end: a burst of counter tasks from
// several submitters through the background pool, then an append, sync and
// close cycle through a writable file.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/gops/agent"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bedrock/pkg/env"
)

type config struct {
	configPath string
	dir        string
	submitters int
	tasks      int
	workers    int
	bytes      int
	record     int
	direct     bool
	gops       bool
	debug      bool
}

func main() {
	cfg := parseFlags()

	log, err := newLogger(cfg.debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "envbench: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	if cfg.gops {
		if err := agent.Listen(agent.Options{ShutdownCleanup: true}); err != nil {
			log.Warn("gops agent not started", zap.Error(err))
		}
	}

	if err := run(cfg, log); err != nil {
		log.Error("envbench failed", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func parseFlags() config {
	var cfg config
	flag.StringVar(&cfg.configPath, "config", "", "env config yaml (optional)")
	flag.StringVar(&cfg.dir, "dir", "", "directory for the append test (default: env test directory)")
	flag.IntVar(&cfg.submitters, "submitters", 8, "goroutines submitting tasks")
	flag.IntVar(&cfg.tasks, "tasks", 125, "tasks per submitter")
	flag.IntVar(&cfg.workers, "workers", 0, "background workers, overrides config when > 0")
	flag.IntVar(&cfg.bytes, "bytes", 4<<20, "bytes to append")
	flag.IntVar(&cfg.record, "record", 1000, "bytes per append call")
	flag.BoolVar(&cfg.direct, "direct", false, "write with direct I/O instead of mmap")
	flag.BoolVar(&cfg.gops, "gops", false, "start the gops diagnostics agent")
	flag.BoolVar(&cfg.debug, "debug", false, "development logging at debug level")
	flag.Parse()
	return cfg
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg config, log *zap.Logger) error {
	opts := env.Defaults()
	if cfg.configPath != "" {
		var err error
		if opts, err = env.LoadOptions(cfg.configPath); err != nil {
			return err
		}
	}
	if cfg.workers > 0 {
		opts.BackgroundThreads = cfg.workers
	}
	if cfg.direct {
		opts.DirectIO = true
	}

	e, err := env.New(append(opts.EnvOptions(), env.WithLogger(log.Named("env")))...)
	if err != nil {
		return err
	}

	if err := counterStress(e, cfg, log); err != nil {
		_ = e.Close()
		return err
	}

	// The pool has drained but file operations do not need it.
	return appendCheck(e, cfg, log)
}

func counterStress(e *env.PosixEnv, cfg config, log *zap.Logger) error {
	var counter atomic.Int64
	start := time.Now()

	var g errgroup.Group
	for s := 0; s < cfg.submitters; s++ {
		g.Go(func() error {
			for i := 0; i < cfg.tasks; i++ {
				if !e.Schedule(func() { counter.Add(1) }) {
					return fmt.Errorf("task %d rejected", i)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := e.Close(); err != nil {
		return err
	}

	want := int64(cfg.submitters * cfg.tasks)
	log.Info("counter stress done",
		zap.Int64("counter", counter.Load()),
		zap.Int64("expected", want),
		zap.Duration("elapsed", time.Since(start)),
	)
	if got := counter.Load(); got != want {
		return fmt.Errorf("counter is %d, want %d", got, want)
	}
	return nil
}

func appendCheck(e *env.PosixEnv, cfg config, log *zap.Logger) error {
	dir := cfg.dir
	if dir == "" {
		var err error
		if dir, err = e.GetTestDirectory(); err != nil {
			return err
		}
	} else if err := e.CreateDir(dir); err != nil {
		return err
	}

	name := filepath.Join(dir, fmt.Sprintf("envbench-%d.log", os.Getpid()))
	defer func() { _ = e.DeleteFile(name) }()

	w, err := e.NewWritableFile(name)
	if err != nil {
		return err
	}

	record := bytes.Repeat([]byte{'x'}, max(cfg.record, 1))
	start := time.Now()
	for left := cfg.bytes; left > 0; left -= len(record) {
		if err := w.Append(record[:min(left, len(record))]); err != nil {
			_ = w.Close()
			return err
		}
	}
	if err := w.Sync(); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	size, err := e.GetFileSize(name)
	if err != nil {
		return err
	}
	log.Info("append check done",
		zap.String("file", name),
		zap.Uint64("size", size),
		zap.Bool("direct_io", cfg.direct),
		zap.Duration("elapsed", elapsed),
	)
	if size != uint64(max(cfg.bytes, 0)) {
		return fmt.Errorf("file %s is %d bytes, want %d", name, size, cfg.bytes)
	}
	return nil
}
