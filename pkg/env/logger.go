package env

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"bedrock/internal/port"
)

const logTimeLayout = "2006/01/02-15:04:05.000000"

// Logger writes the human readable info log, one line per call:
//
//	2006/01/02-15:04:05.000000 <goroutine id in hex> message
//
// Lines go through a zap core whose sink is an append-only file, so any
// WritableFile can carry the log.
type Logger struct {
	file WritableFile
	log  *zap.Logger
}

// NewInfoLogger takes ownership of w.
func NewInfoLogger(w WritableFile) *Logger {
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "time",
		NameKey:          "goroutine",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.TimeEncoderOfLayout(logTimeLayout),
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeName:       zapcore.FullNameEncoder,
		ConsoleSeparator: " ",
	})
	core := zapcore.NewCore(enc, zapcore.Lock(fileSyncer{w}), zapcore.InfoLevel)
	return &Logger{file: w, log: zap.New(core)}
}

// Logv formats and writes one line. A nil Logger discards it.
func (l *Logger) Logv(format string, args ...any) {
	if l == nil {
		return
	}
	msg := strings.TrimSuffix(fmt.Sprintf(format, args...), "\n")
	l.log.Named(strconv.FormatInt(port.GoroutineID(), 16)).Info(msg)
}

// Close flushes the log and closes its file.
func (l *Logger) Close() error {
	_ = l.log.Sync()
	return l.file.Close()
}

// Logv writes one info line to w without keeping a Logger around.
func Logv(w WritableFile, format string, args ...any) {
	NewInfoLogger(w).Logv(format, args...)
}

// fileSyncer adapts a WritableFile to zapcore.WriteSyncer. Sync only
// flushes; durability of the info log is not worth an fsync per line.
type fileSyncer struct {
	w WritableFile
}

func (s fileSyncer) Write(p []byte) (int, error) {
	if err := s.w.Append(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s fileSyncer) Sync() error {
	return s.w.Flush()
}
