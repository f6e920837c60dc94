package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation parameters for service log sinks.
const (
	DefaultMaxSizeMB  = 50 // inference servers are chatty during model load
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 7
)

// New builds the launcher's own slog logger writing to w.
func New(w io.Writer, level slog.Level) *slog.Logger {
	h := NewColorTextHandler(w, &slog.HandlerOptions{Level: level}, true)
	return slog.New(h)
}

// SinkConfig describes the combined stdout+stderr log sink of one service.
// Rotation parameters follow lumberjack semantics.
type SinkConfig struct {
	Dir        string // base directory for service logs
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Path returns the log file for the named service: Dir/<name>.log.
func (c SinkConfig) Path(name string) string {
	return filepath.Join(c.Dir, name+".log")
}

// Writer opens a rotating writer at path, creating the directory if missing.
// The writer receives the child's combined stdout and stderr; log-pattern
// readiness probes read the same file.
func (c SinkConfig) Writer(path string) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}
	return &lj.Logger{
		Filename:   path,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}, nil
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
