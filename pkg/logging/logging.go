// Package logging builds the zap logger used by the command: human-readable
// lines on the console and a JSON debug log per run on disk.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	// Dir receives one log file per run. Empty disables the file log.
	Dir string

	// Name prefixes the log file name.
	Name string

	// ConsoleLevel is a zap level name; defaults to info.
	ConsoleLevel string

	// Console defaults to stderr.
	Console io.Writer
}

// New returns the logger and a func that flushes and closes the log file.
// The path of the file log is returned empty when Dir is not set.
func New(opts Options) (logger *zap.Logger, path string, closeFn func(), err error) {
	level := zapcore.InfoLevel
	if opts.ConsoleLevel != "" {
		level, err = zapcore.ParseLevel(opts.ConsoleLevel)
		if err != nil {
			return nil, "", nil, fmt.Errorf("bad log level: %w", err)
		}
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	consoleEncoder := zap.NewDevelopmentEncoderConfig()
	consoleEncoder.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoder), zapcore.AddSync(console), level),
	}

	var file *os.File
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, "", nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		name := opts.Name
		if name == "" {
			name = "newsharvest"
		}
		path = filepath.Join(opts.Dir, fmt.Sprintf("%s-%s.log", name, time.Now().Format("20060102-150405")))

		file, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, "", nil, fmt.Errorf("failed to open log file: %w", err)
		}

		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(file),
			zapcore.DebugLevel,
		))
	}

	logger = zap.New(zapcore.NewTee(cores...))
	closeFn = func() {
		_ = logger.Sync()
		if file != nil {
			_ = file.Close()
		}
	}

	return logger, path, closeFn, nil
}
