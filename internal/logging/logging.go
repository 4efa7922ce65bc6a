// Package logging sets up the structured slog logger the CLI and the
// spryte package share, with optional rotation via lumberjack when a log
// file path is configured.
//
// Grounded on jpfielding-dicos.go's internal logging setup (slog.Logger
// built once at startup and threaded through, rather than a package-level
// global) and gopkg.in/natefinch/lumberjack.v2 for file rotation.
package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	// LogFile, if non-empty, routes logs through a rotating file writer
	// instead of stderr.
	LogFile    string
	MaxSizeMB  int
	MaxBackups int
	Debug      bool
}

// New builds a slog.Logger per Options.
func New(o Options) *slog.Logger {
	var w io.Writer = os.Stderr
	if o.LogFile != "" {
		maxSize := o.MaxSizeMB
		if maxSize == 0 {
			maxSize = 50
		}
		w = &lumberjack.Logger{
			Filename:   o.LogFile,
			MaxSize:    maxSize,
			MaxBackups: o.MaxBackups,
			Compress:   true,
		}
	}
	level := slog.LevelInfo
	if o.Debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}
