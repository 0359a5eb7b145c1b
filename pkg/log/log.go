// Package log provides the process-wide structured logger. Other packages
// should use log.Logger with additional context fields rather than
// importing zerolog directly.
package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

func init() {
	Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// Config configures the global logger's output.
type Config struct {
	// Level is the minimum level emitted ("debug", "info", "warn", "error").
	Level string
	// FilePath, when non-empty, tees output to a rotating log file instead
	// of stderr alone.
	FilePath string
	// MaxSizeMB is the rotation threshold for FilePath.
	MaxSizeMB int
	// MaxBackups is the number of rotated files retained.
	MaxBackups int
}

// Configure rebuilds the global logger per cfg. It must run before other
// packages capture Logger by value (e.g. via log.Node/log.Session), so
// cmd/secopd calls it first thing in PersistentPreRunE.
func Configure(cfg Config) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stderr
	if cfg.FilePath != "" {
		maxSize := cfg.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 50
		}
		maxBackups := cfg.MaxBackups
		if maxBackups <= 0 {
			maxBackups = 3
		}
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
			Compress:   true,
		})
	}

	Logger = zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Session returns a child logger tagged with a session/correlation id.
func Session(id string) zerolog.Logger {
	return Logger.With().Str("session", id).Logger()
}

// Node returns a child logger tagged with a node id.
func Node(id string) zerolog.Logger {
	return Logger.With().Str("node", id).Logger()
}

// Module returns a child logger tagged with a module name.
func Module(name string) zerolog.Logger {
	return Logger.With().Str("module", name).Logger()
}
