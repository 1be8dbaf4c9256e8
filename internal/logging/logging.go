// Package logging owns zerolog setup for Heads-Up. Everything else takes a
// zerolog.Logger by value; only the entry point decides levels and writers.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config controls logger construction.
type Config struct {
	// Level is the minimum level: debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level"`

	// Console renders human-readable output instead of JSON.
	Console bool `mapstructure:"console" yaml:"console"`

	// FilePath appends JSON logs to a file in addition to the main writer.
	FilePath string `mapstructure:"file_path" yaml:"file_path,omitempty"`
}

// DefaultConfig returns sensible defaults for interactive use.
func DefaultConfig() Config {
	return Config{Level: "info", Console: true}
}

// New builds the root logger. The returned closer flushes the optional log
// file; it is a no-op when no file is configured.
func New(cfg Config) (zerolog.Logger, func() error, error) {
	level := parseLevel(cfg.Level)

	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		writers = append(writers, os.Stderr)
	}

	closer := func() error { return nil }
	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return zerolog.Nop(), closer, err
		}
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), closer, err
		}
		writers = append(writers, f)
		closer = f.Close
	}

	log := zerolog.New(io.MultiWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
	return log, closer, nil
}

// Component returns a child logger tagged with a component name.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "":
		return zerolog.InfoLevel
	default:
		if lvl, err := zerolog.ParseLevel(s); err == nil {
			return lvl
		}
		return zerolog.InfoLevel
	}
}
