package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	logger = zerolog.Nop()
)

// Config holds the configuration for the logger
type Config struct {
	Level  string
	Output string // "stdout", "stderr", or file path
	Pretty bool   // Enable pretty logging for development
}

// Init initializes the global logger. Only the first call has an effect.
func Init(cfg Config) error {
	var err error
	once.Do(func() {
		level, parseErr := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if parseErr != nil || cfg.Level == "" {
			level = zerolog.InfoLevel
		}
		zerolog.SetGlobalLevel(level)
		zerolog.TimeFieldFormat = time.RFC3339Nano

		var output io.Writer
		output, err = openOutput(cfg.Output)
		if err != nil {
			return
		}

		if cfg.Pretty {
			output = zerolog.ConsoleWriter{
				Out:        output,
				TimeFormat: "2006-01-02 15:04:05",
			}
		}

		logger = zerolog.New(output).With().
			Timestamp().
			Caller().
			Logger()

		// Set default logger for any package that uses the global logger
		zerolog.DefaultContextLogger = &logger
	})
	return err
}

func openOutput(output string) (io.Writer, error) {
	switch output {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}

	if dir := filepath.Dir(output); dir != "." && dir != string(filepath.Separator) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	file, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return file, nil
}

// Get returns the logger instance. Before Init it discards everything.
func Get() *zerolog.Logger {
	return &logger
}

// Component returns a child logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

// WithContext returns the logger attached to ctx, or the global one.
func WithContext(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &logger
}
