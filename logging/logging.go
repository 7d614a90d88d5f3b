// Package logging builds the process logger from configuration.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kestrelsys/kestrel/config"
)

// New constructs a zerolog.Logger from the logging configuration and
// installs it as the package-level default for convenience callers.
func New(cfg config.LogConfig, app string) (zerolog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), err
	}

	out, err := output(cfg)
	if err != nil {
		return zerolog.Nop(), err
	}

	logger := zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("app", app).
		Logger()

	log.Logger = logger
	return logger, nil
}

// parseLevel maps the configured level onto zerolog's.
func parseLevel(level config.LogLevel) (zerolog.Level, error) {
	switch level {
	case config.LogLevelTrace:
		return zerolog.TraceLevel, nil
	case config.LogLevelDebug:
		return zerolog.DebugLevel, nil
	case config.LogLevelInfo, "":
		return zerolog.InfoLevel, nil
	case config.LogLevelWarn:
		return zerolog.WarnLevel, nil
	case config.LogLevelError:
		return zerolog.ErrorLevel, nil
	case config.LogLevelFatal:
		return zerolog.FatalLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// output resolves the configured destination and format.
func output(cfg config.LogConfig) (io.Writer, error) {
	var base io.Writer
	switch cfg.Output {
	case "", "stdout":
		base = os.Stdout
	case "stderr":
		base = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log output %s: %w", cfg.Output, err)
		}
		base = f
	}

	if cfg.Format == "console" {
		return zerolog.ConsoleWriter{Out: base, TimeFormat: time.RFC3339}, nil
	}
	return base, nil
}
