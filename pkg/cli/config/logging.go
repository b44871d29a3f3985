package config

import (
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/timeplus-io/pulsebot/pkg/utils/logging"
)

// Logging holds the process-wide logger flags, independent of the
// YAML config document so a user can override log verbosity without
// editing a file.
type Logging struct {
	level  string
	format string
}

// Flags returns CLI flags for logger configuration.
func (l *Logging) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("PULSEBOT_LOG_LEVEL"),
			Destination: &l.level,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (text, json)",
			Value:       "text",
			Sources:     cli.EnvVars("PULSEBOT_LOG_FORMAT"),
			Destination: &l.format,
		},
	}
}

// Configure installs a process-wide logger built from the configured
// flags and returns nothing to close: the underlying writer is stderr,
// which the runtime owns.
func (l *Logging) Configure() (func(), error) {
	level, err := parseLevel(l.level)
	if err != nil {
		return nil, err
	}

	logger := logging.New(os.Stderr, l.format, level)
	logging.SetDefault(logger)
	return func() {}, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, nil
	}
}
