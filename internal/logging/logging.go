// Package logging configures the process-wide zerolog logger.
package logging

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Config selects the level, format, and destination of the global logger.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, console, auto
	Output string // stdout, stderr, or a file path
}

// Init builds a zerolog.Logger from cfg, sets it as the zerolog/log global
// logger, and returns it for callers that want a local reference.
func Init(cfg Config) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil {
		return zerolog.Logger{}, err
	}

	out, err := resolveOutput(cfg.Output)
	if err != nil {
		return zerolog.Logger{}, err
	}

	format := strings.ToLower(strings.TrimSpace(cfg.Format))
	if format == "" || format == "auto" {
		if term.IsTerminal(int(out.Fd())) {
			format = "console"
		} else {
			format = "json"
		}
	}

	var logger zerolog.Logger
	switch format {
	case "json":
		logger = zerolog.New(out).With().Timestamp().Logger()
	case "console":
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	default:
		return zerolog.Logger{}, errors.New("logging: unsupported format " + format)
	}

	logger = logger.Level(lvl)
	zerolog.SetGlobalLevel(lvl)
	return logger, nil
}

func resolveOutput(dest string) (*os.File, error) {
	switch strings.ToLower(strings.TrimSpace(dest)) {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		// #nosec G304 -- path comes from operator-controlled config, not request input
		f, err := os.OpenFile(dest, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
}
