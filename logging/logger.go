// Package logging builds the zerolog loggers of the typedcomm tools.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New returns a console logger writing to w at the named level.
func New(w io.Writer, level string) (zerolog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}

	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}

	return zerolog.New(output).
		Level(lvl).
		With().
		Timestamp().
		Str("app", "typedcomm").
		Logger(), nil
}

// Init builds a stderr logger and installs it as the global logger.
func Init(level string) (zerolog.Logger, error) {
	logger, err := New(os.Stderr, level)
	if err != nil {
		return logger, err
	}

	log.Logger = logger

	return logger, nil
}

// ParseLevel parses a level name. An empty name means info.
func ParseLevel(level string) (zerolog.Level, error) {
	if strings.TrimSpace(level) == "" {
		return zerolog.InfoLevel, nil
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("logging: %w", err)
	}

	return lvl, nil
}

// ForRank returns a child logger that tags every event with the rank.
func ForRank(logger zerolog.Logger, rank int) zerolog.Logger {
	return logger.With().Int("rank", rank).Logger()
}
