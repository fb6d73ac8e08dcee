package runnertypes

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// LogLevel is the logging level requested on the command line or in a
// policy file. Valid values: debug, info, warn, error.
type LogLevel string

const (
	// LogLevelDebug logs every directive and classification decision
	LogLevelDebug LogLevel = "debug"

	// LogLevelInfo is the default
	LogLevelInfo LogLevel = "info"

	// LogLevelWarn logs warnings and errors only
	LogLevelWarn LogLevel = "warn"

	// LogLevelError logs errors only
	LogLevelError LogLevel = "error"
)

// ErrInvalidLogLevel is returned when an invalid log level is provided
var ErrInvalidLogLevel = errors.New("invalid log level")

// UnmarshalText implements encoding.TextUnmarshaler so that policy files are
// validated while they are decoded.
func (l *LogLevel) UnmarshalText(text []byte) error {
	s := strings.ToLower(string(text))
	switch LogLevel(s) {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		*l = LogLevel(s)
		return nil
	case "":
		*l = LogLevelInfo
		return nil
	default:
		return fmt.Errorf("%w: %q (must be one of: debug, info, warn, error)", ErrInvalidLogLevel, string(text))
	}
}

// Set implements pflag.Value.
func (l *LogLevel) Set(s string) error {
	return l.UnmarshalText([]byte(s))
}

// Type implements pflag.Value.
func (l *LogLevel) Type() string {
	return "level"
}

// ToSlogLevel converts LogLevel to slog.Level.
func (l LogLevel) ToSlogLevel() (slog.Level, error) {
	switch strings.ToLower(string(l)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, l)
	}
}

// String returns the string representation of LogLevel.
func (l LogLevel) String() string {
	return string(l)
}
