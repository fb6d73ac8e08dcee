package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/isseis/go-sudo-env/internal/terminal"
)

const (
	logDirPerm  os.FileMode = 0o750
	logFilePerm os.FileMode = 0o600

	// logSchemaVersion is recorded in every JSON log line
	logSchemaVersion = 1
)

// ErrEmptyRunID is returned when a log directory is configured without a run id.
var ErrEmptyRunID = errors.New("run id is required when a log directory is set")

// LoggerConfig holds all configuration for logger setup
type LoggerConfig struct {
	// Level may be a *slog.LevelVar so it can be raised after the policy
	// file is read; nil means info.
	Level  slog.Leveler
	LogDir string // Per-run JSON log files are written here when set
	RunID  string
	// ConsoleWriter receives human-readable output; defaults to os.Stderr.
	// Stdout is reserved for the computed environment.
	ConsoleWriter io.Writer
	// Detector decides between the interactive and plain console handlers.
	// Defaults to a terminal.Detector built from the Force* options.
	Detector            InteractivityDetector
	ForceInteractive    bool
	ForceNonInteractive bool
}

// Logger is the result of SetupLogger.
type Logger struct {
	*slog.Logger
	// LogPath is the JSON log file, or empty when no log directory is set.
	LogPath string
	file    *os.File
}

// Close flushes and closes the JSON log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		_ = l.file.Close()
		return fmt.Errorf("failed to sync log file: %w", err)
	}
	return l.file.Close()
}

// SetupLogger builds the handler stack and installs it as the slog default.
// It must be called once during startup before any component logger is
// created, since components capture slog.Default() at construction.
func SetupLogger(config LoggerConfig) (*Logger, error) {
	consoleWriter := config.ConsoleWriter
	if consoleWriter == nil {
		consoleWriter = os.Stderr
	}
	detector := config.Detector
	if detector == nil {
		detector = terminal.NewDetector(terminal.Options{
			ForceInteractive:    config.ForceInteractive,
			ForceNonInteractive: config.ForceNonInteractive,
		})
	}

	// Interactive sessions get a compact line without timestamps.
	interactive, err := NewConditionalHandler(detector, true, slog.NewTextHandler(consoleWriter, &slog.HandlerOptions{
		Level:       config.Level,
		ReplaceAttr: dropTime,
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create interactive handler: %w", err)
	}
	plain, err := NewConditionalHandler(detector, false, slog.NewTextHandler(consoleWriter, &slog.HandlerOptions{
		Level: config.Level,
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create console handler: %w", err)
	}
	handlers := []slog.Handler{interactive, plain}

	result := &Logger{}
	if config.LogDir != "" {
		if config.RunID == "" {
			return nil, ErrEmptyRunID
		}
		hostname := Hostname()
		logPath := filepath.Join(config.LogDir, LogFileName(hostname, time.Now(), config.RunID))
		f, err := openLogFile(logPath)
		if err != nil {
			return nil, err
		}

		jsonHandler := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: config.Level}).WithAttrs([]slog.Attr{
			slog.String("hostname", hostname),
			slog.Int("pid", os.Getpid()),
			slog.Int("schema_version", logSchemaVersion),
			slog.String("run_id", config.RunID),
		})
		handlers = append(handlers, jsonHandler)
		result.LogPath = logPath
		result.file = f
	}

	result.Logger = slog.New(NewMultiHandler(handlers...))
	slog.SetDefault(result.Logger)
	return result, nil
}

// LogFileName returns "<host>_<timestamp>_<runid>.json" with the timestamp in UTC.
func LogFileName(hostname string, at time.Time, runID string) string {
	return fmt.Sprintf("%s_%s_%s.json", hostname, at.UTC().Format("20060102T150405Z"), runID)
}

// Hostname returns the host name, or "unknown" when it cannot be determined.
func Hostname() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "unknown"
	}
	return hostname
}

// openLogFile creates a fresh log file. O_EXCL refuses to reuse an existing
// path, including a planted symlink.
func openLogFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, logDirPerm); err != nil {
		return nil, fmt.Errorf("cannot create log directory %s: %w", dir, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, logFilePerm) //nolint:gosec // path is built from a fixed pattern under the configured directory
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

func dropTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}
