package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ErrorType classifies failures that stop sudoenv before an environment is printed
type ErrorType string

const (
	// ErrorTypeRequiredArgumentMissing represents missing required argument errors
	ErrorTypeRequiredArgumentMissing ErrorType = "required_argument_missing"
	// ErrorTypeInvalidArgument represents malformed flag values
	ErrorTypeInvalidArgument ErrorType = "invalid_argument"
	// ErrorTypeConfigParsing represents policy file read or parse failures
	ErrorTypeConfigParsing ErrorType = "config_parsing_failed"
	// ErrorTypeLogFileOpen represents log file opening failures
	ErrorTypeLogFileOpen ErrorType = "log_file_open_failed"
	// ErrorTypeUserLookup represents target user resolution failures
	ErrorTypeUserLookup ErrorType = "user_lookup_failed"
	// ErrorTypeCommandLookup represents command path resolution failures
	ErrorTypeCommandLookup ErrorType = "command_lookup_failed"
	// ErrorTypeOutput represents failures writing the result
	ErrorTypeOutput ErrorType = "output_failed"
)

// PreExecutionError represents an error that occurs before the environment
// is produced.
type PreExecutionError struct {
	Type      ErrorType
	Message   string
	Component string
	RunID     string
	Err       error
}

// Error implements the error interface
func (e *PreExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v (component: %s, run_id: %s)", e.Type, e.Message, e.Err, e.Component, e.RunID)
	}
	return fmt.Sprintf("%s: %s (component: %s, run_id: %s)", e.Type, e.Message, e.Component, e.RunID)
}

// Unwrap returns the underlying error
func (e *PreExecutionError) Unwrap() error {
	return e.Err
}

// HandlePreExecutionError writes a short report to w and records the failure
// in the JSON log file, if one is open. The record skips the console
// handlers since w already shows it. Call it before closing the Logger.
func HandlePreExecutionError(w io.Writer, err *PreExecutionError) {
	// Build the report first so it is written in one call
	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", err.Type)
	if err.Component != "" {
		fmt.Fprintf(&sb, "  Component: %s\n", err.Component)
	}
	fmt.Fprintf(&sb, "  Details: %s\n", err.Message)
	if err.Err != nil {
		fmt.Fprintf(&sb, "  Cause: %v\n", err.Err)
	}
	if err.RunID != "" {
		fmt.Fprintf(&sb, "  Run ID: %s\n", err.RunID)
	}
	_, _ = io.WriteString(w, sb.String())

	attrs := []any{
		"error_type", string(err.Type),
		"error_message", err.Message,
		"component", err.Component,
		"run_id", err.RunID,
	}
	if err.Err != nil {
		attrs = append(attrs, "error", err.Err.Error())
	}
	slog.Default().ErrorContext(WithoutConsole(context.Background()), "Pre-execution error occurred", attrs...)
}
