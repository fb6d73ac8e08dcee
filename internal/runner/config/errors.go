package config

import (
	"errors"
	"fmt"

	"github.com/isseis/go-sudo-env/internal/runner/runnertypes"
)

// Directive syntax errors
var (
	// ErrEmptyDirective is returned for a directive with no content
	ErrEmptyDirective = errors.New("empty directive")

	// ErrMissingOperator is returned when a directive has no =, += or -= operator
	ErrMissingOperator = errors.New("missing operator (expected =, += or -=)")

	// ErrEmptyValue is returned when an operator is not followed by a value
	ErrEmptyValue = errors.New("missing value after operator")

	// ErrUnquotedWhitespace is returned when an unquoted value contains more than one word
	ErrUnquotedWhitespace = errors.New("value with several entries must be double-quoted")

	// ErrUnterminatedQuote is returned when a double-quoted value is not closed
	ErrUnterminatedQuote = errors.New("unterminated quoted value")

	// ErrTrailingCharacters is returned when text follows a quoted value
	ErrTrailingCharacters = errors.New("unexpected characters after quoted value")

	// ErrEmptyEntryName is returned for entries such as "=value"
	ErrEmptyEntryName = errors.New("entry has empty variable name")
)

// Policy file errors
var (
	// ErrInvalidConfigPath is returned when the policy file path is empty
	ErrInvalidConfigPath = errors.New("invalid policy file path")

	// ErrPolicyParse is returned when a policy file cannot be decoded
	ErrPolicyParse = errors.New("failed to parse policy file")
)

// DirectiveError reports a directive that failed to parse together with its
// location in the policy file.
type DirectiveError struct {
	Source runnertypes.SourceLocation
	Text   string
	Err    error
}

// Error implements the error interface
func (e *DirectiveError) Error() string {
	if loc := e.Source.String(); loc != "" {
		return fmt.Sprintf("%s: syntax error in %q: %v", loc, e.Text, e.Err)
	}
	return fmt.Sprintf("syntax error in %q: %v", e.Text, e.Err)
}

// Unwrap returns the underlying syntax error
func (e *DirectiveError) Unwrap() error {
	return e.Err
}
