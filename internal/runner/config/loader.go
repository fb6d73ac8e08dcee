// Package config loads environment policy files. A policy file carries an
// ordered list of env_keep/env_check directives and, for structured formats,
// the target user and command. TOML is the primary format; YAML, JSON with
// comments and plain sudoers-style Defaults lines are also accepted.
package config

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/isseis/go-sudo-env/internal/runner/runnertypes"
	"github.com/isseis/go-sudo-env/internal/safefileio"
	"github.com/pelletier/go-toml/v2"
	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"
)

// Default values for optional policy fields
const (
	DefaultTargetUser = "root"
	DefaultCommand    = "/usr/bin/env"
)

// commentPrefix starts a comment line in plain policy files.
const commentPrefix = "#"

// Format is a policy file encoding.
type Format string

const (
	// FormatTOML is the default format
	FormatTOML Format = "toml"
	// FormatYAML is selected by .yaml and .yml
	FormatYAML Format = "yaml"
	// FormatJSON is selected by .json and .jsonc; comments and trailing commas are allowed
	FormatJSON Format = "json"
	// FormatDefaults is one directive per line, for any other extension
	FormatDefaults Format = "defaults"
)

// FormatForPath selects the format from the file extension.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML
	case ".yaml", ".yml":
		return FormatYAML
	case ".json", ".jsonc":
		return FormatJSON
	default:
		return FormatDefaults
	}
}

// PolicySpec is the decoded form of a structured policy file.
type PolicySpec struct {
	Defaults []string             `toml:"defaults" yaml:"defaults" json:"defaults"`
	LogLevel runnertypes.LogLevel `toml:"log_level" yaml:"log_level" json:"log_level"`
	Target   TargetSpec           `toml:"target" yaml:"target" json:"target"`
	Command  CommandSpec          `toml:"command" yaml:"command" json:"command"`
}

// TargetSpec selects the user the command runs as.
type TargetSpec struct {
	User string `toml:"user" yaml:"user" json:"user"`
}

// CommandSpec is the command whose environment is computed.
type CommandSpec struct {
	Path string   `toml:"path" yaml:"path" json:"path"`
	Args []string `toml:"args" yaml:"args" json:"args"`
}

// Loader reads and parses policy files
type Loader struct {
	readFile func(string) ([]byte, error)
}

// NewLoader creates a new policy loader reading from the local filesystem.
// Symbolic links are refused.
func NewLoader() *Loader {
	return NewLoaderWithReader(safefileio.SafeReadFile)
}

// NewLoaderWithReader creates a loader with a custom file reader
func NewLoaderWithReader(readFile func(string) ([]byte, error)) *Loader {
	return &Loader{readFile: readFile}
}

// logger is looked up per call so a Loader built before logging setup still
// writes to the configured handlers.
func (l *Loader) logger() *slog.Logger {
	return slog.Default().With("component", "PolicyLoader")
}

// LoadPolicy reads and parses the policy file at path.
func (l *Loader) LoadPolicy(path string) (*runnertypes.PolicyConfig, error) {
	if path == "" {
		return nil, ErrInvalidConfigPath
	}
	content, err := l.readFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return l.LoadPolicyContent(path, content)
}

// LoadPolicyContent parses content as the policy file at path. The path is
// used to select the format and for error locations.
func (l *Loader) LoadPolicyContent(path string, content []byte) (*runnertypes.PolicyConfig, error) {
	format := FormatForPath(path)

	var (
		cfg *runnertypes.PolicyConfig
		err error
	)
	if format == FormatDefaults {
		cfg, err = parseDefaultsLines(path, content)
	} else {
		cfg, err = parseStructured(path, format, content)
	}
	if err != nil {
		return nil, err
	}

	l.logger().Debug("Policy loaded",
		"path", path,
		"format", string(format),
		"directives", len(cfg.Directives),
		"target_user", cfg.TargetUser)

	return cfg, nil
}

func parseStructured(path string, format Format, content []byte) (*runnertypes.PolicyConfig, error) {
	spec, err := decodeSpec(format, content)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrPolicyParse, path, err)
	}

	cfg := &runnertypes.PolicyConfig{
		Directives: make([]runnertypes.Directive, 0, len(spec.Defaults)),
		TargetUser: spec.Target.User,
		Command:    spec.Command.Path,
		Args:       spec.Command.Args,
		LogLevel:   spec.LogLevel,
	}
	for i, text := range spec.Defaults {
		loc := runnertypes.SourceLocation{File: path, Index: i + 1}
		d, err := ParseDirective(text)
		if err != nil {
			return nil, &DirectiveError{Source: loc, Text: text, Err: err}
		}
		d.Source = loc
		cfg.Directives = append(cfg.Directives, d)
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

func decodeSpec(format Format, content []byte) (*PolicySpec, error) {
	var spec PolicySpec
	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(content))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&spec); err != nil {
			return nil, err
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(content))
		dec.KnownFields(true)
		if err := dec.Decode(&spec); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	case FormatJSON:
		standard, err := hujson.Standardize(content)
		if err != nil {
			return nil, err
		}
		dec := json.NewDecoder(bytes.NewReader(standard))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&spec); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	return &spec, nil
}

// parseDefaultsLines parses one directive per line. Blank lines and lines
// starting with '#' are skipped.
func parseDefaultsLines(path string, content []byte) (*runnertypes.PolicyConfig, error) {
	cfg := &runnertypes.PolicyConfig{}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, commentPrefix) {
			continue
		}
		loc := runnertypes.SourceLocation{File: path, Line: line}
		d, err := ParseDirective(text)
		if err != nil {
			return nil, &DirectiveError{Source: loc, Text: text, Err: err}
		}
		d.Source = loc
		cfg.Directives = append(cfg.Directives, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrPolicyParse, path, err)
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// ApplyDefaults fills optional fields left empty by the policy file
func ApplyDefaults(cfg *runnertypes.PolicyConfig) {
	if cfg.TargetUser == "" {
		cfg.TargetUser = DefaultTargetUser
	}
	if cfg.Command == "" {
		cfg.Command = DefaultCommand
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = runnertypes.LogLevelInfo
	}
}
