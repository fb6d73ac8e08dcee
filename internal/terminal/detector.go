// Package terminal decides whether diagnostic output goes to a person at a
// terminal or to a log collector, so the logging setup can pick a handler.
package terminal

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ciEnvVars contains common CI environment variables
var ciEnvVars = []string{
	"CI",                     // Generic CI indicator
	"CONTINUOUS_INTEGRATION", // Generic CI indicator
	"GITHUB_ACTIONS",         // GitHub Actions
	"GITLAB_CI",              // GitLab CI
	"JENKINS_URL",            // Jenkins
	"BUILDKITE",              // Buildkite
	"TF_BUILD",               // Azure DevOps
}

// Options controls interactive detection
type Options struct {
	ForceInteractive    bool // Treat the session as interactive regardless of environment
	ForceNonInteractive bool // Treat the session as non-interactive regardless of environment
}

// Detector reports whether the current process talks to a person.
type Detector struct {
	options    Options
	getenv     func(string) string
	isTerminal func(fd int) bool
	stderrFd   int
}

// NewDetector creates a detector reading the process environment and stderr.
func NewDetector(options Options) *Detector {
	return NewDetectorWithProbes(options, os.Getenv, term.IsTerminal, int(os.Stderr.Fd()))
}

// NewDetectorWithProbes creates a detector with custom environment and
// terminal probes.
func NewDetectorWithProbes(options Options, getenv func(string) string, isTerminal func(int) bool, stderrFd int) *Detector {
	return &Detector{
		options:    options,
		getenv:     getenv,
		isTerminal: isTerminal,
		stderrFd:   stderrFd,
	}
}

// IsInteractive returns true if the session should get human-oriented output.
// Forced options win, then CI detection, then whether stderr is a terminal.
// Only stderr is checked since stdout usually carries the computed
// environment and is often redirected.
func (d *Detector) IsInteractive() bool {
	if d.options.ForceInteractive {
		return true
	}
	if d.options.ForceNonInteractive {
		return false
	}
	if d.IsCIEnvironment() {
		return false
	}
	return d.isTerminal(d.stderrFd)
}

// IsCIEnvironment checks if the current environment is a CI/CD system
func (d *Detector) IsCIEnvironment() bool {
	for _, envVar := range ciEnvVars {
		value := d.getenv(envVar)
		if value == "" {
			continue
		}
		// CI=false and friends mean "not CI"
		if envVar == "CI" {
			return isTruthy(value)
		}
		return true
	}
	return false
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "false", "0", "no":
		return false
	default:
		return true
	}
}
