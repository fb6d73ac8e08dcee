// Package main provides the sudoenv command. It loads an environment policy
// file, applies it to the current environment as if the given command were
// run as the target user, and prints the resulting environment.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"github.com/isseis/go-sudo-env/internal/common"
	"github.com/isseis/go-sudo-env/internal/logging"
	"github.com/isseis/go-sudo-env/internal/runner/config"
	"github.com/isseis/go-sudo-env/internal/runner/environment"
	"github.com/isseis/go-sudo-env/internal/runner/identity"
	"github.com/isseis/go-sudo-env/internal/runner/runnertypes"
	"github.com/spf13/pflag"
)

// logDirEnvVar overrides the log directory when --log-dir is not given
const logDirEnvVar = "SUDOENV_LOG_DIR"

// Output formats
const (
	formatEnv  = "env"
	formatJSON = "json"
)

// Error definitions
var (
	ErrPolicyPathRequired = errors.New("--policy is required")
	ErrUnknownFormat      = errors.New("unknown output format")
)

// options holds the parsed command line
type options struct {
	policyPath string
	user       string
	logLevel   runnertypes.LogLevel
	logDir     string
	format     string
	explain    bool
	check      bool
	command    []string
}

// dependencies are the process facts run works against
type dependencies struct {
	environ  []string
	getenv   func(string) string
	stdout   io.Writer
	stderr   io.Writer
	loader   *config.Loader
	resolver *identity.Resolver
	lookPath func(string) (string, error)
	detector logging.InteractivityDetector
}

func defaultDependencies() dependencies {
	return dependencies{
		environ:  os.Environ(),
		getenv:   os.Getenv,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		loader:   config.NewLoader(),
		resolver: identity.NewResolver(),
		lookPath: exec.LookPath,
	}
}

func main() {
	// Generate run ID early for error handling
	runID := logging.GenerateRunID()

	// run has already reported the failure
	if err := run(os.Args[1:], runID, defaultDependencies()); err != nil {
		os.Exit(1)
	}
}

func parseOptions(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs := pflag.NewFlagSet("sudoenv", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.policyPath, "policy", "", "path to the policy file (.toml, .yaml, .json or Defaults lines)")
	fs.StringVarP(&opts.user, "user", "u", "", "target user name or #uid (overrides the policy file)")
	fs.Var(&opts.logLevel, "log-level", "log level (debug, info, warn, error); overrides the policy file")
	fs.StringVar(&opts.logDir, "log-dir", "", "directory for the per-run JSON log (default $"+logDirEnvVar+")")
	fs.StringVar(&opts.format, "format", formatEnv, "output format (env, json)")
	fs.BoolVar(&opts.explain, "explain", false, "print the decision for each invoking variable instead of the environment")
	fs.BoolVar(&opts.check, "check", false, "parse the policy file and exit")
	fs.SetInterspersed(false)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	opts.command = fs.Args()
	return opts, nil
}

// run reports every failure itself through logging.HandlePreExecutionError
// before returning it, while the per-run log file is still open.
func run(args []string, runID string, deps dependencies) error {
	opts, err := parseOptions(args, deps.stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return report(deps.stderr, runID, &logging.PreExecutionError{
			Type:      logging.ErrorTypeInvalidArgument,
			Message:   "Invalid command line",
			Component: "main",
			RunID:     runID,
			Err:       err,
		})
	}
	if opts.format != formatEnv && opts.format != formatJSON {
		return report(deps.stderr, runID, &logging.PreExecutionError{
			Type:      logging.ErrorTypeInvalidArgument,
			Message:   fmt.Sprintf("%v: %q", ErrUnknownFormat, opts.format),
			Component: "main",
			RunID:     runID,
		})
	}

	// The level may be raised once the policy file is read
	level := new(slog.LevelVar)
	if opts.logLevel != "" {
		flagLevel, err := opts.logLevel.ToSlogLevel()
		if err != nil {
			return report(deps.stderr, runID, &logging.PreExecutionError{Type: logging.ErrorTypeInvalidArgument, Message: "Invalid log level", Component: "main", RunID: runID, Err: err})
		}
		level.Set(flagLevel)
	}

	logDir := opts.logDir
	if logDir == "" {
		logDir = deps.getenv(logDirEnvVar)
	}
	logger, err := logging.SetupLogger(logging.LoggerConfig{
		Level:         level,
		LogDir:        logDir,
		RunID:         runID,
		ConsoleWriter: deps.stderr,
		Detector:      deps.detector,
	})
	if err != nil {
		return report(deps.stderr, runID, &logging.PreExecutionError{
			Type:      logging.ErrorTypeLogFileOpen,
			Message:   "Failed to setup logger",
			Component: "logging",
			RunID:     runID,
			Err:       err,
		})
	}
	defer func() {
		if cerr := logger.Close(); cerr != nil {
			fmt.Fprintf(deps.stderr, "Warning: failed to close log file: %v\n", cerr)
		}
	}()

	if err := execute(opts, level, runID, deps); err != nil {
		return report(deps.stderr, runID, err)
	}
	return nil
}

// report hands err to HandlePreExecutionError and returns it. Errors that
// are not PreExecutionErrors come from writing the result.
func report(w io.Writer, runID string, err error) error {
	var preExecErr *logging.PreExecutionError
	if !errors.As(err, &preExecErr) {
		preExecErr = &logging.PreExecutionError{
			Type:      logging.ErrorTypeOutput,
			Message:   "Failed to write result",
			Component: "main",
			RunID:     runID,
			Err:       err,
		}
		err = preExecErr
	}
	logging.HandlePreExecutionError(w, preExecErr)
	return err
}

// execute loads the policy and prints the result once logging is set up.
func execute(opts *options, level *slog.LevelVar, runID string, deps dependencies) error {
	if opts.policyPath == "" {
		return &logging.PreExecutionError{
			Type:      logging.ErrorTypeRequiredArgumentMissing,
			Message:   ErrPolicyPathRequired.Error(),
			Component: "main",
			RunID:     runID,
		}
	}

	cfg, err := deps.loader.LoadPolicy(opts.policyPath)
	if err != nil {
		return &logging.PreExecutionError{
			Type:      logging.ErrorTypeConfigParsing,
			Message:   "Failed to load policy",
			Component: "config",
			RunID:     runID,
			Err:       err,
		}
	}
	if opts.logLevel == "" {
		policyLevel, err := cfg.LogLevel.ToSlogLevel()
		if err != nil {
			return &logging.PreExecutionError{Type: logging.ErrorTypeConfigParsing, Message: "Invalid log level in policy", Component: "config", RunID: runID, Err: err}
		}
		level.Set(policyLevel)
	}

	if opts.check {
		_, err := fmt.Fprintf(deps.stdout, "%s: parsed OK\n", opts.policyPath)
		return err
	}

	userName := cfg.TargetUser
	if opts.user != "" {
		userName = opts.user
	}
	target, err := deps.resolver.Resolve(userName)
	if err != nil {
		return &logging.PreExecutionError{
			Type:      logging.ErrorTypeUserLookup,
			Message:   fmt.Sprintf("Cannot resolve target user %q", userName),
			Component: "identity",
			RunID:     runID,
			Err:       err,
		}
	}

	command, commandArgs := cfg.Command, cfg.Args
	if len(opts.command) > 0 {
		command, commandArgs = opts.command[0], opts.command[1:]
	}
	commandPath, err := deps.lookPath(command)
	if err != nil {
		return &logging.PreExecutionError{
			Type:      logging.ErrorTypeCommandLookup,
			Message:   fmt.Sprintf("Cannot resolve command %q", command),
			Component: "main",
			RunID:     runID,
			Err:       err,
		}
	}

	facts := identity.InvocationFacts(target, commandPath, commandArgs)
	result := environment.Evaluate(cfg.Directives, common.EnvironMap(deps.environ), target, facts)

	slog.Debug("Environment computed",
		"component", "main",
		"policy", opts.policyPath,
		"target_user", target.User,
		"command", commandPath)

	if opts.explain {
		return writeDecisions(deps.stdout, opts.format, result.Decisions)
	}
	return writeEnvironment(deps.stdout, opts.format, result.Env)
}

func writeEnvironment(w io.Writer, format string, env map[string]string) error {
	if format == formatJSON {
		return writeJSON(w, env)
	}
	for _, line := range common.EnvironSlice(env) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func writeDecisions(w io.Writer, format string, decisions map[string]environment.Decision) error {
	if format == formatJSON {
		return writeJSON(w, decisions)
	}
	for _, name := range common.SortedKeys(decisions) {
		d := decisions[name]
		verdict := "drop"
		if d.Preserve {
			verdict = "keep"
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", name, verdict, d.Reason); err != nil {
			return err
		}
	}
	return nil
}

// writeJSON writes v as indented JSON; map keys come out sorted.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
