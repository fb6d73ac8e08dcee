package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"testing"

	"github.com/isseis/go-sudo-env/internal/logging"
	"github.com/isseis/go-sudo-env/internal/runner/config"
	"github.com/isseis/go-sudo-env/internal/runner/environment"
	"github.com/isseis/go-sudo-env/internal/runner/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRunID = "01HZZZZZZZZZZZZZZZZZZZZZZZ"

var errNotFound = errors.New("not found")

type nonInteractive struct{}

func (nonInteractive) IsInteractive() bool { return false }

type testEnv struct {
	deps   dependencies
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	vars   map[string]string
}

func newTestEnv(t *testing.T, files map[string]string, environ ...string) *testEnv {
	t.Helper()

	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	users := map[string]*user.User{
		"root":  {Username: "root", Uid: "0", Gid: "0", HomeDir: "/root"},
		"alice": {Username: "alice", Uid: "1001", Gid: "1001", HomeDir: "/home/alice"},
	}
	lookup := func(name string) (*user.User, error) {
		if u, ok := users[name]; ok {
			return u, nil
		}
		return nil, errNotFound
	}
	lookupID := func(uid string) (*user.User, error) {
		for _, u := range users {
			if u.Uid == uid {
				return u, nil
			}
		}
		return nil, errNotFound
	}

	te := &testEnv{
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
		vars:   map[string]string{},
	}
	te.deps = dependencies{
		environ: environ,
		getenv:  func(k string) string { return te.vars[k] },
		stdout:  te.stdout,
		stderr:  te.stderr,
		loader: config.NewLoaderWithReader(func(path string) ([]byte, error) {
			content, ok := files[path]
			if !ok {
				return nil, os.ErrNotExist
			}
			return []byte(content), nil
		}),
		resolver: identity.NewResolverWithLookup(lookup, lookupID),
		lookPath: func(cmd string) (string, error) {
			if strings.Contains(cmd, "/") {
				return cmd, nil
			}
			if cmd == "missing" {
				return "", errNotFound
			}
			return "/usr/bin/" + cmd, nil
		},
		detector: nonInteractive{},
	}
	return te
}

func requirePreExecError(t *testing.T, err error, want logging.ErrorType) *logging.PreExecutionError {
	t.Helper()
	var preErr *logging.PreExecutionError
	require.ErrorAs(t, err, &preErr)
	assert.Equal(t, want, preErr.Type)
	assert.Equal(t, testRunID, preErr.RunID)
	return preErr
}

const tomlPolicy = `
defaults = [
  'env_keep += "EDITOR"',
  'env_check += "PAGER"',
]

[target]
user = "alice"

[command]
path = "/usr/bin/id"
args = ["-u"]
`

func TestRun_PrintsSortedEnvironment(t *testing.T) {
	te := newTestEnv(t, map[string]string{"policy.toml": tomlPolicy},
		"EDITOR=vim", "PAGER=() { less; }", "SECRET=x", "TERM=xterm", "PATH=/opt/bin", "HOME=/home/bob")

	require.NoError(t, run([]string{"--policy", "policy.toml"}, testRunID, te.deps))

	assert.Equal(t, strings.Join([]string{
		"EDITOR=vim",
		"HOME=/home/alice",
		"LOGNAME=alice",
		"MAIL=/var/mail/alice",
		"PATH=/opt/bin",
		"SUDO_COMMAND=/usr/bin/id -u",
		"SUDO_GID=1001",
		"SUDO_UID=1001",
		"SUDO_USER=alice",
		"TERM=xterm",
		"USER=alice",
	}, "\n")+"\n", te.stdout.String())
}

func TestRun_CommandAndUserOverrides(t *testing.T) {
	te := newTestEnv(t, map[string]string{"policy.toml": tomlPolicy})

	require.NoError(t, run([]string{"--policy", "policy.toml", "-u", "#0", "--format", "json", "--", "ls", "-l", "/tmp"}, testRunID, te.deps))

	var env map[string]string
	require.NoError(t, json.Unmarshal(te.stdout.Bytes(), &env))
	assert.Equal(t, "/usr/bin/ls -l /tmp", env["SUDO_COMMAND"])
	assert.Equal(t, "root", env["USER"])
	assert.Equal(t, "/root", env["HOME"])
	assert.Equal(t, "0", env["SUDO_UID"])
	assert.Equal(t, environment.SecurePath, env["PATH"])
}

func TestRun_Check(t *testing.T) {
	files := map[string]string{
		"sudoers.env": "# local policy\nDefaults env_keep += \"EDITOR\"\n",
		"broken.env":  "env_keep += \"EDITOR\"\nenv_keep += \"A\n",
	}

	t.Run("valid policy", func(t *testing.T) {
		te := newTestEnv(t, files)
		require.NoError(t, run([]string{"--check", "--policy", "sudoers.env"}, testRunID, te.deps))
		assert.Equal(t, "sudoers.env: parsed OK\n", te.stdout.String())
	})

	t.Run("syntax error is located", func(t *testing.T) {
		te := newTestEnv(t, files)
		err := run([]string{"--check", "--policy", "broken.env"}, testRunID, te.deps)

		preErr := requirePreExecError(t, err, logging.ErrorTypeConfigParsing)
		assert.ErrorIs(t, preErr, config.ErrUnterminatedQuote)
		assert.Contains(t, preErr.Error(), "broken.env:2")
		assert.Empty(t, te.stdout.String())
	})

	t.Run("missing file", func(t *testing.T) {
		te := newTestEnv(t, files)
		err := run([]string{"--check", "--policy", "nope.toml"}, testRunID, te.deps)
		preErr := requirePreExecError(t, err, logging.ErrorTypeConfigParsing)
		assert.ErrorIs(t, preErr, os.ErrNotExist)
	})
}

func TestRun_Explain(t *testing.T) {
	files := map[string]string{"policy.toml": tomlPolicy}
	environ := []string{"EDITOR=vim", "PAGER=() { less; }", "SECRET=x", "SUDO_USER=mallory"}

	t.Run("text", func(t *testing.T) {
		te := newTestEnv(t, files, environ...)
		require.NoError(t, run([]string{"--policy", "policy.toml", "--explain"}, testRunID, te.deps))

		assert.Equal(t, "EDITOR\tkeep\tenv_keep\n"+
			"PAGER\tdrop\tfunction-definition\n"+
			"SECRET\tdrop\tnot-listed\n"+
			"SUDO_USER\tdrop\tinjected\n", te.stdout.String())
	})

	t.Run("json", func(t *testing.T) {
		te := newTestEnv(t, files, environ...)
		require.NoError(t, run([]string{"--policy", "policy.toml", "--explain", "--format", "json"}, testRunID, te.deps))

		var decisions map[string]environment.Decision
		require.NoError(t, json.Unmarshal(te.stdout.Bytes(), &decisions))
		assert.Equal(t, environment.Decision{Preserve: true, Reason: environment.ReasonKeep}, decisions["EDITOR"])
		assert.Equal(t, environment.Decision{Preserve: false, Reason: environment.ReasonNotListed}, decisions["SECRET"])
	})
}

func TestRun_PreExecutionErrors(t *testing.T) {
	files := map[string]string{
		"policy.toml":  tomlPolicy,
		"nouser.toml":  "[target]\nuser = \"nobody-here\"\n",
		"nocmd.toml":   "[command]\npath = \"missing\"\n",
		"loglvl.jsonc": `{"log_level": "loud"}`,
	}

	tests := []struct {
		name string
		args []string
		want logging.ErrorType
	}{
		{name: "policy required", args: []string{}, want: logging.ErrorTypeRequiredArgumentMissing},
		{name: "unknown flag", args: []string{"--bogus"}, want: logging.ErrorTypeInvalidArgument},
		{name: "unknown format", args: []string{"--policy", "policy.toml", "--format", "xml"}, want: logging.ErrorTypeInvalidArgument},
		{name: "bad log level flag", args: []string{"--policy", "policy.toml", "--log-level", "loud"}, want: logging.ErrorTypeInvalidArgument},
		{name: "bad log level in policy", args: []string{"--policy", "loglvl.jsonc"}, want: logging.ErrorTypeConfigParsing},
		{name: "unknown user", args: []string{"--policy", "nouser.toml"}, want: logging.ErrorTypeUserLookup},
		{name: "unknown command", args: []string{"--policy", "nocmd.toml"}, want: logging.ErrorTypeCommandLookup},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := newTestEnv(t, files)
			err := run(tt.args, testRunID, te.deps)
			requirePreExecError(t, err, tt.want)
			assert.Empty(t, te.stdout.String())
		})
	}
}

func TestRun_Help(t *testing.T) {
	te := newTestEnv(t, nil)
	require.NoError(t, run([]string{"--help"}, testRunID, te.deps))
	assert.Contains(t, te.stderr.String(), "--policy")
}

func TestRun_LogDirFromEnvironment(t *testing.T) {
	te := newTestEnv(t, map[string]string{"policy.toml": tomlPolicy}, "EDITOR=vim")
	dir := t.TempDir()
	te.vars[logDirEnvVar] = dir

	require.NoError(t, run([]string{"--policy", "policy.toml", "--log-level", "debug"}, testRunID, te.deps))

	matches, err := filepath.Glob(filepath.Join(dir, "*_"+testRunID+".json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	content, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), `"msg":"Environment built"`)
	assert.NotContains(t, string(content), "vim", "variable values must not be logged")
}

func TestRun_LoaderDebugReachesLogFile(t *testing.T) {
	te := newTestEnv(t, map[string]string{"policy.toml": tomlPolicy})
	dir := t.TempDir()

	require.NoError(t, run([]string{"--policy", "policy.toml", "--log-level", "debug", "--log-dir", dir, "--check"}, testRunID, te.deps))

	content := readRunLog(t, dir)
	assert.Contains(t, content, `"msg":"Policy loaded"`)
	assert.Contains(t, content, `"component":"PolicyLoader"`)
}

func TestRun_FailureRecordedInLogFile(t *testing.T) {
	te := newTestEnv(t, map[string]string{"broken.env": "env_keep += \"A\n"})
	dir := t.TempDir()
	te.vars[logDirEnvVar] = dir

	err := run([]string{"--policy", "broken.env"}, testRunID, te.deps)
	requirePreExecError(t, err, logging.ErrorTypeConfigParsing)

	content := readRunLog(t, dir)
	assert.Contains(t, content, `"msg":"Pre-execution error occurred"`)
	assert.Contains(t, content, `"error_type":"config_parsing_failed"`)

	assert.Equal(t, 1, strings.Count(te.stderr.String(), "config_parsing_failed"),
		"failure must be shown once on stderr")
}

func readRunLog(t *testing.T, dir string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*_"+testRunID+".json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	content, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(content)
}
