// Package environment computes the environment handed to a command run as
// another user. It folds env_keep/env_check directives into policy lists,
// classifies each invoking variable against them, and then applies the
// target identity, the SUDO_* invocation facts and the PATH fallback.
package environment

import (
	"log/slog"
	"strconv"

	"github.com/isseis/go-sudo-env/internal/runner/runnertypes"
)

// Report is the result of one environment build.
type Report struct {
	// Env is the final environment.
	Env map[string]string
	// Decisions holds the classification of every invoking variable.
	Decisions map[string]Decision
}

// Builder produces the target environment for one invocation.
type Builder struct {
	classifier *Classifier
	logger     *slog.Logger
}

// NewBuilder creates a Builder for a folded policy.
func NewBuilder(policy Policy) *Builder {
	return &Builder{
		classifier: NewClassifier(policy),
		logger:     slog.Default().With("component", "EnvironmentBuilder"),
	}
}

// Build returns the final environment. It never fails; a nil invoking map
// is treated as empty.
func (b *Builder) Build(invoking map[string]string, target runnertypes.TargetIdentity, facts runnertypes.InvocationFacts) map[string]string {
	return b.BuildReport(invoking, target, facts).Env
}

// BuildReport is Build with the per-variable decisions attached.
func (b *Builder) BuildReport(invoking map[string]string, target runnertypes.TargetIdentity, facts runnertypes.InvocationFacts) Report {
	env := make(map[string]string, len(invoking)+len(IdentityVariables)+len(InjectedVariables)+1)
	decisions := make(map[string]Decision, len(invoking))

	for name, value := range invoking {
		d := b.classifier.Classify(name, value)
		decisions[name] = d
		if d.Preserve {
			env[name] = value
			continue
		}
		b.logger.Debug("Variable dropped", "variable", name, "reason", string(d.Reason))
	}

	applyIdentity(env, target)

	for name, value := range injectedValues(facts) {
		if _, ok := invoking[name]; ok {
			decisions[name] = Decision{Preserve: false, Reason: ReasonInjected}
		}
		env[name] = value
	}

	if _, ok := env[VarPath]; !ok {
		env[VarPath] = SecurePath
		b.logger.Debug("PATH not preserved, using secure path", "path", SecurePath)
	}

	b.logger.Info("Environment built",
		"invoking_vars", len(invoking),
		"final_vars", len(env),
		"target_user", target.User)

	return Report{Env: env, Decisions: decisions}
}

// applyIdentity fills HOME, LOGNAME, MAIL and USER for variables the policy
// did not preserve. LOGNAME and USER stay in sync: when only one of them was
// preserved, the other takes its value.
func applyIdentity(env map[string]string, target runnertypes.TargetIdentity) {
	_, lognameKept := env[VarLogname]
	_, userKept := env[VarUser]

	derived := map[string]string{
		VarHome:    target.Home,
		VarLogname: target.User,
		VarMail:    target.MailPath(),
		VarUser:    target.User,
	}
	for _, name := range IdentityVariables {
		if _, ok := env[name]; !ok {
			env[name] = derived[name]
		}
	}

	switch {
	case lognameKept && !userKept:
		env[VarUser] = env[VarLogname]
	case userKept && !lognameKept:
		env[VarLogname] = env[VarUser]
	}
}

func injectedValues(facts runnertypes.InvocationFacts) map[string]string {
	return map[string]string{
		VarSudoCommand: facts.CommandLine(),
		VarSudoGID:     strconv.FormatUint(uint64(facts.GID), 10),
		VarSudoUID:     strconv.FormatUint(uint64(facts.UID), 10),
		VarSudoUser:    facts.User,
	}
}

// Evaluate folds directives over the built-in defaults and builds the
// environment for one invocation.
func Evaluate(directives []runnertypes.Directive, invoking map[string]string, target runnertypes.TargetIdentity, facts runnertypes.InvocationFacts) Report {
	return NewBuilder(FoldPolicy(directives)).BuildReport(invoking, target, facts)
}
