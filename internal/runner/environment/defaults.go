package environment

import "github.com/isseis/go-sudo-env/internal/runner/runnertypes"

// SecurePath is the PATH given to the command when the policy does not
// preserve the caller's PATH.
const SecurePath = "/usr/bin:/bin:/usr/sbin:/sbin"

// Variable names with fixed treatment.
const (
	VarTerm = "TERM"
	VarPath = "PATH"

	VarHome    = "HOME"
	VarLogname = "LOGNAME"
	VarMail    = "MAIL"
	VarUser    = "USER"

	VarSudoCommand = "SUDO_COMMAND"
	VarSudoGID     = "SUDO_GID"
	VarSudoUID     = "SUDO_UID"
	VarSudoUser    = "SUDO_USER"
)

// functionPrefix marks a bash exported function definition.
const functionPrefix = "()"

// IdentityVariables are recomputed for the target user unless preserved.
var IdentityVariables = []string{VarHome, VarLogname, VarMail, VarUser}

// InjectedVariables always carry invocation facts.
var InjectedVariables = []string{VarSudoCommand, VarSudoGID, VarSudoUID, VarSudoUser}

// defaultKeepNames seed env_keep.
var defaultKeepNames = []string{
	"COLORS",
	"DISPLAY",
	"HOSTNAME",
	"KRB5CCNAME",
	"LS_COLORS",
	VarPath,
	"PS1",
	"PS2",
	"XAUTHORITY",
	"XAUTHORIZATION",
	"XDG_CURRENT_DESKTOP",
}

// defaultCheckNames seed env_check.
var defaultCheckNames = []string{
	"COLORTERM",
	"LANG",
	"LANGUAGE",
	"LC_*",
	"LINGUAS",
	"TZ",
}

// DefaultEntries returns the built-in contents of list. The result is a
// fresh slice the caller may keep.
func DefaultEntries(list runnertypes.ListName) []runnertypes.Entry {
	var names []string
	switch list {
	case runnertypes.ListKeep:
		names = defaultKeepNames
	case runnertypes.ListCheck:
		names = defaultCheckNames
	}
	entries := make([]runnertypes.Entry, len(names))
	for i, name := range names {
		entries[i] = runnertypes.NameEntry(name)
	}
	return entries
}

// IsAlwaysPreserved reports whether name survives every directive combination.
func IsAlwaysPreserved(name string) bool {
	return name == VarTerm
}
