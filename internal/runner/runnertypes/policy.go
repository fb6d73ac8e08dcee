// Package runnertypes defines the core data structures shared by the policy
// loader, the environment engine and the command-line front end.
package runnertypes

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ListName identifies one of the two environment policy lists.
type ListName int

const (
	// ListKeep is the env_keep list: members are preserved verbatim.
	ListKeep ListName = iota
	// ListCheck is the env_check list: members are preserved only when the
	// value passes the function-definition check.
	ListCheck
)

// ErrUnknownListName is returned when a list name is neither env_keep nor env_check
var ErrUnknownListName = errors.New("unknown policy list")

// String returns the directive keyword for the list.
func (l ListName) String() string {
	switch l {
	case ListKeep:
		return "env_keep"
	case ListCheck:
		return "env_check"
	default:
		return "unknown(" + strconv.Itoa(int(l)) + ")"
	}
}

// ParseListName converts a directive keyword into a ListName.
func ParseListName(s string) (ListName, error) {
	switch s {
	case "env_keep":
		return ListKeep, nil
	case "env_check":
		return ListCheck, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownListName, s)
	}
}

// Entry is one member of a policy list. A bare entry matches a variable by
// name; an entry with a pattern additionally requires the variable's value to
// match the pattern. Entries are comparable and compare by all fields, so
// "KEY" and "KEY=" (empty pattern) are distinct.
type Entry struct {
	Name       string
	Pattern    string
	HasPattern bool
}

// NameEntry returns a bare entry.
func NameEntry(name string) Entry {
	return Entry{Name: name}
}

// PatternEntry returns a name=pattern entry.
func PatternEntry(name, pattern string) Entry {
	return Entry{Name: name, Pattern: pattern, HasPattern: true}
}

// String renders the entry the way it is written inside a quoted value.
func (e Entry) String() string {
	if e.HasPattern {
		return e.Name + "=" + e.Pattern
	}
	return e.Name
}

// DirectiveOp is the mutation a directive applies to its list.
type DirectiveOp int

const (
	// OpAssign replaces the list contents ("=").
	OpAssign DirectiveOp = iota
	// OpAppend adds entries to the list ("+=").
	OpAppend
	// OpSubtract removes entries from the list ("-=").
	OpSubtract
	// OpNegate clears the list ("!list").
	OpNegate
)

// String returns the operator as written in a directive.
func (o DirectiveOp) String() string {
	switch o {
	case OpAssign:
		return "="
	case OpAppend:
		return "+="
	case OpSubtract:
		return "-="
	case OpNegate:
		return "!"
	default:
		return "?"
	}
}

// SourceLocation points at the policy text a directive was parsed from.
// Line is set for line-oriented policy files; Index (1-based) is the position
// in the defaults array of structured files.
type SourceLocation struct {
	File  string
	Line  int
	Index int
}

// String renders the location, or an empty string when unknown.
func (s SourceLocation) String() string {
	switch {
	case s.File == "":
		return ""
	case s.Line > 0:
		return s.File + ":" + strconv.Itoa(s.Line)
	case s.Index > 0:
		return s.File + ": defaults[" + strconv.Itoa(s.Index-1) + "]"
	default:
		return s.File
	}
}

// Directive is one administrator-authored mutation of a policy list.
// Entries is ignored for OpNegate.
type Directive struct {
	List    ListName
	Op      DirectiveOp
	Entries []Entry
	Source  SourceLocation
}

// String renders the directive in the Defaults syntax with the value quoted.
func (d Directive) String() string {
	if d.Op == OpNegate {
		return "!" + d.List.String()
	}
	words := make([]string, len(d.Entries))
	for i, e := range d.Entries {
		words[i] = e.String()
	}
	return fmt.Sprintf("%s %s %q", d.List, d.Op, strings.Join(words, " "))
}

// Assign builds an "=" directive.
func Assign(list ListName, entries ...Entry) Directive {
	return Directive{List: list, Op: OpAssign, Entries: entries}
}

// Append builds a "+=" directive.
func Append(list ListName, entries ...Entry) Directive {
	return Directive{List: list, Op: OpAppend, Entries: entries}
}

// Subtract builds a "-=" directive.
func Subtract(list ListName, entries ...Entry) Directive {
	return Directive{List: list, Op: OpSubtract, Entries: entries}
}

// Negate builds a "!list" directive.
func Negate(list ListName) Directive {
	return Directive{List: list, Op: OpNegate}
}

// mailSpoolDir is where per-user mailboxes live.
const mailSpoolDir = "/var/mail"

// TargetIdentity describes the user the command runs as.
type TargetIdentity struct {
	User string
	UID  uint32
	GID  uint32
	Home string
}

// MailPath returns the mailbox path used for MAIL.
func (t TargetIdentity) MailPath() string {
	return mailSpoolDir + "/" + t.User
}

// InvocationFacts are the values injected as SUDO_* variables.
type InvocationFacts struct {
	CommandPath string
	Args        []string
	UID         uint32
	GID         uint32
	User        string
}

// CommandLine returns the resolved command followed by its arguments.
func (f InvocationFacts) CommandLine() string {
	if len(f.Args) == 0 {
		return f.CommandPath
	}
	return f.CommandPath + " " + strings.Join(f.Args, " ")
}

// PolicyConfig is a loaded policy file.
type PolicyConfig struct {
	// Directives are in declaration order.
	Directives []Directive
	// TargetUser names the user to run as.
	TargetUser string
	// Command is the command path as written in the policy, unresolved.
	Command string
	// Args are passed after Command.
	Args []string
	// LogLevel is the log level requested by the policy file.
	LogLevel LogLevel
}
