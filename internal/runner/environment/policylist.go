package environment

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/isseis/go-sudo-env/internal/runner/runnertypes"
)

// PolicyList is an immutable set of entries. Every mutating operation
// returns a new list and leaves the receiver untouched. The zero value is an
// empty list.
type PolicyList struct {
	entries map[runnertypes.Entry]struct{}
}

// NewPolicyList returns a list holding entries. Duplicates collapse.
func NewPolicyList(entries ...runnertypes.Entry) PolicyList {
	m := make(map[runnertypes.Entry]struct{}, len(entries))
	for _, e := range entries {
		m[e] = struct{}{}
	}
	return PolicyList{entries: m}
}

// Len returns the number of distinct entries.
func (l PolicyList) Len() int {
	return len(l.entries)
}

// Contains reports whether e is a member.
func (l PolicyList) Contains(e runnertypes.Entry) bool {
	_, ok := l.entries[e]
	return ok
}

// Entries returns the members sorted by name then pattern.
func (l PolicyList) Entries() []runnertypes.Entry {
	out := make([]runnertypes.Entry, 0, len(l.entries))
	for e := range l.entries {
		out = append(out, e)
	}
	slices.SortFunc(out, compareEntries)
	return out
}

func compareEntries(a, b runnertypes.Entry) int {
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	if a.HasPattern != b.HasPattern {
		if a.HasPattern {
			return 1
		}
		return -1
	}
	return strings.Compare(a.Pattern, b.Pattern)
}

// Assign returns a list holding exactly entries.
func (l PolicyList) Assign(entries []runnertypes.Entry) PolicyList {
	return NewPolicyList(entries...)
}

// Append returns the union of l and entries.
func (l PolicyList) Append(entries []runnertypes.Entry) PolicyList {
	m := make(map[runnertypes.Entry]struct{}, len(l.entries)+len(entries))
	for e := range l.entries {
		m[e] = struct{}{}
	}
	for _, e := range entries {
		m[e] = struct{}{}
	}
	return PolicyList{entries: m}
}

// Subtract returns l without entries. Entries that are not members are
// ignored.
func (l PolicyList) Subtract(entries []runnertypes.Entry) PolicyList {
	m := make(map[runnertypes.Entry]struct{}, len(l.entries))
	for e := range l.entries {
		m[e] = struct{}{}
	}
	for _, e := range entries {
		delete(m, e)
	}
	return PolicyList{entries: m}
}

// Negate returns an empty list.
func (l PolicyList) Negate() PolicyList {
	return PolicyList{}
}

// Apply returns the result of one directive. The directive's list name is
// not consulted.
func (l PolicyList) Apply(d runnertypes.Directive) PolicyList {
	switch d.Op {
	case runnertypes.OpAssign:
		return l.Assign(d.Entries)
	case runnertypes.OpAppend:
		return l.Append(d.Entries)
	case runnertypes.OpSubtract:
		return l.Subtract(d.Entries)
	case runnertypes.OpNegate:
		return l.Negate()
	default:
		return l
	}
}

// Fold applies, in order, the directives that target list, starting from
// initial.
func Fold(directives []runnertypes.Directive, list runnertypes.ListName, initial PolicyList) PolicyList {
	logger := slog.Default().With("component", "DirectiveFold")
	current := initial
	for _, d := range directives {
		if d.List != list {
			continue
		}
		current = current.Apply(d)
		logger.Debug("Applied directive",
			"list", list.String(),
			"op", d.Op.String(),
			"entries", len(d.Entries),
			"source", d.Source.String(),
			"size", current.Len())
	}
	return current
}

// Policy is the folded content of both lists for one invocation.
type Policy struct {
	Keep  PolicyList
	Check PolicyList
}

// FoldPolicy seeds both lists with the built-in defaults and folds
// directives into them.
func FoldPolicy(directives []runnertypes.Directive) Policy {
	return Policy{
		Keep:  Fold(directives, runnertypes.ListKeep, NewPolicyList(DefaultEntries(runnertypes.ListKeep)...)),
		Check: Fold(directives, runnertypes.ListCheck, NewPolicyList(DefaultEntries(runnertypes.ListCheck)...)),
	}
}
