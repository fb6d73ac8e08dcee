package config

import (
	"fmt"
	"strings"

	"github.com/isseis/go-sudo-env/internal/runner/runnertypes"
	"github.com/kballard/go-shellquote"
)

const (
	defaultsKeyword = "Defaults"
	negatePrefix    = "!"
	quoteChar       = `"`
)

// operators in match order; two-character operators come first.
var operators = []struct {
	text string
	op   runnertypes.DirectiveOp
}{
	{"+=", runnertypes.OpAppend},
	{"-=", runnertypes.OpSubtract},
	{"=", runnertypes.OpAssign},
}

// ParseDirective parses one env_keep/env_check setting:
//
//	[Defaults] env_keep = "NAME NAME=pattern ..."
//	[Defaults] env_check += NAME
//	[Defaults] env_keep -= "NAME ..."
//	[Defaults] !env_check
//
// A double-quoted value is a whitespace-separated list whose words are either
// NAME or NAME=pattern. An unquoted value is a single word taken literally as
// a name, so `env_keep = KEY=value` yields the name "KEY=value", which no
// variable can match.
func ParseDirective(text string) (runnertypes.Directive, error) {
	s := strings.TrimSpace(text)
	if rest, ok := strings.CutPrefix(s, defaultsKeyword); ok && (rest == "" || isSpace(rest[0])) {
		s = strings.TrimSpace(rest)
	}
	if s == "" {
		return runnertypes.Directive{}, ErrEmptyDirective
	}

	if rest, ok := strings.CutPrefix(s, negatePrefix); ok {
		list, err := runnertypes.ParseListName(strings.TrimSpace(rest))
		if err != nil {
			return runnertypes.Directive{}, err
		}
		return runnertypes.Negate(list), nil
	}

	opIdx := strings.IndexAny(s, "+-=")
	if opIdx < 0 {
		return runnertypes.Directive{}, fmt.Errorf("%w: %q", ErrMissingOperator, s)
	}

	list, err := runnertypes.ParseListName(strings.TrimSpace(s[:opIdx]))
	if err != nil {
		return runnertypes.Directive{}, err
	}

	rest := s[opIdx:]
	for _, candidate := range operators {
		value, ok := strings.CutPrefix(rest, candidate.text)
		if !ok {
			continue
		}
		entries, err := parseValue(strings.TrimSpace(value))
		if err != nil {
			return runnertypes.Directive{}, err
		}
		return runnertypes.Directive{List: list, Op: candidate.op, Entries: entries}, nil
	}
	return runnertypes.Directive{}, fmt.Errorf("%w: %q", ErrMissingOperator, s)
}

func parseValue(value string) ([]runnertypes.Entry, error) {
	if value == "" {
		return nil, ErrEmptyValue
	}

	if !strings.HasPrefix(value, quoteChar) {
		if strings.ContainsAny(value, " \t") {
			return nil, fmt.Errorf("%w: %q", ErrUnquotedWhitespace, value)
		}
		return []runnertypes.Entry{runnertypes.NameEntry(value)}, nil
	}

	words, err := shellquote.Split(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnterminatedQuote, err)
	}
	if len(words) != 1 || !strings.HasSuffix(value, quoteChar) {
		return nil, fmt.Errorf("%w: %q", ErrTrailingCharacters, value)
	}

	fields := strings.Fields(words[0])
	entries := make([]runnertypes.Entry, 0, len(fields))
	for _, field := range fields {
		name, pattern, hasPattern := strings.Cut(field, "=")
		if name == "" {
			return nil, fmt.Errorf("%w: %q", ErrEmptyEntryName, field)
		}
		if hasPattern {
			entries = append(entries, runnertypes.PatternEntry(name, pattern))
		} else {
			entries = append(entries, runnertypes.NameEntry(name))
		}
	}
	return entries, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t'
}
