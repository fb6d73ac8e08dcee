package environment

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/isseis/go-sudo-env/internal/runner/runnertypes"
)

// wildcard is the only metacharacter in names and patterns.
const wildcard = "*"

// Matcher tests policy entries against variables. Compiled patterns are
// cached, so a Matcher belongs to a single evaluation and must not be shared
// between goroutines.
type Matcher struct {
	compiled map[string]glob.Glob
}

// NewMatcher creates a Matcher with an empty pattern cache.
func NewMatcher() *Matcher {
	return &Matcher{compiled: make(map[string]glob.Glob)}
}

// Matches reports whether entry e selects the variable name=value.
// A bare entry ignores the value; a pattern entry requires the whole value to
// match the pattern, where '*' matches any run of characters.
func (m *Matcher) Matches(e runnertypes.Entry, name, value string) bool {
	if !m.match(e.Name, name) {
		return false
	}
	if !e.HasPattern {
		return true
	}
	return m.match(e.Pattern, value)
}

func (m *Matcher) match(pattern, s string) bool {
	if !strings.Contains(pattern, wildcard) {
		return pattern == s
	}
	g, ok := m.compiled[pattern]
	if !ok {
		var err error
		g, err = compileWildcard(pattern)
		if err != nil {
			// Quoted input always compiles; fail closed regardless.
			return false
		}
		m.compiled[pattern] = g
	}
	return g.Match(s)
}

// compileWildcard compiles pattern treating every character other than '*'
// literally.
func compileWildcard(pattern string) (glob.Glob, error) {
	parts := strings.Split(pattern, wildcard)
	for i, part := range parts {
		parts[i] = glob.QuoteMeta(part)
	}
	return glob.Compile(strings.Join(parts, wildcard))
}
