package environment

import "strings"

// Reason explains a classification decision.
type Reason string

const (
	// ReasonAlways marks variables preserved under every policy.
	ReasonAlways Reason = "always"
	// ReasonKeep marks variables preserved by env_keep.
	ReasonKeep Reason = "env_keep"
	// ReasonCheck marks variables preserved by env_check.
	ReasonCheck Reason = "env_check"
	// ReasonFunctionDefinition marks env_check matches dropped because the
	// value looks like an exported shell function.
	ReasonFunctionDefinition Reason = "function-definition"
	// ReasonNotListed marks variables no list selects.
	ReasonNotListed Reason = "not-listed"
	// ReasonInjected marks SUDO_* variables replaced by invocation facts.
	ReasonInjected Reason = "injected"
)

// Decision is the outcome of classifying one variable.
type Decision struct {
	Preserve bool   `json:"preserve"`
	Reason   Reason `json:"reason"`
}

// classificationRule returns a decision and true when it applies.
type classificationRule func(c *Classifier, name, value string) (Decision, bool)

// classificationRules are evaluated in order; the first applicable rule
// decides. env_keep is consulted before env_check, so a keep match bypasses
// the function-definition filter. Within env_check the filter applies only
// when every matching entry is a bare name.
var classificationRules = []classificationRule{
	func(_ *Classifier, name, _ string) (Decision, bool) {
		return Decision{Preserve: true, Reason: ReasonAlways}, IsAlwaysPreserved(name)
	},
	func(c *Classifier, name, value string) (Decision, bool) {
		return Decision{Preserve: true, Reason: ReasonKeep}, c.anyMatch(c.policy.Keep, name, value)
	},
	func(c *Classifier, name, value string) (Decision, bool) {
		matched, byPattern := c.match(c.policy.Check, name, value)
		if !matched {
			return Decision{}, false
		}
		// A NAME=pattern entry vouches for the value it matched.
		if !byPattern && strings.HasPrefix(value, functionPrefix) {
			return Decision{Preserve: false, Reason: ReasonFunctionDefinition}, true
		}
		return Decision{Preserve: true, Reason: ReasonCheck}, true
	},
}

// Classifier decides which invoking variables survive a folded policy.
type Classifier struct {
	policy  Policy
	matcher *Matcher
}

// NewClassifier creates a Classifier for policy.
func NewClassifier(policy Policy) *Classifier {
	return &Classifier{
		policy:  policy,
		matcher: NewMatcher(),
	}
}

// Classify decides whether the variable name=value is preserved.
func (c *Classifier) Classify(name, value string) Decision {
	for _, rule := range classificationRules {
		if d, ok := rule(c, name, value); ok {
			return d
		}
	}
	return Decision{Preserve: false, Reason: ReasonNotListed}
}

func (c *Classifier) anyMatch(list PolicyList, name, value string) bool {
	matched, _ := c.match(list, name, value)
	return matched
}

// match reports whether any entry of list selects name=value and whether
// one of the selecting entries carries a pattern.
func (c *Classifier) match(list PolicyList, name, value string) (matched, byPattern bool) {
	for e := range list.entries {
		if !c.matcher.Matches(e, name, value) {
			continue
		}
		matched = true
		if e.HasPattern {
			return true, true
		}
	}
	return matched, false
}
