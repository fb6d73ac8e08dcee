package environment

import (
	"testing"

	"github.com/isseis/go-sudo-env/internal/runner/runnertypes"
	"github.com/stretchr/testify/assert"
)

var (
	entryA = runnertypes.NameEntry("A")
	entryB = runnertypes.NameEntry("B")
	entryX = runnertypes.NameEntry("X")
)

func TestPolicyListOperations(t *testing.T) {
	t.Run("append to empty list", func(t *testing.T) {
		l := PolicyList{}.Append([]runnertypes.Entry{entryA})
		assert.Equal(t, []runnertypes.Entry{entryA}, l.Entries())
	})

	t.Run("duplicate append collapses", func(t *testing.T) {
		l := NewPolicyList(entryA).Append([]runnertypes.Entry{entryA, entryA})
		assert.Equal(t, 1, l.Len())
	})

	t.Run("bare name and pattern are distinct", func(t *testing.T) {
		pattern := runnertypes.PatternEntry("A", "1")
		l := NewPolicyList(pattern).Append([]runnertypes.Entry{entryA})
		assert.Equal(t, []runnertypes.Entry{entryA, pattern}, l.Entries())
	})

	t.Run("assign replaces", func(t *testing.T) {
		l := NewPolicyList(entryA, entryB).Assign([]runnertypes.Entry{entryX})
		assert.Equal(t, []runnertypes.Entry{entryX}, l.Entries())
	})

	t.Run("subtract of non-member is a no-op", func(t *testing.T) {
		l := NewPolicyList(entryA).Subtract([]runnertypes.Entry{entryX})
		assert.Equal(t, []runnertypes.Entry{entryA}, l.Entries())
	})

	t.Run("negate empties", func(t *testing.T) {
		l := NewPolicyList(entryA, entryB).Negate()
		assert.Equal(t, 0, l.Len())
		assert.Empty(t, l.Entries())
	})

	t.Run("operations do not mutate the receiver", func(t *testing.T) {
		base := NewPolicyList(entryA)
		_ = base.Append([]runnertypes.Entry{entryB})
		_ = base.Subtract([]runnertypes.Entry{entryA})
		_ = base.Negate()
		assert.True(t, base.Contains(entryA))
		assert.Equal(t, 1, base.Len())
	})
}

func TestFold(t *testing.T) {
	keep := runnertypes.ListKeep
	check := runnertypes.ListCheck

	tests := []struct {
		name       string
		directives []runnertypes.Directive
		initial    PolicyList
		expected   []runnertypes.Entry
	}{
		{
			name:       "append on empty list",
			directives: []runnertypes.Directive{runnertypes.Append(keep, entryA)},
			expected:   []runnertypes.Entry{entryA},
		},
		{
			name: "assign overrides earlier assign",
			directives: []runnertypes.Directive{
				runnertypes.Assign(keep, entryA, entryB),
				runnertypes.Assign(keep, entryA),
			},
			expected: []runnertypes.Entry{entryA},
		},
		{
			name: "assign then append",
			directives: []runnertypes.Directive{
				runnertypes.Assign(keep, entryA),
				runnertypes.Append(keep, entryB),
			},
			expected: []runnertypes.Entry{entryA, entryB},
		},
		{
			name: "subtract removes",
			directives: []runnertypes.Directive{
				runnertypes.Assign(keep, entryA, entryB),
				runnertypes.Subtract(keep, entryB),
			},
			expected: []runnertypes.Entry{entryA},
		},
		{
			name:       "subtract of absent entry",
			directives: []runnertypes.Directive{runnertypes.Subtract(keep, entryX)},
			initial:    NewPolicyList(entryA),
			expected:   []runnertypes.Entry{entryA},
		},
		{
			name: "negate then append rebuilds",
			directives: []runnertypes.Directive{
				runnertypes.Assign(keep, entryA),
				runnertypes.Negate(keep),
				runnertypes.Append(keep, entryX),
			},
			expected: []runnertypes.Entry{entryX},
		},
		{
			name: "negate then assign",
			directives: []runnertypes.Directive{
				runnertypes.Assign(keep, entryA),
				runnertypes.Negate(keep),
				runnertypes.Assign(keep, entryX),
			},
			expected: []runnertypes.Entry{entryX},
		},
		{
			name: "directives for the other list are ignored",
			directives: []runnertypes.Directive{
				runnertypes.Assign(keep, entryA),
				runnertypes.Negate(check),
				runnertypes.Append(check, entryB),
			},
			expected: []runnertypes.Entry{entryA},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fold(tt.directives, keep, tt.initial)
			assert.Equal(t, tt.expected, got.Entries())
		})
	}
}

func TestFoldPolicySeedsDefaults(t *testing.T) {
	policy := FoldPolicy(nil)

	assert.True(t, policy.Keep.Contains(runnertypes.NameEntry(VarPath)))
	assert.True(t, policy.Keep.Contains(runnertypes.NameEntry("DISPLAY")))
	assert.True(t, policy.Check.Contains(runnertypes.NameEntry("LC_*")))
	assert.False(t, policy.Keep.Contains(runnertypes.NameEntry(VarTerm)), "TERM is not a list member")

	policy = FoldPolicy([]runnertypes.Directive{runnertypes.Append(runnertypes.ListKeep, entryA)})
	assert.True(t, policy.Keep.Contains(entryA))
	assert.Equal(t, len(defaultKeepNames)+1, policy.Keep.Len())
	assert.Equal(t, len(defaultCheckNames), policy.Check.Len())
}

func TestDefaultEntriesReturnsCopy(t *testing.T) {
	entries := DefaultEntries(runnertypes.ListKeep)
	entries[0] = entryX
	assert.NotEqual(t, entryX, DefaultEntries(runnertypes.ListKeep)[0])
}
