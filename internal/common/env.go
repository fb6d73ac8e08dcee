// Package common provides helpers shared by the policy engine and the
// command-line front end.
package common

import (
	"slices"
	"strings"
)

// ParseEnvVariable parses an environment variable string in "KEY=VALUE" format.
// Returns the key, value, and a boolean indicating successful parsing.
//
// Edge cases:
//   - "=VALUE" (empty key): ok=false
//   - "KEY=" (empty value): key="KEY", value="", ok=true
//   - "KEY" (no equals): ok=false
//   - "KEY=a=b": key="KEY", value="a=b", ok=true
func ParseEnvVariable(env string) (key, value string, ok bool) {
	key, value, found := strings.Cut(env, "=")
	if !found || key == "" {
		return "", "", false
	}
	return key, value, true
}

// EnvironMap converts an os.Environ style slice into a map. Malformed
// entries are skipped; for duplicate keys the first entry wins, which is
// the one glibc getenv returns.
func EnvironMap(environ []string) map[string]string {
	result := make(map[string]string, len(environ))
	for _, entry := range environ {
		key, value, ok := ParseEnvVariable(entry)
		if !ok {
			continue
		}
		if _, seen := result[key]; seen {
			continue
		}
		result[key] = value
	}
	return result
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// EnvironSlice converts env into sorted "KEY=VALUE" entries.
func EnvironSlice(env map[string]string) []string {
	keys := SortedKeys(env)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k + "=" + env[k]
	}
	return out
}
