// Package identity resolves the account a command runs as.
package identity

import (
	"errors"
	"fmt"
	"os/user"
	"strconv"

	"github.com/isseis/go-sudo-env/internal/runner/runnertypes"
)

// Error definitions
var (
	// ErrUnknownUser is returned when the target user does not exist
	ErrUnknownUser = errors.New("unknown user")

	// ErrInvalidID is returned when an account database entry has a non-numeric or out-of-range id
	ErrInvalidID = errors.New("invalid user or group id")
)

// Resolver looks up target users in the account database.
type Resolver struct {
	lookup   func(name string) (*user.User, error)
	lookupID func(uid string) (*user.User, error)
}

// NewResolver creates a Resolver backed by os/user.
func NewResolver() *Resolver {
	return &Resolver{
		lookup:   user.Lookup,
		lookupID: user.LookupId,
	}
}

// NewResolverWithLookup creates a Resolver with custom lookups.
func NewResolverWithLookup(lookup, lookupID func(string) (*user.User, error)) *Resolver {
	return &Resolver{lookup: lookup, lookupID: lookupID}
}

// Resolve returns the identity of name. A name of the form "#uid" is looked
// up by numeric id.
func (r *Resolver) Resolve(name string) (runnertypes.TargetIdentity, error) {
	var (
		u   *user.User
		err error
	)
	if uid, ok := numericName(name); ok {
		u, err = r.lookupID(uid)
	} else {
		u, err = r.lookup(name)
	}
	if err != nil {
		return runnertypes.TargetIdentity{}, fmt.Errorf("%w: %s: %w", ErrUnknownUser, name, err)
	}
	return FromUser(u)
}

// FromUser converts an os/user entry into a TargetIdentity.
func FromUser(u *user.User) (runnertypes.TargetIdentity, error) {
	uid, err := parseID(u.Uid)
	if err != nil {
		return runnertypes.TargetIdentity{}, fmt.Errorf("uid of %s: %w", u.Username, err)
	}
	gid, err := parseID(u.Gid)
	if err != nil {
		return runnertypes.TargetIdentity{}, fmt.Errorf("gid of %s: %w", u.Username, err)
	}
	return runnertypes.TargetIdentity{
		User: u.Username,
		UID:  uid,
		GID:  gid,
		Home: u.HomeDir,
	}, nil
}

// InvocationFacts builds the SUDO_* facts for running commandPath with args
// as target.
func InvocationFacts(target runnertypes.TargetIdentity, commandPath string, args []string) runnertypes.InvocationFacts {
	return runnertypes.InvocationFacts{
		CommandPath: commandPath,
		Args:        args,
		UID:         target.UID,
		GID:         target.GID,
		User:        target.User,
	}
}

func numericName(name string) (string, bool) {
	if len(name) < 2 || name[0] != '#' {
		return "", false
	}
	if _, err := strconv.ParseUint(name[1:], 10, 32); err != nil {
		return "", false
	}
	return name[1:], true
}

func parseID(s string) (uint32, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return uint32(id), nil
}
