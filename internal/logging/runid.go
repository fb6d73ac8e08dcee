package logging

import "github.com/oklog/ulid/v2"

// GenerateRunID returns a new ULID identifying one invocation. ULIDs sort
// by creation time, so log files named after them list chronologically.
func GenerateRunID() string {
	return ulid.Make().String()
}
