// Package checkpoint persists the moment a pairing of two directory trees
// last completed a run. The stored timestamp is what lets later runs separate
// genuinely new files from files that are merely absent on the other side.
package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Checkpoint is the persisted record for one pairing.
type Checkpoint struct {
	Key      string    // instance key of the pairing
	LastSync time.Time // UTC time captured at the start of the recorded run
}

// InstanceKey derives the stable identity of a pairing from a host identity
// and its two endpoint paths. The key is direction-sensitive: pairing A=>B
// and pairing B=>A track independent checkpoints even on the same host.
func InstanceKey(host, path, destination string) string {
	sum := sha256.Sum256([]byte(host + "|" + path + "|=>|" + destination))
	return hex.EncodeToString(sum[:])
}

// Ticks converts a timestamp to the persisted representation, a 64-bit
// nanosecond count since the Unix epoch in UTC.
func Ticks(t time.Time) int64 {
	return t.UTC().UnixNano()
}

// FromTicks converts a persisted tick count back to a UTC timestamp.
func FromTicks(ticks int64) time.Time {
	return time.Unix(0, ticks).UTC()
}
