package main

import (
	"os"

	"github.com/denisbrodbeck/machineid"

	"github.com/syncpair/syncpair/internal/version"
)

// resolveHostID returns a stable identity for this machine. Checkpoint keys
// mix it in so the same pairing synced from two hosts keeps independent
// state. The engine never reads this itself; it is resolved once here and
// passed in.
func resolveHostID() string {
	if id, err := machineid.ProtectedID(version.AppName); err == nil {
		return id
	}
	// no machine id (containers, stripped-down systems): hostname is close enough
	if name, err := os.Hostname(); err == nil && name != "" {
		return name
	}
	return "local"
}
