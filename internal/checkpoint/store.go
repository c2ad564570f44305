package checkpoint

import (
	"errors"
	"time"
)

// ErrNotSupported is returned by stores that cannot operate on the given
// endpoints, e.g. the xattr strategy on a filesystem without extended
// attribute support. Callers should fall back to the sidecar strategy.
var ErrNotSupported = errors.New("checkpoint strategy not supported on this filesystem")

// Store persists checkpoints for endpoint pairings. Every call receives both
// endpoint roots so strategies that attach state to the trees themselves know
// where to read and write; sink-backed strategies may ignore them.
//
// A Store is safe for use by concurrent runs over distinct pairings. It makes
// no guarantees for two simultaneous runs over the same pairing.
type Store interface {
	// Load returns the last sync time recorded for key. ok is false when no
	// valid checkpoint exists, which callers must treat as "never synced".
	Load(pathRoot, destRoot, key string) (t time.Time, ok bool, err error)

	// Save records t as the last sync time for key, replacing any prior value.
	Save(pathRoot, destRoot, key string, t time.Time) error

	// Clear removes the checkpoint for key, forcing the next run to compare
	// the full trees. Clearing an absent checkpoint is not an error.
	Clear(pathRoot, destRoot, key string) error

	Close() error
}
