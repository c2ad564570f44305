package checkpoint

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/pkg/xattr"
)

// attrPrefix namespaces the extended attributes written on endpoint roots.
// The "user." prefix is mandatory on Linux and harmless elsewhere.
const attrPrefix = "user.syncpair.checkpoint."

// XattrStore keeps the checkpoint as an extended attribute on each endpoint
// root directory instead of in a shared database. Writing the value twice
// lets Load cross-check both sides: if either attribute is missing or the two
// disagree, the checkpoint is treated as absent. That guards against a stale
// checkpoint surviving after one side was replaced wholesale, e.g. restored
// from a backup.
type XattrStore struct{}

// NewXattrStore creates an extended-attribute checkpoint store. Callers
// should verify support with XattrSupported first and fall back to the
// sidecar store when it is unavailable.
func NewXattrStore() *XattrStore {
	return &XattrStore{}
}

// XattrSupported reports whether dir's filesystem accepts extended
// attributes, by writing and removing a probe attribute.
func XattrSupported(dir string) bool {
	if !xattr.XATTR_SUPPORTED {
		return false
	}
	probe := attrPrefix + "probe"
	if err := xattr.Set(dir, probe, []byte("1")); err != nil {
		return false
	}
	_ = xattr.Remove(dir, probe)
	return true
}

// Load implements Store. Both roots must carry the attribute with the same
// value; anything else reads as absent.
func (s *XattrStore) Load(pathRoot, destRoot, key string) (time.Time, bool, error) {
	name := attrPrefix + key

	pathTicks, ok, err := readTicks(pathRoot, name)
	if err != nil {
		return time.Time{}, false, err
	}
	if !ok {
		return time.Time{}, false, nil
	}

	destTicks, ok, err := readTicks(destRoot, name)
	if err != nil {
		return time.Time{}, false, err
	}
	if !ok {
		return time.Time{}, false, nil
	}

	if pathTicks != destTicks {
		slog.Warn("checkpoint attributes disagree, treating as never synced",
			"key", key, "path", pathRoot, "destination", destRoot)
		return time.Time{}, false, nil
	}

	return FromTicks(pathTicks), true, nil
}

// Save implements Store, writing the attribute on both roots.
func (s *XattrStore) Save(pathRoot, destRoot, key string, t time.Time) error {
	name := attrPrefix + key
	value := []byte(strconv.FormatInt(Ticks(t), 10))

	for _, root := range []string{pathRoot, destRoot} {
		if err := xattr.Set(root, name, value); err != nil {
			if !XattrSupported(root) {
				return fmt.Errorf("%w: %s", ErrNotSupported, root)
			}
			return fmt.Errorf("write checkpoint attribute on %s: %w", root, err)
		}
	}
	return nil
}

// Clear implements Store, removing the attribute from both roots.
func (s *XattrStore) Clear(pathRoot, destRoot, key string) error {
	name := attrPrefix + key

	for _, root := range []string{pathRoot, destRoot} {
		err := xattr.Remove(root, name)
		if err != nil && !errors.Is(err, xattr.ENOATTR) {
			return fmt.Errorf("remove checkpoint attribute on %s: %w", root, err)
		}
	}
	return nil
}

// Close implements Store. The xattr store holds no resources.
func (s *XattrStore) Close() error {
	return nil
}

func readTicks(root, name string) (int64, bool, error) {
	data, err := xattr.Get(root, name)
	if err != nil {
		if errors.Is(err, xattr.ENOATTR) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read checkpoint attribute on %s: %w", root, err)
	}

	ticks, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("decode checkpoint attribute on %s: %w", root, err)
	}
	return ticks, true, nil
}
