package sync

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/syncpair/syncpair/internal/utils"
)

const (
	labelPath        = "path"
	labelDestination = "destination"
)

// Endpoint is one of the two directory trees of a pairing, resolved to an
// absolute root that is known to exist.
type Endpoint struct {
	Label string // "path" or "destination"
	Root  string
}

// resolveEndpoint normalizes raw into an absolute directory root, creating it
// when create is set. Anything that leaves the root unusable is an
// *EndpointError, the only fatal error class of a run.
func resolveEndpoint(label, raw string, create bool) (*Endpoint, error) {
	abs, err := utils.ResolvePath(raw)
	if err != nil {
		return nil, &EndpointError{Label: label, Root: raw, Err: err}
	}

	info, err := os.Stat(abs)
	switch {
	case err == nil:
		if !info.IsDir() {
			return nil, &EndpointError{Label: label, Root: abs, Err: errors.New("not a directory")}
		}
	case os.IsNotExist(err):
		if !create {
			return nil, &EndpointError{Label: label, Root: abs, Err: errors.New("does not exist and creation is disabled")}
		}
		if mkErr := os.MkdirAll(abs, 0o755); mkErr != nil {
			return nil, &EndpointError{Label: label, Root: abs, Err: fmt.Errorf("create: %w", mkErr)}
		}
		slog.Info("created endpoint root", "endpoint", label, "path", abs)
	default:
		return nil, &EndpointError{Label: label, Root: abs, Err: err}
	}

	return &Endpoint{Label: label, Root: abs}, nil
}
