package sync

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/syncpair/syncpair/internal/utils"
)

const hashCacheSize = 4096

// ContentHasher computes file digests on demand, memoizing by absolute path,
// size and mtime. A long-lived hasher lets repeated runs over an unchanged
// tree hash each file at most once.
type ContentHasher struct {
	cache *lru.Cache[string, string]
}

func NewContentHasher() *ContentHasher {
	// lru.New only fails for a non-positive size
	cache, _ := lru.New[string, string](hashCacheSize)
	return &ContentHasher{cache: cache}
}

// Hash returns the MD5 digest for the file the record describes. The cached
// value is reused while size and mtime are unchanged.
func (h *ContentHasher) Hash(absPath string, rec *FileRecord) (string, error) {
	key := fmt.Sprintf("%s|%d|%d", absPath, rec.Size, rec.LastModified.UnixNano())
	if digest, ok := h.cache.Get(key); ok {
		return digest, nil
	}

	digest, err := utils.FileHash(absPath)
	if err != nil {
		return "", err
	}
	h.cache.Add(key, digest)
	return digest, nil
}
