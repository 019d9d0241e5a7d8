// Package contents reads the text of indexed repository files under a
// fixed root. Unreadable, binary, or missing files are silently omitted;
// degraded evidence availability is not an error at this layer.
package contents

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"snapshotter/internal/repoindex"
)

// DefaultMaxFileBytes bounds raw reads when the job does not set a limit.
const DefaultMaxFileBytes = 512_000

const cacheSize = 4096

var binaryExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".pdf": true,
	".zip": true, ".gz": true, ".bz2": true, ".xz": true, ".7z": true,
	".mp4": true, ".mov": true, ".mp3": true, ".wav": true,
	".ttf": true, ".otf": true, ".woff": true, ".woff2": true,
}

// Reader reads file text relative to a repository root.
type Reader struct {
	fs    *rootFS
	cache *lru.Cache[string, string]
}

// NewReader binds a reader to the repository root directory.
func NewReader(root string) (*Reader, error) {
	fs, err := newRootFS(root)
	if err != nil {
		return nil, fmt.Errorf("contents: %w", err)
	}
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("contents: %w", err)
	}
	return &Reader{fs: fs, cache: cache}, nil
}

// BuildMap returns path -> decoded text for every indexed file that exists,
// is a regular non-binary file, and decodes as UTF-8 with replacement.
// Content beyond maxFileBytes is truncated at the byte level before decode.
func (r *Reader) BuildMap(idx *repoindex.Index, maxFileBytes int) map[string]string {
	if maxFileBytes <= 0 {
		maxFileBytes = DefaultMaxFileBytes
	}
	out := make(map[string]string, len(idx.Files))
	for _, f := range idx.Files {
		if f.Path == "" {
			continue
		}
		txt, ok := r.FileText(f.Path, maxFileBytes)
		if ok && txt != "" {
			out[f.Path] = txt
		}
	}
	return out
}

// FileText reads a single repo-relative file, honoring the byte cap and
// the binary-extension skip list.
func (r *Reader) FileText(rel string, maxBytes int) (string, bool) {
	if binaryExts[strings.ToLower(filepath.Ext(rel))] {
		return "", false
	}
	key := fmt.Sprintf("%s|%d", rel, maxBytes)
	if txt, ok := r.cache.Get(key); ok {
		return txt, true
	}

	f, err := r.fs.open(rel)
	if err != nil {
		return "", false
	}
	defer f.Close()
	raw, err := io.ReadAll(io.LimitReader(f, int64(maxBytes)))
	if err != nil {
		return "", false
	}
	txt := strings.ToValidUTF8(string(raw), "�")
	r.cache.Add(key, txt)
	return txt, true
}
