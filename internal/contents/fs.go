package contents

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// rootFS resolves repo-relative paths against a fixed root and refuses
// anything that escapes it (".." segments, symlinks out of the tree).
type rootFS struct {
	absRoot string
}

func newRootFS(root string) (*rootFS, error) {
	if root == "" {
		return nil, errors.New("empty repo root")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("repo root is not a directory")
	}
	return &rootFS{absRoot: abs}, nil
}

func (r *rootFS) open(rel string) (*os.File, error) {
	p, err := r.resolve(rel)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, errors.New("not a regular file")
	}
	return os.Open(p)
}

func (r *rootFS) resolve(rel string) (string, error) {
	if rel == "" {
		return "", errors.New("empty path")
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) {
		return "", errors.New("absolute path not allowed")
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errors.New("path traversal not allowed")
	}
	joined := filepath.Join(r.absRoot, clean)
	resolved, err := filepath.EvalSymlinks(joined)
	if err != nil {
		return "", err
	}
	if !hasPathPrefix(resolved, r.absRoot) {
		return "", errors.New("resolved outside repo root")
	}
	return resolved, nil
}

func hasPathPrefix(path, root string) bool {
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	if path == root {
		return true
	}
	sep := string(os.PathSeparator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(path, root)
}
