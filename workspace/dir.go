package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirStore is the filesystem-backed Store. Layout:
//
//	<root>/<callerID>/shared/<name>
//
// The shared subdirectory mirrors how report and parameter files are
// exchanged between sibling plans: everything a caller's batches produce or
// consume lives under one directory, and resolution rejects any name that
// would land outside it.
type DirStore struct {
	root string
}

// NewDirStore creates a DirStore rooted at root. The root itself is created
// lazily on first write.
func NewDirStore(root string) *DirStore {
	return &DirStore{root: root}
}

// SharedDir returns (and creates) the caller's shared directory.
func (s *DirStore) SharedDir(callerID string) (string, error) {
	if strings.TrimSpace(callerID) == "" {
		return "", fmt.Errorf("workspace: caller id is required")
	}
	dir := filepath.Join(s.root, callerID, "shared")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("workspace: create shared dir: %w", err)
	}
	return dir, nil
}

// resolve maps (callerID, name) to an absolute path inside the caller's
// shared directory, rejecting escapes.
func (s *DirStore) resolve(callerID, name string) (string, error) {
	shared, err := s.SharedDir(callerID)
	if err != nil {
		return "", err
	}
	path := filepath.Clean(filepath.Join(shared, name))
	if path != shared && !strings.HasPrefix(path, shared+string(filepath.Separator)) {
		return "", ErrPathEscape
	}
	return path, nil
}

// Read returns the contents of name or ErrNotFound / ErrPathEscape.
func (s *DirStore) Read(callerID, name string) ([]byte, error) {
	path, err := s.resolve(callerID, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return data, err
}

// Write stores data under name, creating intermediate directories for nested
// names inside the shared scope.
func (s *DirStore) Write(callerID, name string, data []byte) error {
	path, err := s.resolve(callerID, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// List returns the file names (relative to the shared directory) stored for
// the caller.
func (s *DirStore) List(callerID string) ([]string, error) {
	shared, err := s.SharedDir(callerID)
	if err != nil {
		return nil, err
	}
	var names []string
	err = filepath.Walk(shared, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(shared, path)
		if err != nil {
			return err
		}
		names = append(names, rel)
		return nil
	})
	return names, err
}
