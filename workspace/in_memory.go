package workspace

import (
	"strings"
	"sync"
)

// InMemoryStore is a trivial in-process Store implementation useful for tests
// and single-process prototypes. It keeps all files in a nested map guarded
// by an RWMutex. Data is copied on write / read to avoid accidental external
// mutation of internal buffers.
//
// Layout: callerID -> name -> raw bytes
//
// The same escape check as DirStore applies so tests exercise identical
// containment behavior.
type InMemoryStore struct {
	mu    sync.RWMutex
	files map[string]map[string][]byte
}

// NewInMemoryStore returns an empty in-memory workspace store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{files: make(map[string]map[string][]byte)}
}

func validName(name string) bool {
	if name == "" || strings.HasPrefix(name, "/") {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}

// Read returns a copy of the stored bytes or ErrNotFound.
func (s *InMemoryStore) Read(callerID, name string) ([]byte, error) {
	if !validName(name) {
		return nil, ErrPathEscape
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.files[callerID]
	if !ok {
		return nil, ErrNotFound
	}
	data, ok := m[name]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// Write stores (or overwrites) the bytes for the given caller and name.
// The input slice is copied before storage.
func (s *InMemoryStore) Write(callerID, name string, data []byte) error {
	if !validName(name) {
		return ErrPathEscape
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.files[callerID]; !exists {
		s.files[callerID] = make(map[string][]byte)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.files[callerID][name] = cp
	return nil
}

// List returns the file names stored for the caller. The slice is a snapshot
// and safe for caller mutation.
func (s *InMemoryStore) List(callerID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.files[callerID]
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	return names, nil
}
