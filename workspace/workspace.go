// Package workspace resolves caller-scoped storage for batch parameter files
// and execution reports. Every caller id maps to an isolated "shared"
// directory; file names are validated so a resolved path can never escape
// that directory.
package workspace

import "errors"

// ErrNotFound is returned when a named file does not exist in the caller's
// shared directory.
var ErrNotFound = errors.New("workspace: file not found")

// ErrPathEscape is returned when a file name resolves outside the caller's
// shared directory (e.g. via "../").
var ErrPathEscape = errors.New("workspace: path escapes shared directory")

// Store abstracts caller-scoped file storage. The filebatch adapter reads
// parameter files from and writes reports to a Store; tests use the
// in-memory implementation, production uses DirStore.
type Store interface {
	// Read returns the contents of name within the caller's shared scope.
	Read(callerID, name string) ([]byte, error)

	// Write stores data under name within the caller's shared scope,
	// creating the scope on first use and overwriting existing content.
	Write(callerID, name string, data []byte) error

	// List returns the file names stored for the caller.
	List(callerID string) ([]string, error)
}
