package core

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Dispatcher generates the opaque identifiers used by the engine: one per
// registration record and one per call lineage. Injecting the dispatcher
// keeps id generation out of global state so tests can supply deterministic
// sequences.
type Dispatcher interface {
	// NewRegistrationID returns a fresh id for a registration record.
	NewRegistrationID() string
	// NewLineageID returns a fresh call-lineage correlation id.
	NewLineageID() string
}

// UUIDDispatcher issues prefixed UUIDv4 identifiers. It is stateless and safe
// for concurrent use.
type UUIDDispatcher struct{}

// NewUUIDDispatcher returns the default production dispatcher.
func NewUUIDDispatcher() *UUIDDispatcher { return &UUIDDispatcher{} }

// NewRegistrationID returns an id of the form "reg-<uuid>".
func (d *UUIDDispatcher) NewRegistrationID() string { return "reg-" + uuid.NewString() }

// NewLineageID returns an id of the form "call-<uuid>".
func (d *UUIDDispatcher) NewLineageID() string { return "call-" + uuid.NewString() }

// SequenceDispatcher issues monotonically numbered ids. Intended for tests
// that assert on exact identifiers.
type SequenceDispatcher struct {
	regSeq  atomic.Int64
	lineSeq atomic.Int64
}

// NewSequenceDispatcher returns a dispatcher counting from 1.
func NewSequenceDispatcher() *SequenceDispatcher { return &SequenceDispatcher{} }

// NewRegistrationID returns ids "reg-1", "reg-2", ...
func (d *SequenceDispatcher) NewRegistrationID() string {
	return fmt.Sprintf("reg-%d", d.regSeq.Add(1))
}

// NewLineageID returns ids "call-1", "call-2", ...
func (d *SequenceDispatcher) NewLineageID() string {
	return fmt.Sprintf("call-%d", d.lineSeq.Add(1))
}
