package core

// CallContext carries call-lineage information through a dispatch chain. It is
// passed by value; deriving a child context never mutates the parent.
//
// Depth counts the levels of nested parallel dispatch that led to the current
// call. Depth 0 is the outermost batch. The engine uses Depth to select the
// worker pool a blocking tool body runs on, so that work at depth d never
// competes for the same bounded capacity as the work it spawns at depth d+1.
//
// LineageID is an opaque correlation tag forwarded to invoked tools. It is
// propagated from the parent dispatch when present and freshly generated
// otherwise. It is never used for deduplication or ownership.
type CallContext struct {
	LineageID string
	Depth     int
}

// NewCallContext returns an outermost (depth 0) context with the given
// lineage id.
func NewCallContext(lineageID string) CallContext {
	return CallContext{LineageID: lineageID}
}

// Child derives the context handed to tools invoked from this level. The
// lineage id is inherited and the depth incremented.
func (c CallContext) Child() CallContext {
	return CallContext{LineageID: c.LineageID, Depth: c.Depth + 1}
}

// WithLineage returns a copy of the context with the lineage id replaced.
// Used by the engine when the caller supplied no id of its own.
func (c CallContext) WithLineage(id string) CallContext {
	c.LineageID = id
	return c
}
