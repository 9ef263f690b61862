// Package core provides the foundational domain types shared by the Fanmesh
// execution engine. It defines:
//
//   - CallContext (depth + call-lineage propagation through nested dispatch)
//   - ToolResult (settled tool output with an explicit result kind)
//   - Handle (settle-once completion primitive used to compose async dispatch)
//   - Dispatcher (pluggable id generation for registrations and call lineage)
//
// The package intentionally keeps implementation concerns (worker pools,
// registries, storage) out of scope, exposing small types that the engine,
// pool and filebatch packages build on.
package core
