// Package logging provides a tiny abstraction over slog so downstream code
// can depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. It also offers a richer FanmeshLogger with contextual
// helpers (component, call lineage) and domain specific helpers for tool
// invocations and batch execution.
package logging
