package util

import "strings"

// NormalizeEscapes collapses redundant escape sequences that accumulate when
// JSON output is embedded as a string inside another JSON document. Nested
// batch results pass through serialization once per level, so the aggregate
// summary strips one layer of escaping to keep outputs human readable.
func NormalizeEscapes(s string) string {
	s = strings.ReplaceAll(s, `\"`, `"`)
	s = strings.ReplaceAll(s, `\\`, `\`)
	return s
}
