// Package diff parses unified diff text into per-file hunks.
//
// The parser is deliberately permissive: malformed header lines are skipped
// rather than failing the whole diff, since provider APIs occasionally emit
// nonstandard metadata lines.
package diff
