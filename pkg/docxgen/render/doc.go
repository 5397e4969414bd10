// Package render provides run-level helpers for rewriting paragraph text.
//
// Word splits what the author typed as one placeholder into several runs whenever
// spell checking, revision marks or font changes touch part of it, so "{{name}}"
// may arrive as "{{na" and "me}}" in two <w:r> elements. The helpers here work on a
// Stream: the concatenated text of every <w:t> in a paragraph, with each segment
// remembering the element it came from. Edits made against stream offsets are
// written back into the original runs so run formatting survives.
//
// # Structure Organization
//
//   - stream.go: Stream construction, Replace and ReplaceWithRuns
//   - runs.go: merging of adjacent runs with identical formatting
package render
