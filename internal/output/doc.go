// Package output formats commit analysis reports for display or machine
// consumption.
//
// Three formats are supported:
//   - text: terminal output, optionally colored (default)
//   - json: full structured JSON report
//   - markdown: commit-comment-friendly with the analysis in a code fence
//
// Use [GetWriter] to obtain a [Writer] for a given format string, then call
// [Writer.Write] with an [io.Writer] and a [*Report]. [WriteReport] also
// handles destination selection.
package output
