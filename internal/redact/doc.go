// Package redact removes secrets from a commit diff before it is staged for
// the analysis engine.
//
// Detection uses regex heuristics covering common secret shapes: API keys,
// JWTs, private keys, AWS access key IDs and secret access keys, bearer
// tokens, database connection strings, and provider-specific tokens
// (Anthropic, OpenAI, GitHub, Slack).
//
// Path-based redaction is also supported: diff sections for files whose paths
// match configured glob patterns keep their headers, but every hunk is
// replaced with [REDACTED] rather than being scanned line by line.
package redact
