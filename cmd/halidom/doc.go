// Halidom streams an analysis of a single git commit.
//
// It extracts the commit's diff, stages it in a private temporary file and
// runs an external analysis engine on it, relaying the engine's output as it
// arrives.
//
// Usage:
//
//	halidom analyze --commit HEAD              # analyze the latest commit
//	halidom analyze -c v1.2.0 --format json    # buffered JSON report
//	halidom watch                              # analyze every new commit
//	halidom hook install                       # analyze from a post-commit hook
//	halidom config init --project              # write .halidom.toml
//
// The engine defaults to "python3 diff_analyzer.py {diff}"; {diff} is replaced
// by the staged file path, which is also exported as HALIDOM_DIFF_FILE.
package main
