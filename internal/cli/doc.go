// Package cli wires together the Cobra command tree for the halidom binary.
//
// It defines the root command and its subcommands (analyze, watch, hook,
// config, cache, version), binds flags, reads configuration, runs commits
// through the git gateway and the analysis bridge, and maps failures to
// stable exit codes.
package cli
