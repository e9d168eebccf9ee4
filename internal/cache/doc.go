// Package cache provides a file-based cache for completed engine analyses.
//
// Cache entries are keyed by a SHA-256 hash of the engine invocation (command
// and arguments) and the diff content actually handed to the engine. Each
// entry stores the accumulated analysis text with a creation timestamp and a
// TTL (in seconds). Expired entries are skipped on read and removed during
// cache-clear operations. Only successful analyses are ever stored.
//
// The default cache directory is $XDG_CACHE_HOME/halidom (or the
// OS-appropriate equivalent).
package cache
