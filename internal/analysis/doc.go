// Package analysis runs an external analysis engine over a diff and relays
// its output as it is produced.
//
// A [Bridge] call moves through a fixed sequence: the diff is staged to a
// uniquely named file, the engine is spawned with that file's path, its
// standard output is read in chunks that are delivered in order on
// [Stream.Chunks], and once both output streams are drained the bridge waits
// for the process to exit. The staged file is removed on every exit path.
//
// Chunks are raw bytes from the engine: a multi-byte character may be split
// across two chunks. UTF-8 validity is enforced only on the accumulated
// [Result]; invalid output fails with [ErrEncodingFailed].
//
// A non-zero exit is reported as an [*EngineError] (matching
// [ErrEngineFailed]) even when chunks were already delivered. Cancelling the
// context, or exceeding [Bridge.Timeout], kills the engine and its process
// group. Engines that detach their own children from that group need
// external supervision.
package analysis
