// Package gitctx validates git repositories and commits and extracts commit
// diffs for analysis.
//
// Every git invocation runs with an explicit working directory; the process
// working directory is never changed. Each step (repository check, commit
// check, diff retrieval) has its own failure kind so callers can report
// exactly which precondition failed: [ErrNotARepository], [ErrUnknownCommit],
// [ErrDiffRetrievalFailed] and [ErrEncodingFailed].
//
// Two backends implement [Backend]: [CLI] shells out to the git executable and
// [Native] reads the repository with go-git. [Open] returns a validated
// [Repo] whose [Repo.Commit] gathers a filtered, size-limited [DiffResult].
package gitctx
