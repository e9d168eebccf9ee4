package gitctx

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// DiffOptions controls how a commit diff is filtered before analysis.
type DiffOptions struct {
	MaxDiffBytes int
	Exclude      []string
}

// DiffResult holds the collected diff and metadata.
type DiffResult struct {
	Diff      string
	Files     []string
	Ref       string
	Commit    string
	Truncated bool
	Repo      RepoMeta
}

// RepoMeta contains git repository metadata.
type RepoMeta struct {
	Root    string
	Backend string
}

// Repo is a canonical repository path that passed validation.
type Repo struct {
	root    string
	backend Backend
}

// Open resolves path to an absolute, symlink-free directory and validates it
// with backend. A nil backend selects the git CLI.
func Open(ctx context.Context, path string, backend Backend) (Repo, error) {
	if backend == nil {
		backend = NewCLI("")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Repo{}, fmt.Errorf("resolve repository path: %w", err)
	}
	root, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return Repo{}, fmt.Errorf("validate repository: %w: %v", ErrNotARepository, err)
	}
	if err := backend.ValidateRepository(ctx, root); err != nil {
		return Repo{}, fmt.Errorf("validate repository: %w", err)
	}
	return Repo{root: root, backend: backend}, nil
}

// Root returns the canonical repository path.
func (r Repo) Root() string { return r.root }

// Backend returns the backend used to read the repository.
func (r Repo) Backend() Backend { return r.backend }

// Meta returns repository metadata for reports.
func (r Repo) Meta() RepoMeta {
	return RepoMeta{Root: r.root, Backend: r.backend.Name()}
}

// GitDir returns the repository's git directory.
func (r Repo) GitDir(ctx context.Context) (string, error) {
	return r.backend.GitDir(ctx, r.root)
}

// Resolve validates ref and returns the commit hash it names.
func (r Repo) Resolve(ctx context.Context, ref string) (string, error) {
	if err := r.backend.ValidateCommit(ctx, r.root, ref); err != nil {
		return "", fmt.Errorf("validate commit: %w", err)
	}
	sha, err := r.backend.ResolveCommit(ctx, r.root, ref)
	if err != nil {
		return "", fmt.Errorf("validate commit: %w", err)
	}
	return sha, nil
}

// Commit validates ref, then returns its diff filtered by opts.
func (r Repo) Commit(ctx context.Context, ref string, opts DiffOptions) (DiffResult, error) {
	sha, err := r.Resolve(ctx, ref)
	if err != nil {
		return DiffResult{}, err
	}
	diff, err := r.backend.GetCommitDiff(ctx, r.root, sha)
	if err != nil {
		return DiffResult{}, fmt.Errorf("extract diff: %w", err)
	}
	res := buildResult(diff, opts)
	res.Ref = ref
	res.Commit = sha
	res.Repo = r.Meta()
	return res, nil
}

func buildResult(diff string, opts DiffOptions) DiffResult {
	files := extractFiles(diff)

	// Filter excludes before truncating so excluded files don't consume the byte budget
	if len(opts.Exclude) > 0 {
		diff = filterExcluded(diff, opts.Exclude)
		files = filterFileList(files, opts.Exclude)
	}

	truncated := false
	if opts.MaxDiffBytes > 0 && len(diff) > opts.MaxDiffBytes {
		cut := opts.MaxDiffBytes
		for cut > 0 && !utf8.RuneStart(diff[cut]) {
			cut--
		}
		diff = diff[:cut] + "\n... (diff truncated at max-diff-bytes limit)\n"
		truncated = true
	}

	return DiffResult{
		Diff:      diff,
		Files:     files,
		Truncated: truncated,
	}
}

func extractFiles(diff string) []string {
	var files []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(diff, "\n") {
		if strings.HasPrefix(line, "+++ b/") {
			f := strings.TrimPrefix(line, "+++ b/")
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}
	return files
}

// filterExcluded drops whole file sections whose path matches excludes. The
// commit header before the first section is always kept.
func filterExcluded(diff string, excludes []string) string {
	sections := SplitSections(diff)
	var kept []string
	for _, section := range sections {
		path := SectionPath(section)
		if path == "" || !MatchesAny(path, excludes) {
			kept = append(kept, section)
		}
	}
	return strings.Join(kept, "")
}

// SplitSections splits a diff before every "diff --git" line. Anything ahead
// of the first section, such as the commit header, is its own section. The
// sections concatenate back to diff.
func SplitSections(diff string) []string {
	var sections []string
	lines := strings.SplitAfter(diff, "\n")
	var current strings.Builder
	for _, line := range lines {
		if strings.HasPrefix(line, "diff --git") && current.Len() > 0 {
			sections = append(sections, current.String())
			current.Reset()
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		sections = append(sections, current.String())
	}
	return sections
}

// SectionPath returns the file a diff section touches, preferring the new
// path. It returns "" for sections that are not file diffs.
func SectionPath(section string) string {
	if !strings.HasPrefix(section, "diff --git") {
		return ""
	}
	var oldPath string
	for _, line := range strings.Split(section, "\n") {
		if strings.HasPrefix(line, "+++ b/") {
			return strings.TrimPrefix(line, "+++ b/")
		}
		if strings.HasPrefix(line, "--- a/") {
			oldPath = strings.TrimPrefix(line, "--- a/")
		}
	}
	// deletions only carry the old path
	return oldPath
}

func filterFileList(files []string, excludes []string) []string {
	var result []string
	for _, f := range files {
		if !MatchesAny(f, excludes) {
			result = append(result, f)
		}
	}
	return result
}

// MatchesAny returns true if the path matches any of the given glob patterns.
func MatchesAny(path string, patterns []string) bool {
	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, path)
		if err == nil && matched {
			return true
		}
		clean := strings.TrimPrefix(pattern, "**/")
		if clean != pattern {
			matched, err = filepath.Match(clean, filepath.Base(path))
			if err == nil && matched {
				return true
			}
			matched, err = filepath.Match(clean, path)
			if err == nil && matched {
				return true
			}
		}
		if dir, ok := strings.CutSuffix(pattern, "/**"); ok {
			if strings.HasPrefix(path, strings.TrimPrefix(dir, "**/")+"/") ||
				strings.Contains(path, "/"+strings.TrimPrefix(dir, "**/")+"/") {
				return true
			}
		}
	}
	return false
}
