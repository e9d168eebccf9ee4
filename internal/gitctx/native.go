package gitctx

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// gitDateFormat matches the default date layout of `git show`.
const gitDateFormat = "Mon Jan 2 15:04:05 2006 -0700"

// Native implements Backend with go-git, without a git executable.
//
// Merge commits are diffed against their first parent, where `git show`
// would print a combined diff.
type Native struct{}

func (Native) Name() string { return BackendNative }

func (Native) open(ctx context.Context, path string) (*gitlib.Repository, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo, err := gitlib.PlainOpenWithOptions(path, &gitlib.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotARepository, err)
	}
	return repo, nil
}

func (n Native) ValidateRepository(ctx context.Context, path string) error {
	_, err := n.open(ctx, path)
	return err
}

func (n Native) commit(ctx context.Context, path, ref string) (*object.Commit, error) {
	if err := checkRef(ref); err != nil {
		return nil, err
	}
	repo, err := n.open(ctx, path)
	if err != nil {
		return nil, err
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnknownCommit, ref, err)
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnknownCommit, ref, err)
	}
	return commit, nil
}

func (n Native) ValidateCommit(ctx context.Context, path, ref string) error {
	_, err := n.commit(ctx, path, ref)
	return err
}

func (n Native) ResolveCommit(ctx context.Context, path, ref string) (string, error) {
	commit, err := n.commit(ctx, path, ref)
	if err != nil {
		return "", err
	}
	return commit.Hash.String(), nil
}

func (n Native) GetCommitDiff(ctx context.Context, path, ref string) (string, error) {
	commit, err := n.commit(ctx, path, ref)
	if err != nil {
		return "", err
	}
	currentTree, err := commit.Tree()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDiffRetrievalFailed, err)
	}
	var parentTree *object.Tree
	if commit.NumParents() > 0 {
		parent, err := commit.Parent(0)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrDiffRetrievalFailed, err)
		}
		parentTree, err = parent.Tree()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrDiffRetrievalFailed, err)
		}
	}
	changes, err := object.DiffTree(parentTree, currentTree)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDiffRetrievalFailed, err)
	}
	header := formatCommitHeader(commit)
	if len(changes) == 0 {
		return header, nil
	}
	patch, err := changes.PatchContext(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDiffRetrievalFailed, err)
	}
	out := header + "\n" + patch.String()
	if !utf8.ValidString(out) {
		return "", ErrEncodingFailed
	}
	return out, nil
}

func (n Native) GitDir(ctx context.Context, path string) (string, error) {
	repo, err := n.open(ctx, path)
	if err != nil {
		return "", err
	}
	fs, ok := repo.Storer.(*filesystem.Storage)
	if !ok {
		return "", fmt.Errorf("%w: repository has no on-disk git directory", ErrNotARepository)
	}
	return filepath.Clean(fs.Filesystem().Root()), nil
}

func formatCommitHeader(c *object.Commit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "commit %s\n", c.Hash)
	fmt.Fprintf(&b, "Author: %s <%s>\n", c.Author.Name, c.Author.Email)
	fmt.Fprintf(&b, "Date:   %s\n\n", c.Author.When.Format(gitDateFormat))
	for _, line := range strings.Split(strings.TrimRight(c.Message, "\n"), "\n") {
		if line == "" {
			b.WriteString("\n")
			continue
		}
		fmt.Fprintf(&b, "    %s\n", line)
	}
	return b.String()
}
