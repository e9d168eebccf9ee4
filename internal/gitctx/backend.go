package gitctx

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Failure kinds reported by a Backend. Callers match them with errors.Is.
var (
	ErrNotARepository      = errors.New("not a git repository")
	ErrUnknownCommit       = errors.New("invalid or non-existent commit")
	ErrDiffRetrievalFailed = errors.New("failed to get commit diff")
	ErrEncodingFailed      = errors.New("diff output is not valid UTF-8")
)

// Backend abstracts access to repository data.
//
// The default implementation shells out to the git executable; Native reads
// the object database directly. Every method takes the repository path
// explicitly and must not mutate the repository.
type Backend interface {
	Name() string
	ValidateRepository(ctx context.Context, path string) error
	ValidateCommit(ctx context.Context, path, ref string) error
	ResolveCommit(ctx context.Context, path, ref string) (string, error)
	GetCommitDiff(ctx context.Context, path, ref string) (string, error)
	GitDir(ctx context.Context, path string) (string, error)
}

// Backend names accepted by NewBackend.
const (
	BackendCLI    = "gitcli"
	BackendNative = "native"
)

// NewBackend creates a backend by name. An empty name selects the git CLI.
func NewBackend(name string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", BackendCLI, "git":
		return NewCLI(""), nil
	case BackendNative, "go-git":
		return Native{}, nil
	default:
		return nil, fmt.Errorf("unknown git backend: %s", name)
	}
}

// checkRef rejects references git could parse as an option.
func checkRef(ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return fmt.Errorf("%w: empty reference", ErrUnknownCommit)
	}
	if strings.HasPrefix(ref, "-") {
		return fmt.Errorf("%w: %q", ErrUnknownCommit, ref)
	}
	return nil
}
