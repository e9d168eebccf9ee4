package gitctx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// CLI implements Backend by running the git executable.
type CLI struct {
	GitBin string
}

// NewCLI returns a CLI backend. An empty gitBin means "git" from PATH.
func NewCLI(gitBin string) CLI {
	if strings.TrimSpace(gitBin) == "" {
		gitBin = "git"
	}
	return CLI{GitBin: gitBin}
}

func (c CLI) Name() string { return BackendCLI }

// ValidateRepository runs `git rev-parse --git-dir` rooted at path.
func (c CLI) ValidateRepository(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotARepository, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrNotARepository, path)
	}
	if _, err := c.run(ctx, path, "rev-parse", "--git-dir"); err != nil {
		return classify(ctx, err, ErrNotARepository)
	}
	return nil
}

// ValidateCommit runs `git cat-file -e <ref>^{commit}` rooted at path.
func (c CLI) ValidateCommit(ctx context.Context, path, ref string) error {
	if err := checkRef(ref); err != nil {
		return err
	}
	if _, err := c.run(ctx, path, "cat-file", "-e", ref+"^{commit}"); err != nil {
		return classify(ctx, err, ErrUnknownCommit)
	}
	return nil
}

// ResolveCommit returns the full hash ref points at.
func (c CLI) ResolveCommit(ctx context.Context, path, ref string) (string, error) {
	if err := checkRef(ref); err != nil {
		return "", err
	}
	out, err := c.run(ctx, path, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	if err != nil {
		return "", classify(ctx, err, ErrUnknownCommit)
	}
	return strings.TrimSpace(string(out)), nil
}

// GetCommitDiff runs `git show --patch` for ref and decodes its output.
func (c CLI) GetCommitDiff(ctx context.Context, path, ref string) (string, error) {
	if err := checkRef(ref); err != nil {
		return "", err
	}
	out, err := c.run(ctx, path, "show", "--patch", "--no-color", "--no-ext-diff", ref, "--")
	if err != nil {
		return "", classify(ctx, err, ErrDiffRetrievalFailed)
	}
	if !utf8.Valid(out) {
		return "", ErrEncodingFailed
	}
	return string(out), nil
}

// GitDir returns the absolute path of the repository's git directory.
func (c CLI) GitDir(ctx context.Context, path string) (string, error) {
	out, err := c.run(ctx, path, "rev-parse", "--absolute-git-dir")
	if err != nil {
		return "", classify(ctx, err, ErrNotARepository)
	}
	dir := strings.TrimSpace(string(out))
	if dir == "" {
		return "", fmt.Errorf("%w: git rev-parse returned empty git dir", ErrNotARepository)
	}
	return filepath.Clean(dir), nil
}

// CommandError describes a git invocation that exited non-zero.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s: exit status %d", strings.Join(e.Args, " "), e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (c CLI) run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.GitBin, args...)
	cmd.Dir = dir
	// keep output stable regardless of the user's locale and pager settings
	cmd.Env = append(os.Environ(), "LC_ALL=C", "GIT_PAGER=cat", "GIT_TERMINAL_PROMPT=0")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &CommandError{
				Args:     args,
				ExitCode: exitErr.ExitCode(),
				Stderr:   strings.TrimSpace(stderr.String()),
			}
		}
		return nil, fmt.Errorf("running git: %w", err)
	}
	return stdout.Bytes(), nil
}

// classify maps a non-zero git exit onto kind. Launch failures and
// cancellation keep their own identity.
func classify(ctx context.Context, err error, kind error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return fmt.Errorf("%w: %w", kind, cmdErr)
	}
	return err
}
