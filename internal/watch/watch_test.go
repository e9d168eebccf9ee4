package watch

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dshills/halidom/internal/gitctx"
)

type testRepo struct {
	t   *testing.T
	dir string
}

func newTestRepo(t *testing.T, withCommit bool) *testRepo {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	r := &testRepo{t: t, dir: t.TempDir()}
	r.git("init", "-q")
	if withCommit {
		r.commit("init")
	}
	return r
}

func (r *testRepo) git(args ...string) string {
	r.t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = r.dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=test",
		"GIT_AUTHOR_EMAIL=test@test.com",
		"GIT_COMMITTER_NAME=test",
		"GIT_COMMITTER_EMAIL=test@test.com",
		"GIT_CONFIG_NOSYSTEM=1",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		r.t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
	return strings.TrimSpace(string(out))
}

func (r *testRepo) commit(msg string) string {
	r.t.Helper()
	os.WriteFile(filepath.Join(r.dir, "f"), []byte(msg+"\n"), 0o644)
	r.git("add", "-A")
	r.git("commit", "-q", "-m", msg)
	return r.git("rev-parse", "HEAD")
}

// start runs a watcher in the background and returns the channel of commits
// it reports.
func start(t *testing.T, r *testRepo) <-chan string {
	t.Helper()
	repo, err := gitctx.Open(context.Background(), r.dir, nil)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	commits := make(chan string, 16)
	w := &Watcher{
		Repo:     repo,
		Debounce: 50 * time.Millisecond,
		OnCommit: func(_ context.Context, sha string) error {
			commits <- sha
			return nil
		},
		ready: make(chan struct{}),
	}
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Run did not return after cancel")
		}
	})
	select {
	case <-w.ready:
	case err := <-done:
		t.Fatalf("Run exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never became ready")
	}
	return commits
}

func expectCommit(t *testing.T, commits <-chan string, want string) {
	t.Helper()
	select {
	case got := <-commits:
		if got != want {
			t.Fatalf("reported %s, want %s", got, want)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("commit %s was never reported", want)
	}
}

func expectQuiet(t *testing.T, commits <-chan string) {
	t.Helper()
	select {
	case got := <-commits:
		t.Fatalf("unexpected report of %s", got)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_ReportsNewCommits(t *testing.T) {
	r := newTestRepo(t, true)
	commits := start(t, r)

	expectQuiet(t, commits)
	first := r.commit("second")
	expectCommit(t, commits, first)
	second := r.commit("third")
	expectCommit(t, commits, second)
}

func TestWatcher_IgnoresRevisitedCommits(t *testing.T) {
	r := newTestRepo(t, true)
	base := r.git("rev-parse", "HEAD")
	branch := r.git("rev-parse", "--abbrev-ref", "HEAD")
	commits := start(t, r)

	next := r.commit("second")
	expectCommit(t, commits, next)

	r.git("checkout", "-q", base)
	expectQuiet(t, commits)
	r.git("checkout", "-q", branch)
	expectQuiet(t, commits)
}

func TestWatcher_FreshRepository(t *testing.T) {
	r := newTestRepo(t, false)
	commits := start(t, r)

	first := r.commit("first")
	expectCommit(t, commits, first)
	second := r.commit("second")
	expectCommit(t, commits, second)
}

func TestWatcher_RequiresCallback(t *testing.T) {
	if err := (&Watcher{}).Run(context.Background()); err == nil {
		t.Error("Run without OnCommit should fail")
	}
}

func TestShouldIgnore(t *testing.T) {
	tests := map[string]bool{
		"/r/.git/HEAD.lock":            true,
		"/r/.git/index":                true,
		"/r/.git/refs/heads/main.lock": true,
		"/r/.git/COMMIT_EDITMSG":       true,
		"/r/.git/HEAD":                 false,
		"/r/.git/logs/HEAD":            false,
		"/r/.git/ORIG_HEAD":            false,
		"/r/.git/packed-refs":          false,
	}
	for name, want := range tests {
		if got := shouldIgnore(name); got != want {
			t.Errorf("shouldIgnore(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestWatchPaths(t *testing.T) {
	gitDir := t.TempDir()
	if got := watchPaths(gitDir); len(got) != 1 {
		t.Errorf("watchPaths without logs = %v", got)
	}
	os.Mkdir(filepath.Join(gitDir, "logs"), 0o755)
	if got := watchPaths(gitDir); len(got) != 2 || got[1] != filepath.Join(gitDir, "logs") {
		t.Errorf("watchPaths with logs = %v", got)
	}
}
