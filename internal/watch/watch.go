// Package watch follows a repository's HEAD and reports every commit it moves
// to.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/halidom/internal/gitctx"
	"github.com/dshills/halidom/internal/logging"
)

// DefaultDebounce is how long the git directory must be quiet before HEAD is
// re-read.
const DefaultDebounce = 350 * time.Millisecond

// Watcher calls OnCommit once for each commit HEAD moves to after Run starts.
// Commits made while OnCommit is running are coalesced: only the newest HEAD
// is reported once it returns.
type Watcher struct {
	Repo     gitctx.Repo
	Debounce time.Duration
	Logger   logging.Logger
	// OnCommit runs serially on the watch goroutine. Its errors are logged and
	// watching continues.
	OnCommit func(ctx context.Context, sha string) error

	ready chan struct{}
}

// Run blocks until ctx is done or the file watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	log := w.Logger
	if log == nil {
		log = logging.Nop()
	}
	if w.OnCommit == nil {
		return errors.New("watch: OnCommit is required")
	}
	gitDir, err := w.Repo.GitDir(ctx)
	if err != nil {
		return fmt.Errorf("locate git directory: %w", err)
	}

	seen := make(map[string]bool)
	last := w.head(ctx)
	if last != "" {
		seen[last] = true
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer fw.Close()
	for _, path := range watchPaths(gitDir) {
		log.Debug("adding path to FS watcher", "path", path)
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
	}
	if w.ready != nil {
		close(w.ready)
	}
	log.Info("watching repository", "root", w.Repo.Root(), "head", last)

	delay := w.Debounce
	if delay <= 0 {
		delay = DefaultDebounce
	}
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if shouldIgnore(ev.Name) {
				continue
			}
			log.Debug("fsnotify event", "op", ev.Op.String(), "path", ev.Name)
			if ev.Has(fsnotify.Create) && ev.Name == filepath.Join(gitDir, "logs") {
				// first commit in a fresh repository
				if err := fw.Add(ev.Name); err != nil {
					log.Warn("watching reflog directory", "error", err)
				}
			}
			if timer == nil {
				timer = time.NewTimer(delay)
			} else {
				timer.Reset(delay)
			}
			fire = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Error("fsnotify error", "error", err)
		case <-fire:
			fire = nil
			head := w.head(ctx)
			if head == "" || head == last {
				continue
			}
			last = head
			if seen[head] {
				log.Debug("HEAD moved to an analyzed commit", "commit", head)
				continue
			}
			seen[head] = true
			log.Info("new commit", "commit", head)
			if err := w.OnCommit(ctx, head); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Error("analyzing commit", "commit", head, "error", err)
			}
		}
	}
}

func (w *Watcher) head(ctx context.Context) string {
	sha, err := w.Repo.Resolve(ctx, "HEAD")
	if err != nil {
		// an unborn branch has no HEAD commit yet
		return ""
	}
	return sha
}

// watchPaths lists the git directory and its reflog directory; a commit always
// appends to logs/HEAD even when only a branch ref changes.
func watchPaths(gitDir string) []string {
	paths := []string{gitDir}
	logs := filepath.Join(gitDir, "logs")
	if info, err := os.Stat(logs); err == nil && info.IsDir() {
		paths = append(paths, logs)
	}
	return paths
}

func shouldIgnore(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".lock" || ext == ".ipc" {
		return true
	}
	switch filepath.Base(name) {
	case "index", "FETCH_HEAD", "COMMIT_EDITMSG":
		return true
	}
	return false
}
