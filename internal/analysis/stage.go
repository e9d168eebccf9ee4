package analysis

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// stagedInput is the on-disk copy of a diff handed to one engine process.
type stagedInput struct {
	path string
}

// stage writes diff to a new file in dir (os.TempDir when empty). The name
// carries a random UUID and the file is created exclusively, so concurrent
// calls never share a path.
func stage(dir, diff string) (*stagedInput, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, "halidom-diff-"+uuid.NewString()+".patch")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, err
	}
	if _, err := f.WriteString(diff); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("closing %s: %w", path, err)
	}
	return &stagedInput{path: path}, nil
}

// remove deletes the staged file. A file that is already gone is not an error.
func (s *stagedInput) remove() error {
	if s == nil {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
