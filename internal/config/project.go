package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ProjectFile is the per-repository config file name.
const ProjectFile = ".halidom.toml"

// ProjectPath returns the project config path for a repository directory.
func ProjectPath(dir string) string {
	return filepath.Join(dir, ProjectFile)
}

// mergeProject decodes dir/.halidom.toml over cfg. Only keys present in the
// file are changed, so unlike the user file it can switch booleans off.
// Unknown keys are rejected.
func mergeProject(cfg *Config, dir string) error {
	path := ProjectPath(dir)
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// SaveProject writes cfg as a project config file in dir. It refuses to
// overwrite an existing file unless force is set.
func SaveProject(dir string, cfg Config, force bool) (string, error) {
	path := ProjectPath(dir)
	if !force {
		if _, err := os.Stat(path); err == nil {
			return path, fmt.Errorf("%s already exists", path)
		}
	}
	var buf bytes.Buffer
	buf.WriteString("# halidom project configuration\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return path, fmt.Errorf("encoding project config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return path, fmt.Errorf("writing project config: %w", err)
	}
	return path, nil
}
