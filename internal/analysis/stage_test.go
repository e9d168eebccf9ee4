package analysis

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestStage(t *testing.T) {
	dir := t.TempDir()
	s, err := stage(dir, sampleDiff)
	if err != nil {
		t.Fatalf("stage error: %v", err)
	}
	if filepath.Dir(s.path) != dir {
		t.Errorf("staged in %q, want %q", filepath.Dir(s.path), dir)
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		t.Fatalf("reading staged file: %v", err)
	}
	if string(data) != sampleDiff {
		t.Errorf("staged content = %q, want %q", data, sampleDiff)
	}
	if runtime.GOOS != "windows" {
		info, _ := os.Stat(s.path)
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Errorf("staged file mode = %o, want 600", perm)
		}
	}

	if err := s.remove(); err != nil {
		t.Fatalf("remove error: %v", err)
	}
	if _, err := os.Stat(s.path); !os.IsNotExist(err) {
		t.Error("staged file still exists after remove")
	}
	if err := s.remove(); err != nil {
		t.Errorf("second remove = %v, want nil", err)
	}
}

func TestStage_UniquePaths(t *testing.T) {
	dir := t.TempDir()
	seen := make(map[string]bool)
	for range 50 {
		s, err := stage(dir, "x")
		if err != nil {
			t.Fatalf("stage error: %v", err)
		}
		if seen[s.path] {
			t.Fatalf("duplicate staged path %q", s.path)
		}
		seen[s.path] = true
	}
}

func TestStage_MissingDir(t *testing.T) {
	if _, err := stage(filepath.Join(t.TempDir(), "missing"), "x"); err == nil {
		t.Fatal("expected error staging into a missing directory")
	}
}

func TestStage_DefaultsToTempDir(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)
	s, err := stage("", "x")
	if err != nil {
		t.Fatalf("stage error: %v", err)
	}
	defer s.remove()
	if runtime.GOOS != "windows" && filepath.Dir(s.path) != tmp {
		t.Errorf("staged in %q, want %q", filepath.Dir(s.path), tmp)
	}
}

func TestStagedInput_NilRemove(t *testing.T) {
	var s *stagedInput
	if err := s.remove(); err != nil {
		t.Errorf("nil remove = %v", err)
	}
}
