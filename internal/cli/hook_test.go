package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGenerateHookScript(t *testing.T) {
	script := generateHookScript("text", "")

	if !strings.Contains(script, hookMarkerStart) {
		t.Error("Script missing start marker")
	}
	if !strings.Contains(script, hookMarkerEnd) {
		t.Error("Script missing end marker")
	}
	if !strings.Contains(script, "halidom analyze --commit HEAD --format text\n") {
		t.Error("Script missing halidom command with correct flags")
	}
	if !strings.Contains(script, "HALIDOM_EXIT=$?") {
		t.Error("Script missing exit code capture")
	}
	if strings.Contains(script, "exit 1") {
		t.Error("post-commit script should never exit non-zero")
	}
	if !strings.Contains(script, "the commit is kept") {
		t.Error("Script missing failure notice")
	}
}

func TestGenerateHookScript_OutFile(t *testing.T) {
	script := generateHookScript("json", "/tmp/it's here.json")

	if !strings.Contains(script, "--format json") {
		t.Error("Script doesn't use custom format")
	}
	if !strings.Contains(script, `--quiet --out '/tmp/it'\''s here.json'`) {
		t.Errorf("Script doesn't quote the output path:\n%s", script)
	}
}

func TestReplaceHookSection_NoExisting(t *testing.T) {
	existing := "#!/bin/sh\nsome-other-hook\n"
	section := generateHookScript("text", "")

	result := replaceHookSection(existing, section)

	if !strings.HasPrefix(result, "#!/bin/sh\nsome-other-hook\n") {
		t.Error("Existing content should be preserved")
	}
	if !strings.HasSuffix(result, section) {
		t.Error("New section should be appended")
	}
}

func TestReplaceHookSection_ExistingSection(t *testing.T) {
	oldSection := generateHookScript("text", "")
	existing := "#!/bin/sh\nbefore\n" + oldSection + "after\n"
	newSection := generateHookScript("markdown", "")

	result := replaceHookSection(existing, newSection)

	if !strings.Contains(result, "before") {
		t.Error("Content before halidom section should be preserved")
	}
	if !strings.Contains(result, "after") {
		t.Error("Content after halidom section should be preserved")
	}
	if !strings.Contains(result, "--format markdown") {
		t.Error("New section should have updated flags")
	}
	if strings.Contains(result, "--format text") {
		t.Error("Old section should be replaced")
	}
	if strings.Count(result, hookMarkerStart) != 1 {
		t.Error("Section should appear exactly once")
	}
}

func TestReplaceHookSection_NoTrailingNewline(t *testing.T) {
	existing := "#!/bin/sh\nsome-hook"
	section := generateHookScript("text", "")

	result := replaceHookSection(existing, section)

	if !strings.Contains(result, "some-hook\n"+hookMarkerStart) {
		t.Errorf("Section should start on its own line:\n%s", result)
	}
}

func TestRemoveHookSection(t *testing.T) {
	section := generateHookScript("text", "")
	existing := "#!/bin/sh\nbefore\n" + section + "after\n"

	result := removeHookSection(existing)

	if result != "#!/bin/sh\nbefore\nafter\n" {
		t.Errorf("removeHookSection() = %q", result)
	}
}

func TestRemoveHookSection_NoSection(t *testing.T) {
	existing := "#!/bin/sh\nsome-hook\n"
	if result := removeHookSection(existing); result != existing {
		t.Error("Content without halidom section should be unchanged")
	}
}

func TestHookInstallUninstall(t *testing.T) {
	dir := setupTestRepo(t)
	hookPath := filepath.Join(dir, ".git", "hooks", "post-commit")

	out, code := runCLI(t, "hook", "install", "--directory", dir)
	if code != ExitSuccess {
		t.Fatalf("install exit code = %d, output %q", code, out)
	}
	data, err := os.ReadFile(hookPath)
	if err != nil {
		t.Fatalf("hook not written: %v", err)
	}
	if !strings.HasPrefix(string(data), "#!/bin/sh\n"+hookMarkerStart) {
		t.Errorf("unexpected hook:\n%s", data)
	}
	info, _ := os.Stat(hookPath)
	if info.Mode().Perm()&0o100 == 0 {
		t.Error("hook should be executable")
	}

	// A second install replaces the section instead of duplicating it.
	runCLI(t, "hook", "install", "--directory", dir, "--format", "json")
	data, _ = os.ReadFile(hookPath)
	if strings.Count(string(data), hookMarkerStart) != 1 || !strings.Contains(string(data), "--format json") {
		t.Errorf("reinstall produced:\n%s", data)
	}

	if _, code := runCLI(t, "hook", "uninstall", "--directory", dir); code != ExitSuccess {
		t.Fatalf("uninstall exit code = %d", code)
	}
	if _, err := os.Stat(hookPath); !os.IsNotExist(err) {
		t.Error("hook file should be removed when only halidom's section was in it")
	}
}

func TestHookUninstall_KeepsForeignHook(t *testing.T) {
	dir := setupTestRepo(t)
	hookPath := filepath.Join(dir, ".git", "hooks", "post-commit")
	os.MkdirAll(filepath.Dir(hookPath), 0o755)
	os.WriteFile(hookPath, []byte("#!/bin/sh\nnotify-send done\n"), 0o755)

	runCLI(t, "hook", "install", "--directory", dir)
	runCLI(t, "hook", "uninstall", "--directory", dir)

	data, err := os.ReadFile(hookPath)
	if err != nil {
		t.Fatalf("foreign hook removed: %v", err)
	}
	if string(data) != "#!/bin/sh\nnotify-send done\n" {
		t.Errorf("foreign hook changed:\n%s", data)
	}
}

func TestHookInstall_NotARepository(t *testing.T) {
	isolateEnv(t)
	_, code := runCLI(t, "hook", "install", "--directory", t.TempDir())
	if code != ExitRepoError {
		t.Errorf("exit code = %d, want %d", code, ExitRepoError)
	}
}
