package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/halidom/internal/gitctx"
)

const (
	hookMarkerStart = "# >>> halidom post-commit hook >>>"
	hookMarkerEnd   = "# <<< halidom post-commit hook <<<"
)

var (
	hookFormat string
	hookOut    string
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Manage the git post-commit hook",
}

var hookInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Analyze every commit from a git post-commit hook",
	RunE: func(cmd *cobra.Command, args []string) error {
		hookPath, err := getHookPath(cmd.Context(), flagDirectory)
		if err != nil {
			fail(err)
			return nil
		}

		section := generateHookScript(hookFormat, hookOut)

		existing, err := os.ReadFile(hookPath)
		if err != nil && !os.IsNotExist(err) {
			fail(fmt.Errorf("reading hook file: %w", err))
			return nil
		}

		var content string
		if os.IsNotExist(err) || len(existing) == 0 {
			content = "#!/bin/sh\n" + section
		} else {
			content = replaceHookSection(string(existing), section)
		}

		if err := os.MkdirAll(filepath.Dir(hookPath), 0o755); err != nil {
			fail(fmt.Errorf("creating hooks directory: %w", err))
			return nil
		}
		if err := os.WriteFile(hookPath, []byte(content), 0o755); err != nil {
			fail(fmt.Errorf("writing hook file: %w", err))
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Installed halidom post-commit hook at %s\n", hookPath)
		return nil
	},
}

var hookUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the halidom post-commit hook",
	RunE: func(cmd *cobra.Command, args []string) error {
		hookPath, err := getHookPath(cmd.Context(), flagDirectory)
		if err != nil {
			fail(err)
			return nil
		}

		existing, err := os.ReadFile(hookPath)
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Fprintln(cmd.OutOrStdout(), "No post-commit hook found.")
				return nil
			}
			fail(fmt.Errorf("reading hook file: %w", err))
			return nil
		}

		content := removeHookSection(string(existing))

		// Only the shebang left: the hook was ours alone.
		trimmed := strings.TrimSpace(content)
		if trimmed == "" || trimmed == "#!/bin/sh" || trimmed == "#!/bin/bash" {
			if err := os.Remove(hookPath); err != nil {
				fail(fmt.Errorf("removing hook file: %w", err))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed halidom post-commit hook at %s\n", hookPath)
			return nil
		}

		if err := os.WriteFile(hookPath, []byte(content), 0o755); err != nil {
			fail(fmt.Errorf("writing hook file: %w", err))
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed halidom section from %s\n", hookPath)
		return nil
	},
}

// getHookPath locates hooks/post-commit inside the git directory of the
// repository containing dir. Worktrees and GIT_DIR overrides are honoured
// because the git directory comes from the gateway.
func getHookPath(ctx context.Context, dir string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	repo, err := gitctx.Open(ctx, dir, nil)
	if err != nil {
		return "", err
	}
	gitDir, err := repo.GitDir(ctx)
	if err != nil {
		return "", err
	}
	return filepath.Join(gitDir, "hooks", "post-commit"), nil
}

// generateHookScript returns the marked hook section. A post-commit hook
// cannot undo the commit, so a failed analysis only prints a notice.
func generateHookScript(format, out string) string {
	var b strings.Builder
	b.WriteString(hookMarkerStart + "\n")
	b.WriteString("halidom analyze --commit HEAD --format " + format)
	if out != "" {
		b.WriteString(" --quiet --out " + shellQuote(out))
	}
	b.WriteString("\n")
	b.WriteString("HALIDOM_EXIT=$?\n")
	b.WriteString("if [ $HALIDOM_EXIT -ne 0 ]; then\n")
	b.WriteString("  echo \"halidom: analysis failed (exit $HALIDOM_EXIT); the commit is kept\" >&2\n")
	b.WriteString("fi\n")
	b.WriteString(hookMarkerEnd + "\n")
	return b.String()
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func replaceHookSection(existing, section string) string {
	startIdx := strings.Index(existing, hookMarkerStart)
	endIdx := strings.Index(existing, hookMarkerEnd)

	if startIdx == -1 || endIdx == -1 {
		if !strings.HasSuffix(existing, "\n") {
			existing += "\n"
		}
		return existing + section
	}

	before := existing[:startIdx]
	after := existing[endIdx+len(hookMarkerEnd):]
	after = strings.TrimPrefix(after, "\n")
	return before + section + after
}

func removeHookSection(existing string) string {
	startIdx := strings.Index(existing, hookMarkerStart)
	endIdx := strings.Index(existing, hookMarkerEnd)

	if startIdx == -1 || endIdx == -1 {
		return existing
	}

	before := existing[:startIdx]
	after := existing[endIdx+len(hookMarkerEnd):]
	after = strings.TrimPrefix(after, "\n")
	return before + after
}

func init() {
	hookCmd.AddCommand(hookInstallCmd)
	hookCmd.AddCommand(hookUninstallCmd)
	hookCmd.PersistentFlags().StringVarP(&flagDirectory, "directory", "d", ".", "Repository directory")
	hookInstallCmd.Flags().StringVar(&hookFormat, "format", "text", "Output format (text, json, markdown)")
	hookInstallCmd.Flags().StringVar(&hookOut, "out", "", "Write each report to this file instead of the terminal")
}
