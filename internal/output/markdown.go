package output

import (
	"io"
	"path/filepath"
	"strings"
)

// MarkdownWriter outputs a commit-comment-friendly markdown report.
type MarkdownWriter struct{}

func (m *MarkdownWriter) Write(w io.Writer, report *Report) error {
	ew := &errWriter{w: w}

	ew.printf("## Commit Analysis: `%s`\n\n", shortSHA(report.Commit))
	ew.printf("| | |\n|---|---|\n")
	if report.Ref != "" {
		ew.printf("| Ref | `%s` |\n", report.Ref)
	}
	ew.printf("| Repository | `%s` |\n", report.Repo.Root)
	ew.printf("| Files | %d |\n", len(report.Files))
	if report.Redacted.Any() {
		ew.printf("| Redacted | %d secret(s), %d file(s) |\n", report.Redacted.Secrets, len(report.Redacted.Files))
	}
	if report.Truncated {
		ew.printf("| Truncated | yes |\n")
	}
	ew.println("")

	if len(report.Files) > 0 {
		ew.printf("<details>\n<summary>Changed files (%d)</summary>\n\n", len(report.Files))
		for _, f := range report.Files {
			ew.printf("- `%s`%s\n", f, langSuffix(f))
		}
		ew.printf("\n</details>\n\n")
	}

	analysis := strings.TrimRight(report.Analysis, "\n")
	if analysis == "" {
		ew.println("_The engine produced no output._")
	} else {
		ew.printf("%s\n", fence(analysis))
	}
	ew.println("")

	source := ""
	if report.Engine.Cached {
		source = ", cached"
	}
	ew.printf("*Analyzed in %dms (git: %dms, engine: %dms%s)*\n",
		report.Timing.TotalMs, report.Timing.GitMs, report.Timing.EngineMs, source)
	return ew.err
}

// fence wraps text in a code fence longer than any backtick run inside it.
func fence(text string) string {
	longest, run := 0, 0
	for _, r := range text {
		if r == '`' {
			run++
			longest = max(longest, run)
		} else {
			run = 0
		}
	}
	marker := strings.Repeat("`", max(3, longest+1))
	return marker + "\n" + text + "\n" + marker
}

func langSuffix(path string) string {
	if lang := inferLang(path); lang != "" {
		return " (" + lang + ")"
	}
	return ""
}

func inferLang(path string) string {
	langMap := map[string]string{
		".go":   "go",
		".py":   "python",
		".js":   "javascript",
		".ts":   "typescript",
		".tsx":  "tsx",
		".jsx":  "jsx",
		".rs":   "rust",
		".java": "java",
		".rb":   "ruby",
		".cpp":  "cpp",
		".c":    "c",
		".cs":   "csharp",
		".php":  "php",
		".sh":   "bash",
		".sql":  "sql",
		".yaml": "yaml",
		".yml":  "yaml",
		".json": "json",
		".tf":   "hcl",
	}
	return langMap[filepath.Ext(path)]
}
