package redact

import (
	"regexp"
	"strings"

	"github.com/dshills/halidom/internal/gitctx"
)

const placeholder = "[REDACTED]"

// secretPatterns are regex heuristics for common secret types.
var secretPatterns = []*regexp.Regexp{
	// Generic API keys (long hex/base64 strings after common key patterns)
	regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*["']?([A-Za-z0-9/+=_-]{20,})["']?`),
	// AWS access key IDs
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	// AWS secret access keys
	regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key)\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`),
	// Generic secrets/tokens/passwords in assignments
	regexp.MustCompile(`(?i)(secret|token|password|passwd|credential)\s*[:=]\s*["']([^"']{8,})["']`),
	// Bearer tokens
	regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{20,}`),
	// JWTs
	regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`),
	// Private key blocks
	regexp.MustCompile(`-----BEGIN\s+(RSA\s+|EC\s+|OPENSSH\s+)?PRIVATE KEY-----`),
	// Connection strings with inline credentials
	regexp.MustCompile(`(?i)\b(postgres(ql)?|mysql|mongodb(\+srv)?|redis|amqp)://[^\s:/@]+:[^\s@]+@`),
	// GitHub tokens
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`),
	// Slack tokens
	regexp.MustCompile(`xox[bporas]-[A-Za-z0-9-]{10,}`),
	// Anthropic API keys
	regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`),
	// OpenAI API keys
	regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),
	// Generic long hex strings that look like secrets (32+ chars in an assignment)
	regexp.MustCompile(`(?i)(key|secret|token)\s*[:=]\s*["']?[0-9a-f]{32,}["']?`),
}

// Summary records what Diff removed.
type Summary struct {
	Secrets int      `json:"secrets"`
	Files   []string `json:"files,omitempty"`
}

// Any reports whether anything was redacted.
func (s Summary) Any() bool {
	return s.Secrets > 0 || len(s.Files) > 0
}

// Secrets replaces detected secrets in text with [REDACTED].
func Secrets(text string) string {
	out, _ := secrets(text)
	return out
}

func secrets(text string) (string, int) {
	n := 0
	for _, pat := range secretPatterns {
		text = pat.ReplaceAllStringFunc(text, func(string) string {
			n++
			return placeholder
		})
	}
	return text, n
}

// ShouldRedactPath checks if a file path matches any of the redaction path patterns.
func ShouldRedactPath(path string, patterns []string) bool {
	return gitctx.MatchesAny(path, patterns)
}

// Diff redacts a commit diff before it leaves the process. Sections for files
// matching redactPaths keep their header lines but lose every hunk; all other
// text is scanned for secrets.
func Diff(diff string, redactPaths []string) (string, Summary) {
	var (
		b   strings.Builder
		sum Summary
	)
	for _, section := range gitctx.SplitSections(diff) {
		if path := gitctx.SectionPath(section); path != "" && ShouldRedactPath(path, redactPaths) {
			b.WriteString(dropHunks(section))
			sum.Files = append(sum.Files, path)
			continue
		}
		out, n := secrets(section)
		sum.Secrets += n
		b.WriteString(out)
	}
	return b.String(), sum
}

// dropHunks keeps a section's header lines and replaces everything from the
// first hunk on with a single marker line.
func dropHunks(section string) string {
	var b strings.Builder
	for _, line := range strings.SplitAfter(section, "\n") {
		if strings.HasPrefix(line, "@@") || strings.HasPrefix(line, "Binary files") {
			break
		}
		b.WriteString(line)
	}
	b.WriteString(placeholder + " (file content redacted by path policy)\n")
	return b.String()
}
