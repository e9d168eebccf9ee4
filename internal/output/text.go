package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// TextWriter outputs a human-readable text report. The analysis sits
// between Header and Footer, so a caller streaming engine output can print
// the two halves around the live chunks.
type TextWriter struct {
	// Color enables ANSI styling.
	Color bool
}

func (t *TextWriter) Write(w io.Writer, report *Report) error {
	if err := t.Header(w, report); err != nil {
		return err
	}
	ew := &errWriter{w: w}
	ew.printf("%s", report.Analysis)
	if report.Analysis != "" && !strings.HasSuffix(report.Analysis, "\n") {
		ew.println("")
	}
	if ew.err != nil {
		return ew.err
	}
	return t.Footer(w, report)
}

// Header prints everything that precedes the analysis text.
func (t *TextWriter) Header(w io.Writer, report *Report) error {
	ew := &errWriter{w: w}
	bold := t.style(color.Bold)
	dim := t.style(color.Faint)

	ew.printf("%s %s\n", bold.Sprint("Commit Analysis:"), shortSHA(report.Commit))
	if report.Ref != "" && report.Ref != report.Commit {
		ew.printf("%s\n", dim.Sprintf("Ref: %s", report.Ref))
	}
	ew.printf("%s\n", dim.Sprintf("Repository: %s", report.Repo.Root))
	if len(report.Files) > 0 {
		ew.printf("%s\n", dim.Sprintf("Files: %s", strings.Join(report.Files, ", ")))
	}
	if n := len(report.Redacted.Files); n > 0 || report.Redacted.Secrets > 0 {
		warn := t.style(color.FgYellow)
		ew.printf("%s\n", warn.Sprintf("Redacted: %d secret(s), %d file(s)", report.Redacted.Secrets, n))
	}
	if report.Truncated {
		ew.printf("%s\n", t.style(color.FgYellow).Sprint("Diff truncated before analysis"))
	}
	ew.println(strings.Repeat("─", 60))
	return ew.err
}

// Footer prints everything that follows the analysis text.
func (t *TextWriter) Footer(w io.Writer, report *Report) error {
	ew := &errWriter{w: w}
	ew.println(strings.Repeat("─", 60))
	source := fmt.Sprintf("%d chunk(s)", report.Engine.Chunks)
	if report.Engine.Cached {
		source = "cache"
	}
	ew.printf("%s\n", t.style(color.Faint).Sprintf("Completed in %dms (git: %dms, engine: %dms, from %s)",
		report.Timing.TotalMs, report.Timing.GitMs, report.Timing.EngineMs, source))
	return ew.err
}

func (t *TextWriter) style(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if t.Color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

func shortSHA(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}
