package output

import (
	"fmt"
	"io"
	"os"

	"github.com/dshills/halidom/internal/gitctx"
	"github.com/dshills/halidom/internal/redact"
)

// Report is the outcome of analyzing one commit.
type Report struct {
	Repo      gitctx.RepoMeta `json:"repo"`
	Ref       string          `json:"ref"`
	Commit    string          `json:"commit"`
	Files     []string        `json:"files"`
	Truncated bool            `json:"truncated,omitempty"`
	Redacted  redact.Summary  `json:"redacted"`
	Engine    EngineInfo      `json:"engine"`
	Analysis  string          `json:"analysis"`
	Timing    Timing          `json:"timing"`
}

// EngineInfo describes the engine run behind a report.
type EngineInfo struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
	Chunks  int      `json:"chunks"`
	Cached  bool     `json:"cached,omitempty"`
}

// Timing records where the time went.
type Timing struct {
	GitMs    int64 `json:"gitMs"`
	EngineMs int64 `json:"engineMs"`
	TotalMs  int64 `json:"totalMs"`
}

// Writer writes a report in a specific format.
type Writer interface {
	Write(w io.Writer, report *Report) error
}

// GetWriter returns a writer for the specified format.
func GetWriter(format string) (Writer, error) {
	switch format {
	case "text":
		return &TextWriter{}, nil
	case "json":
		return &JSONWriter{}, nil
	case "markdown":
		return &MarkdownWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteReport writes the report to the specified output (file path or stdout).
func WriteReport(report *Report, format, outPath string) error {
	writer, err := GetWriter(format)
	if err != nil {
		return err
	}

	var w io.Writer
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	} else {
		w = os.Stdout
	}

	return writer.Write(w, report)
}
