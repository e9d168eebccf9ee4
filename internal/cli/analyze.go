package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dshills/halidom/internal/analysis"
	"github.com/dshills/halidom/internal/cache"
	"github.com/dshills/halidom/internal/config"
	"github.com/dshills/halidom/internal/gitctx"
	"github.com/dshills/halidom/internal/logging"
	"github.com/dshills/halidom/internal/output"
	"github.com/dshills/halidom/internal/redact"
)

// Shared analysis flags
var (
	flagDirectory    string
	flagQuiet        bool
	flagFormat       string
	flagOut          string
	flagNoRedact     bool
	flagEngine       string
	flagEngineArgs   []string
	flagEngineDir    string
	flagTimeout      string
	flagBackend      string
	flagStagingDir   string
	flagExclude      string
	flagMaxDiffBytes int
	flagCache        bool
	flagNoCache      bool
)

var flagCommit string

func addAnalysisFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagDirectory, "directory", "d", ".", "Repository directory")
	cmd.Flags().BoolVarP(&flagQuiet, "quiet", "q", false, "Don't stream engine output; print only the final result")
	cmd.Flags().StringVar(&flagFormat, "format", "", "Output format (text, json, markdown)")
	cmd.Flags().StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
	cmd.Flags().BoolVar(&flagNoRedact, "no-redact", false, "Disable secret redaction (use with caution)")
	cmd.Flags().StringVar(&flagEngine, "engine", "", "Analysis engine executable")
	cmd.Flags().StringArrayVar(&flagEngineArgs, "engine-arg", nil, "Engine argument, repeatable; {diff} is replaced by the staged diff path")
	cmd.Flags().StringVar(&flagEngineDir, "engine-dir", "", "Engine working directory")
	cmd.Flags().StringVar(&flagTimeout, "timeout", "", "Engine timeout as a duration, 0 disables (e.g. 5m)")
	cmd.Flags().StringVar(&flagBackend, "backend", "", "Git backend (gitcli, native)")
	cmd.Flags().StringVar(&flagStagingDir, "staging-dir", "", "Directory for staged diffs")
	cmd.Flags().StringVar(&flagExclude, "exclude", "", "Exclude file path globs (comma-separated)")
	cmd.Flags().IntVar(&flagMaxDiffBytes, "max-diff-bytes", 0, "Maximum diff size in bytes")
	cmd.Flags().BoolVar(&flagCache, "cache", false, "Reuse and store engine results")
	cmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "Bypass the result cache")
}

func buildOverrides() map[string]string {
	m := make(map[string]string)
	if flagFormat != "" {
		m["format"] = flagFormat
	}
	if flagEngine != "" {
		m["engine.command"] = flagEngine
	}
	if flagEngineDir != "" {
		m["engine.dir"] = flagEngineDir
	}
	if flagTimeout != "" {
		m["engine.timeout"] = flagTimeout
	}
	if flagBackend != "" {
		m["gitBackend"] = flagBackend
	}
	if flagStagingDir != "" {
		m["stagingDir"] = flagStagingDir
	}
	if flagMaxDiffBytes > 0 {
		m["maxDiffBytes"] = strconv.Itoa(flagMaxDiffBytes)
	}
	if flagCache {
		m["cache.enabled"] = "true"
	}
	if flagNoCache {
		m["cache.enabled"] = "false"
	}
	if flagVerbose {
		m["logLevel"] = "debug"
	}
	return m
}

// loadConfig merges configuration for the repository in flagDirectory and
// applies the flags that don't fit the overrides map.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(flagDirectory, buildOverrides())
	if err != nil {
		return config.Config{}, err
	}
	if len(flagEngineArgs) > 0 {
		cfg.Engine.Args = flagEngineArgs
	}
	if flagExclude != "" {
		cfg.Exclude = append(cfg.Exclude, splitComma(flagExclude)...)
	}
	if flagNoRedact {
		cfg.Privacy.RedactSecrets = false
	}
	return cfg, nil
}

func splitComma(s string) []string {
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// pipeline runs one commit through the gateway and the bridge.
type pipeline struct {
	cfg    config.Config
	repo   gitctx.Repo
	bridge *analysis.Bridge
	log    logging.Logger
	stdout io.Writer
	stderr io.Writer
	out    string
	quiet  bool
	color  bool
}

func newPipeline(ctx context.Context, cfg config.Config, stdout, stderr io.Writer) (*pipeline, error) {
	log, err := logging.New(stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}
	backend, err := gitctx.NewBackend(cfg.GitBackend)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}
	timeout, err := cfg.EngineTimeout()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}
	c, err := cache.New(cfg.Cache.Enabled, cfg.Cache.Dir, cfg.Cache.TTLSeconds)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}

	repo, err := gitctx.Open(ctx, flagDirectory, backend)
	if err != nil {
		return nil, err
	}
	log.Debug("repository opened", "root", repo.Root(), "backend", backend.Name())

	return &pipeline{
		cfg:  cfg,
		repo: repo,
		bridge: &analysis.Bridge{
			Command:    cfg.Engine.Command,
			Args:       cfg.Engine.Args,
			Dir:        cfg.Engine.Dir,
			StagingDir: cfg.StagingDir,
			Timeout:    timeout,
			ReadSize:   cfg.Engine.ReadSize,
			Cache:      c,
			Logger:     log,
		},
		log:    log,
		stdout: stdout,
		stderr: stderr,
		out:    flagOut,
		quiet:  flagQuiet,
		color:  stdout == io.Writer(os.Stdout) && !color.NoColor,
	}, nil
}

// analyze validates ref, extracts and redacts its diff, runs the engine and
// writes the report.
func (p *pipeline) analyze(ctx context.Context, ref string) error {
	start := time.Now()
	res, err := p.repo.Commit(ctx, ref, gitctx.DiffOptions{
		MaxDiffBytes: p.cfg.MaxDiffBytes,
		Exclude:      p.cfg.Exclude,
	})
	if err != nil {
		return err
	}
	gitMs := time.Since(start).Milliseconds()
	p.log.Debug("diff extracted", "commit", res.Commit, "files", len(res.Files), "bytes", len(res.Diff), "truncated", res.Truncated)

	diff := res.Diff
	var redacted redact.Summary
	if p.cfg.Privacy.RedactSecrets {
		diff, redacted = redact.Diff(diff, p.cfg.Privacy.RedactPaths)
		if redacted.Any() {
			p.log.Info("diff redacted", "secrets", redacted.Secrets, "files", redacted.Files)
		}
	} else {
		fmt.Fprintln(p.stderr, "WARNING: secret redaction is disabled")
	}

	report := &output.Report{
		Repo:      res.Repo,
		Ref:       res.Ref,
		Commit:    res.Commit,
		Files:     res.Files,
		Truncated: res.Truncated,
		Redacted:  redacted,
		Engine:    output.EngineInfo{Command: p.bridge.Command, Args: p.bridge.Args},
	}

	live := p.cfg.Format == "text" && p.out == "" && !p.quiet
	text := &output.TextWriter{Color: p.color}
	var sink *lastByteWriter
	if live {
		if err := text.Header(p.stdout, report); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		sink = &lastByteWriter{w: p.stdout}
	}

	engineStart := time.Now()
	var result analysis.Result
	if sink != nil {
		result, err = p.bridge.Analyze(ctx, diff, sink)
		sink.terminate()
	} else {
		result, err = p.bridge.Analyze(ctx, diff, nil)
	}
	if err != nil {
		return err
	}

	report.Analysis = result.Text
	report.Engine.Chunks = result.Chunks
	report.Engine.Cached = result.Cached
	report.Timing = output.Timing{
		GitMs:    gitMs,
		EngineMs: time.Since(engineStart).Milliseconds(),
		TotalMs:  time.Since(start).Milliseconds(),
	}

	if live {
		if err := text.Footer(p.stdout, report); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		return nil
	}
	if p.out == "" {
		w, err := output.GetWriter(p.cfg.Format)
		if err != nil {
			return err
		}
		if tw, ok := w.(*output.TextWriter); ok {
			tw.Color = p.color
		}
		if err := w.Write(p.stdout, report); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		return nil
	}
	if err := output.WriteReport(report, p.cfg.Format, p.out); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

// lastByteWriter remembers whether anything was written and how it ended.
type lastByteWriter struct {
	w    io.Writer
	last byte
	n    int
}

func (l *lastByteWriter) Write(p []byte) (int, error) {
	n, err := l.w.Write(p)
	if n > 0 {
		l.last = p[n-1]
		l.n += n
	}
	return n, err
}

// terminate ends a partial last line so what follows starts on its own.
func (l *lastByteWriter) terminate() {
	if l.n > 0 && l.last != '\n' {
		l.w.Write([]byte{'\n'})
		l.last = '\n'
	}
}

// signalContext is cancelled on SIGINT or SIGTERM. The engine runs in its own
// process group, so the terminal's interrupt reaches it only through ctx.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze one commit",
	Long:  "Extract the diff of one commit and stream it through the analysis engine.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		p, err := newPipeline(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		if err != nil {
			fail(err)
			return nil
		}
		if err := p.analyze(ctx, flagCommit); err != nil {
			fail(err)
		}
		return nil
	},
}

func init() {
	addAnalysisFlags(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&flagCommit, "commit", "c", "", "Commit to analyze (hash, branch, tag, HEAD~n)")
	analyzeCmd.MarkFlagRequired("commit")
}
